package auth

import (
	"sync"

	"github.com/osvaldoandrade/leaderboards/pkg/config"
)

// ValidationParameters is what every token check needs. It is built once and
// never mutated, so it can be shared between goroutines without locking.
type ValidationParameters struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// NewValidationParameters builds parameters from config. The issuer doubles
// as the audience.
func NewValidationParameters(cfg *config.Config) *ValidationParameters {
	if cfg == nil {
		return &ValidationParameters{}
	}
	return &ValidationParameters{
		Secret:   []byte(cfg.JwtKey),
		Issuer:   cfg.JwtIssuer,
		Audience: cfg.JwtIssuer,
	}
}

// ParameterCache builds ValidationParameters on first use and hands out the
// same instance afterwards, whatever config later callers pass.
type ParameterCache struct {
	once   sync.Once
	params *ValidationParameters
	build  func(*config.Config) *ValidationParameters
}

// NewParameterCache uses build to construct the parameters; nil means
// NewValidationParameters.
func NewParameterCache(build func(*config.Config) *ValidationParameters) *ParameterCache {
	return &ParameterCache{build: build}
}

func (c *ParameterCache) Get(cfg *config.Config) *ValidationParameters {
	c.once.Do(func() {
		build := c.build
		if build == nil {
			build = NewValidationParameters
		}
		c.params = build(cfg)
	})
	return c.params
}

var processParameters = NewParameterCache(nil)

// GetInstance returns the process-wide parameters. Config changes after the
// first call are ignored until restart.
func GetInstance(cfg *config.Config) *ValidationParameters {
	return processParameters.Get(cfg)
}
