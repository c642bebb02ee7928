package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinJwtKeyLength is the shortest HMAC-SHA-256 key accepted (256 bits).
const MinJwtKeyLength = 32

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Login RateLimitBucketConfig `yaml:"login"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	Timezone  string `yaml:"timezone"`

	// JwtKey signs and verifies session tokens. Changing it invalidates every issued token.
	JwtKey          string `yaml:"jwtKey"`
	JwtIssuer       string `yaml:"jwtIssuer"`
	TokenTTLMinutes int    `yaml:"tokenTtlMinutes"`

	StoreProvider string `yaml:"storeProvider"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`

	// StoreConnectAttempts bounds the startup health probes against the store.
	StoreConnectAttempts int `yaml:"storeConnectAttempts"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

func (c *Config) TokenTTL() time.Duration {
	if c.TokenTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	c.logSummary()
	return &c, nil
}

// LoadConfigOptional behaves like LoadConfig but treats an empty path or a
// missing file as an empty config, so env vars alone can configure the server.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) != "" {
		cfg, err := LoadConfig(filePath)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	var c Config
	c.applyEnv()
	c.applyDefaults()
	c.logSummary()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("LB_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("JWT_KEY"); v != "" {
		c.JwtKey = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		c.JwtIssuer = v
	}
	if v := os.Getenv("TOKEN_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TokenTTLMinutes = n
		}
	}
	if v := os.Getenv("STORE_PROVIDER"); v != "" {
		c.StoreProvider = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("STORE_CONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StoreConnectAttempts = n
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.Login.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RateLimit.Login.BurstSize = n
		}
	}
	if v := os.Getenv("OTEL_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Tracing.Enabled = b
		}
	}
	if v := os.Getenv("OTEL_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Tracing.SampleRatio = f
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.TokenTTLMinutes <= 0 {
		c.TokenTTLMinutes = 30
	}
	if c.StoreProvider == "" {
		if c.RedisAddr != "" {
			c.StoreProvider = "redis"
		} else {
			c.StoreProvider = "memory"
		}
	}
	if c.StoreProvider == "redis" && c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.StoreConnectAttempts <= 0 {
		c.StoreConnectAttempts = 5
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "leaderboards"
	}
}

func (c *Config) logSummary() {
	if c.JwtKey == "" {
		log.Println("Warning: jwtKey not set, every token operation will fail")
	}
	log.Printf("Leaderboards Config: {Port:%d Env:%s Store:%s Redis:%s Issuer:%s TTL:%dm}\n",
		c.Port, c.Env, c.StoreProvider, c.RedisAddr, c.JwtIssuer, c.TokenTTLMinutes)
}

func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.JwtKey) == "" {
		errs = append(errs, "jwtKey is required")
	} else if len(c.JwtKey) < MinJwtKeyLength {
		errs = append(errs, fmt.Sprintf("jwtKey must be at least %d characters", MinJwtKeyLength))
	}
	if strings.TrimSpace(c.JwtIssuer) == "" {
		errs = append(errs, "jwtIssuer is required")
	}

	switch c.StoreProvider {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			errs = append(errs, "redisAddr is required for the redis store")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storeProvider %q", c.StoreProvider))
	}

	if c.RateLimit.Login.RequestsPerMinute < 0 || c.RateLimit.Login.BurstSize < 0 {
		errs = append(errs, "rateLimit.login values must not be negative")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
