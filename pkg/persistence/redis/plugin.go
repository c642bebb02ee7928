package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/osvaldoandrade/leaderboards/internal/providers"
	"github.com/osvaldoandrade/leaderboards/internal/repository"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis-specific configuration
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// Plugin implements PluginPersistence for Redis/KVRocks
type Plugin struct {
	client      *redis.Client
	userRepo    repository.UserRepository
	modshipRepo repository.ModshipRepository
}

// NewPlugin creates a new Redis persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if len(config.Config) > 0 {
		if err := json.Unmarshal(config.Config, &cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis persistence: addr is required")
	}

	return NewPluginFromClient(providers.NewRedisProvider(cfg.Addr, cfg.Password, cfg.DB), config), nil
}

// NewPluginFromClient wraps an existing client, sharing it with other redis users
func NewPluginFromClient(client *redis.Client, config persistence.PluginConfig) *Plugin {
	return &Plugin{
		client:      client,
		userRepo:    repository.NewUserRepository(client, config.Timezone),
		modshipRepo: repository.NewModshipRepository(client, config.Timezone),
	}
}

// UserStorage returns the user storage implementation
func (p *Plugin) UserStorage() persistence.UserStorage {
	return p.userRepo
}

// ModshipStorage returns the modship storage implementation
func (p *Plugin) ModshipStorage() persistence.ModshipStorage {
	return p.modshipRepo
}

// Client exposes the underlying connection for collectors and rate limiting
func (p *Plugin) Client() *redis.Client {
	return p.client
}

// Health checks if Redis is healthy
func (p *Plugin) Health(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close releases Redis connection
func (p *Plugin) Close() error {
	return p.client.Close()
}

func init() {
	persistence.RegisterProvider("redis", NewPlugin)
}
