package providers

import "github.com/go-redis/redis/v8"

// NewRedisProvider builds the single client shared by the store, the rate
// limiter and the metrics collector.
func NewRedisProvider(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
