package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

type HealthChecker interface {
	Health(ctx context.Context) error
}

// storeCollector reports on whichever store was bound last.
type storeCollector struct {
	mu     sync.RWMutex
	store  HealthChecker
	rdb    *redis.Client
	logger *slog.Logger

	upDesc    *prometheus.Desc
	usersDesc *prometheus.Desc
}

func newStoreCollector(store HealthChecker, rdb *redis.Client, logger *slog.Logger) *storeCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &storeCollector{
		store:  store,
		rdb:    rdb,
		logger: logger,
		upDesc: prometheus.NewDesc(
			"leaderboards_store_up",
			"Whether the user store answered its last health check (1) or not (0).",
			nil,
			nil,
		),
		usersDesc: prometheus.NewDesc(
			"leaderboards_users",
			"Number of registered users (redis store only).",
			nil,
			nil,
		),
	}
}

func (c *storeCollector) bind(store HealthChecker, rdb *redis.Client, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store, c.rdb, c.logger = store, rdb, logger
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.upDesc
	ch <- c.usersDesc
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	store, rdb, logger := c.store, c.rdb, c.logger
	c.mu.RUnlock()
	if store == nil {
		return
	}

	// Keep store reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	up := 1.0
	if err := store.Health(ctx); err != nil {
		logger.Warn("prometheus store health check failed", "err", err)
		up = 0
	}
	emitGauge(ch, c.upDesc, up)

	if rdb == nil || up == 0 {
		return
	}
	n, err := rdb.HLen(ctx, "lb:users").Result()
	if err != nil && err != redis.Nil {
		logger.Warn("prometheus store collector failed", "err", err)
		return
	}
	emitGauge(ch, c.usersDesc, float64(n))
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var (
	defaultStoreCollector      = newStoreCollector(nil, nil, nil)
	registerStoreCollectorOnce sync.Once
)

// RegisterStoreCollector points the default-registry collector at store.
// Later calls rebind it, so /metrics follows the most recent application.
// rdb may be nil when the store is not redis-backed.
func RegisterStoreCollector(store HealthChecker, rdb *redis.Client, logger *slog.Logger) {
	defaultStoreCollector.bind(store, rdb, logger)
	registerStoreCollectorOnce.Do(func() {
		prometheus.MustRegister(defaultStoreCollector)
	})
}
