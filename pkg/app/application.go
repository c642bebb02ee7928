package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/osvaldoandrade/leaderboards/internal/authz"
	"github.com/osvaldoandrade/leaderboards/internal/backoff"
	"github.com/osvaldoandrade/leaderboards/internal/metrics"
	"github.com/osvaldoandrade/leaderboards/internal/middleware"
	"github.com/osvaldoandrade/leaderboards/internal/ratelimit"
	"github.com/osvaldoandrade/leaderboards/internal/roles"
	"github.com/osvaldoandrade/leaderboards/internal/services"
	"github.com/osvaldoandrade/leaderboards/internal/tracing"
	"github.com/osvaldoandrade/leaderboards/pkg/auth"
	"github.com/osvaldoandrade/leaderboards/pkg/config"
	"github.com/osvaldoandrade/leaderboards/pkg/persistence"
	_ "github.com/osvaldoandrade/leaderboards/pkg/persistence/memory" // Register in-memory store
	redisstore "github.com/osvaldoandrade/leaderboards/pkg/persistence/redis"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const (
	storeRetryBase    = 200 * time.Millisecond
	storeRetryMax     = 3 * time.Second
	storeProbeTimeout = 2 * time.Second
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Logger          *slog.Logger
	TZ              *time.Location
	Store           persistence.PluginPersistence
	Codec           *auth.Codec
	Authorizer      *authz.Evaluator
	Accounts        services.AccountService
	Modships        services.ModshipService
	RateLimiter     ratelimit.Limiter
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithStore replaces the store named by the config
func WithStore(store persistence.PluginPersistence) ApplicationOption {
	return func(app *Application) error {
		app.Store = store
		return nil
	}
}

// WithRateLimiter replaces the redis limiter, or enables one for the memory store
func WithRateLimiter(lim ratelimit.Limiter) ApplicationOption {
	return func(app *Application) error {
		app.RateLimiter = lim
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.FixedZone("UTC", 0)
	}

	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing setup: %w", err)
	}

	app := &Application{
		Config:          cfg,
		Logger:          logger,
		TZ:              loc,
		TracingShutdown: shutdown,
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.Store == nil {
		store, err := OpenStore(cfg, loc)
		if err != nil {
			return nil, err
		}
		if err := WaitForStore(context.Background(), store, cfg.StoreConnectAttempts, logger); err != nil {
			_ = store.Close()
			return nil, err
		}
		app.Store = store
	}
	var rdb *redis.Client
	if rs, ok := app.Store.(*redisstore.Plugin); ok {
		rdb = rs.Client()
		if app.RateLimiter == nil {
			app.RateLimiter = ratelimit.NewTokenBucketLimiter(rdb)
		}
	}
	if app.RateLimiter == nil && cfg.RateLimit.Login.RequestsPerMinute > 0 {
		logger.Warn("login rate limit configured but the store is not redis; limiting disabled", "store", cfg.StoreProvider)
	}
	metrics.RegisterStoreCollector(app.Store, rdb, logger)

	// One parameter set per process, built from the validated config.
	params := auth.NewParameterCache(nil).Get(cfg)
	app.Codec = auth.NewCodec(params, auth.WithTTL(cfg.TokenTTL()))

	resolver := roles.NewResolver(app.Store.UserStorage(), app.Store.ModshipStorage())
	app.Authorizer = authz.NewEvaluator(app.Codec, resolver, logger)
	app.Accounts = services.NewAccountService(app.Store.UserStorage(), app.Codec, logger, time.Now)
	app.Modships = services.NewModshipService(app.Store.UserStorage(), app.Store.ModshipStorage(), logger, time.Now)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
		middleware.LoggerMiddleware(logger),
	)
	app.Engine = engine

	return app, nil
}

// OpenStore builds the configured store through the provider registry.
func OpenStore(cfg *config.Config, loc *time.Location) (persistence.PluginPersistence, error) {
	pc := persistence.ProviderConfig{Type: cfg.StoreProvider}
	if cfg.StoreProvider == "redis" {
		raw, err := json.Marshal(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, err
		}
		pc.Config = raw
	}
	store, err := persistence.NewPersistence(pc, persistence.PluginConfig{Timezone: loc})
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreProvider, err)
	}
	return store, nil
}

// WaitForStore probes the store until it answers, backing off with full jitter between tries.
func WaitForStore(ctx context.Context, store persistence.PluginPersistence, attempts int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	try := 0
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	err := backoff.Retry(ctx, attempts, "exp_full_jitter", storeRetryBase, storeRetryMax, rng, func(ctx context.Context) error {
		try++
		pctx, cancel := context.WithTimeout(ctx, storeProbeTimeout)
		defer cancel()
		err := store.Health(pctx)
		if err != nil {
			logger.Warn("store not ready", "attempt", try, "err", err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("store unavailable after %d attempts: %w", try, err)
	}
	return nil
}

// NewLogger builds the JSON or text slog logger described by cfg.
func NewLogger(cfg *config.Config) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "leaderboards", "env", cfg.Env)
}

// Close flushes traces and releases the store.
func (a *Application) Close(ctx context.Context) error {
	if a.TracingShutdown != nil {
		_ = a.TracingShutdown(ctx)
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
