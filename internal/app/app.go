package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/principal"
	"github.com/MrEthical07/authcore/principal/postgres"
)

// App is the wired process: engine, backing stores and their closers.
type App struct {
	Config *Config
	Logger *slog.Logger
	Engine *authcore.Engine
	Redis  *redis.Client

	principals principal.Store
	closers    []func() error
}

// Open connects the backing stores and builds the engine. In dev mode an
// in-process Redis and a memory principal store are used.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.openStores(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	ec := cfg.EngineConfig()
	if len(ec.Token.SigningKey) == 0 {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			_ = a.Close()
			return nil, err
		}
		ec.Token.SigningKey = key
		logger.Warn("authcore: using an ephemeral signing key; tokens will not survive a restart")
	}

	b := authcore.New().
		WithConfig(ec).
		WithRedis(a.Redis).
		WithPrincipalStore(a.principals).
		WithLogger(logger)
	if cfg.AuditEnabled {
		b = b.WithAuditSink(authcore.SlogSink{Logger: logger.With("component", "audit")})
	}
	engine, err := b.Build()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.Engine = engine
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config
	if cfg.DevInMemory {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start in-process redis: %w", err)
		}
		a.closers = append(a.closers, func() error { mr.Close(); return nil })
		cfg.RedisAddr = mr.Addr()
		cfg.RedisPassword = ""
		cfg.RedisDB = 0
		a.principals = principal.NewMemoryStore(nil)
		a.Logger.Info("authcore: dev mode, in-memory stores", "redis", mr.Addr())
	}

	a.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, a.Redis.Close)
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	if a.principals != nil {
		return nil
	}
	store, err := postgres.Open(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store.Close)
	if cfg.PGMigrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}
	a.principals = store
	return nil
}

// Principals returns the principal store the engine was built with.
func (a *App) Principals() principal.Store { return a.principals }

// Handler builds the HTTP surface with /metrics mounted when metrics are on.
func (a *App) Handler() (http.Handler, error) {
	hc := httpapi.Config{
		AuthRateLimit:          a.Config.HTTPRateLimit,
		ExternalIdentityHeader: a.Config.ExternalIdentityHeader,
		Production:             a.Config.IsProduction(),
	}
	if a.Config.MetricsEnabled {
		mh, err := promexport.Handler(a.Engine)
		if err != nil {
			return nil, err
		}
		hc.MetricsHandler = mh
	}
	return httpapi.NewHandler(a.Engine, a.Logger, hc).Routes(), nil
}

// AsynqRedis returns connection options for the asynq client, server and
// scheduler, pointing at the same Redis as the engine.
func (a *App) AsynqRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}
}

// Close shuts the engine down and then closes stores in reverse order.
func (a *App) Close() error {
	if a.Engine != nil {
		a.Engine.Close()
	}
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
