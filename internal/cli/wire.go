package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/nidhogg/crew/internal/artifact"
	"github.com/nidhogg/crew/internal/cache"
	"github.com/nidhogg/crew/internal/config"
	"github.com/nidhogg/crew/internal/gateway"
	"github.com/nidhogg/crew/internal/metrics"
	"github.com/nidhogg/crew/internal/orchestrator"
	"github.com/nidhogg/crew/internal/provider"
	pgstore "github.com/nidhogg/crew/internal/store"
	"go.uber.org/zap"
)

// app is one fully wired crew instance.
type app struct {
	cfg         *config.Config
	router      *provider.Router
	steward     *orchestrator.Steward
	cache       cache.Cache
	store       *pgstore.Store
	broadcaster *gateway.Broadcaster
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func buildProviders(cfg *config.Config, logger *zap.Logger) (*provider.Router, error) {
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		p, err := provider.New(provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
			Timeout: pc.Timeout.Std(),
		}, logger)
		if err != nil {
			return nil, err
		}
		router.Register(p)
	}
	return router, nil
}

// openStore connects to Postgres when a DSN is configured. An unreachable
// database is logged and skipped.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) *pgstore.Store {
	if cfg.Database.Postgres.DSN == "" {
		return nil
	}
	st, err := pgstore.New(ctx, cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		logger.Warn("migration failed, running without persistence", zap.Error(err))
		_ = st.Close()
		return nil
	}
	return st
}

// openCache returns the configured backend, or nil when caching is off.
func openCache(ctx context.Context, cfg *config.Config, st *pgstore.Store) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemory(), nil
	case "sqlite":
		return cache.OpenSQLite(cfg.Cache.Path)
	case "redis":
		if cfg.Database.Redis.URL == "" {
			return nil, errors.New("redis cache needs database.redis.url")
		}
		return cache.NewRedis(ctx, cfg.Database.Redis.URL, cfg.Cache.TTL.Std())
	case "postgres":
		if st == nil {
			return nil, errors.New("postgres cache needs a reachable database.postgres.dsn")
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func buildSinks(ctx context.Context, cfg *config.Config, b *gateway.Broadcaster, logger *zap.Logger) {
	ev := cfg.Events
	if ev.Redis.Enabled {
		if cfg.Database.Redis.URL == "" {
			logger.Warn("redis events enabled without database.redis.url")
		} else if rs, err := gateway.NewRedisStream(ctx, cfg.Database.Redis.URL, ev.Redis.Stream, logger); err != nil {
			logger.Warn("Redis unavailable, running without event stream", zap.Error(err))
		} else {
			b.Add(rs)
		}
	}
	if ev.Slack.Enabled && ev.Slack.WebhookURL != "" {
		b.Add(gateway.NewSlackWebhook(ev.Slack.WebhookURL, ev.Slack.Username, logger))
	}
	if ev.Discord.Enabled && ev.Discord.WebhookURL != "" {
		d, err := gateway.NewDiscordWebhook(ev.Discord.WebhookURL, ev.Discord.Username, logger)
		if err != nil {
			logger.Warn("discord webhook disabled", zap.Error(err))
		} else {
			b.Add(d)
		}
	}
}

// build wires every component named in cfg.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	reg, err := cfg.Roster()
	if err != nil {
		return nil, err
	}
	router, err := buildProviders(cfg, logger)
	if err != nil {
		return nil, err
	}
	asm, err := artifact.New(artifact.Options{
		Format: artifact.Format(cfg.Artifact.Format),
		Title:  cfg.Artifact.Title,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		router:      router,
		broadcaster: gateway.NewBroadcaster(cfg.Events.History, logger),
		metrics:     metrics.NewMetrics(),
		logger:      logger,
	}
	a.store = openStore(ctx, cfg, logger)
	if a.cache, err = openCache(ctx, cfg, a.store); err != nil {
		logger.Warn("cache unavailable, running without cache", zap.String("backend", cfg.Cache.Backend), zap.Error(err))
		a.cache = nil
	}
	buildSinks(ctx, cfg, a.broadcaster, logger)

	scfg := orchestrator.StewardConfig{
		Roster: reg,
		Dispatcher: orchestrator.NewDispatcher(router, orchestrator.DispatchConfig{
			Workers: cfg.Dispatch.Workers,
			Timeout: cfg.Dispatch.Timeout.Std(),
		}, logger),
		Assembler:    asm,
		ArtifactPath: cfg.Artifact.Path,
		Cache:        a.cache,
		Events:       a.broadcaster,
		Metrics:      a.metrics,
	}
	if a.store != nil {
		scfg.Rounds = a.store
	}
	if a.steward, err = orchestrator.NewSteward(scfg, logger); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases every connection the app opened.
func (a *app) Close() {
	if err := a.broadcaster.Close(); err != nil {
		a.logger.Debug("closing sinks", zap.Error(err))
	}
	if _, shared := a.cache.(*pgstore.Store); a.cache != nil && !shared {
		_ = a.cache.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}
