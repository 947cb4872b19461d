package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/feelens/feelens-core/internal/lifecycle"
	"github.com/feelens/feelens-core/internal/ratelimit"
	"github.com/feelens/feelens-core/internal/schema"
	"github.com/feelens/feelens-core/internal/scorer"
	"github.com/feelens/feelens-core/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "feelens.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initRegistry(st store.Store) *schema.Registry {
	return schema.NewRegistry(st, time.Duration(cfg.Schema.CacheTTLSecs)*time.Second)
}

func initLimiter() *ratelimit.Limiter {
	rl := ratelimit.DefaultConfig()
	if cfg.RateLimit.DailyCap > 0 {
		rl.DailyCap = cfg.RateLimit.DailyCap
	}
	if cfg.RateLimit.DailyWindowHours > 0 {
		rl.DailyWindow = time.Duration(cfg.RateLimit.DailyWindowHours) * time.Hour
	}
	if cfg.RateLimit.ProviderCap > 0 {
		rl.ProviderCap = cfg.RateLimit.ProviderCap
	}
	if cfg.RateLimit.ProviderCapDays > 0 {
		rl.ProviderWindow = time.Duration(cfg.RateLimit.ProviderCapDays) * 24 * time.Hour
	}
	return ratelimit.New(rl)
}

func initPolicy() lifecycle.PublishPolicy {
	return lifecycle.NewIndustryListPolicy(cfg.Moderation.AutoPublishIndustries)
}

func initScorerConfig() scorer.Config {
	return scorer.DefaultConfig()
}
