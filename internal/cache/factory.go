package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/finance-tracker/internal"
)

// NewStoreFromConfig selects the store for cfg.Driver. An unreachable Redis
// at startup is logged, not fatal: the breaker keeps the service in
// degraded mode until Redis answers.
func NewStoreFromConfig(ctx context.Context, cfg internal.CacheConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "none", "":
		logger.Info("cache disabled, serving every read from the ledger")
		return NewNullStore(), nil

	case "memory":
		logger.Info("using in-process cache store", "cleanup_interval", cfg.CleanupInterval, "max_items", cfg.MaxItems)
		return NewMemoryStore(cfg.CleanupInterval, WithMaxItems(cfg.MaxItems)), nil

	case "redis":
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}
		store := NewRedisStore(client, RedisOptions{
			OpTimeout:          cfg.OpTimeout,
			Invalidation:       cfg.Invalidation,
			IndexTTL:           longestTTL(cfg.TTL),
			BreakerMaxFailures: cfg.Breaker.MaxFailures,
			BreakerOpenTimeout: cfg.Breaker.OpenTimeout,
			BreakerInterval:    cfg.Breaker.Interval,
			Logger:             logger,
		})
		if err := store.Ping(ctx); err != nil {
			logger.Warn("redis not reachable at startup, cache degraded", "error", err)
		} else {
			logger.Info("connected to redis cache", "invalidation", cfg.Invalidation)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

func longestTTL(ttl internal.CacheTTLConfig) (longest time.Duration) {
	for _, d := range []time.Duration{ttl.UserAnalytics, ttl.GlobalAnalytics, ttl.Categories, ttl.Transactions} {
		if d > longest {
			longest = d
		}
	}
	return longest
}
