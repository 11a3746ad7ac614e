package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/frahmantamala/finance-tracker/internal/cache/broadcast"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cached analytics, transactions and categories",
	}

	cacheInvalidateCmd = &cobra.Command{
		Use:   "invalidate",
		Short: "Invalidate cache entries by scope",
		Long: `Invalidate cache entries by scope. Exactly one of --user, --global,
--categories, --derived or --all must be given. When broadcast is enabled
the invalidation is also published to every running replica.`,
		RunE: runCacheInvalidate,
	}

	cachePingCmd = &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured cache store answers",
		RunE:  runCachePing,
	}

	invalidateUser       int64
	invalidateGlobal     bool
	invalidateCategories bool
	invalidateDerived    bool
	invalidateAll        bool
)

func init() {
	f := cacheInvalidateCmd.Flags()
	f.Int64Var(&invalidateUser, "user", 0, "invalidate analytics and transaction lists of this user id")
	f.BoolVar(&invalidateGlobal, "global", false, "invalidate global analytics")
	f.BoolVar(&invalidateCategories, "categories", false, "invalidate the category catalogue")
	f.BoolVar(&invalidateDerived, "derived", false, "invalidate categories and everything that embeds them")
	f.BoolVar(&invalidateAll, "all", false, "invalidate every cache entry")

	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cachePingCmd)
}

// invalidationFromFlags maps the command line to exactly one invalidation.
func invalidationFromFlags(userID int64, global, categories, derived, all bool) (cache.Invalidation, error) {
	var picked []cache.Invalidation
	if userID != 0 {
		if userID < 0 {
			return cache.Invalidation{}, fmt.Errorf("--user must be a positive id")
		}
		picked = append(picked, cache.Invalidation{Scope: cache.ScopeUser, UserID: userID})
	}
	if global {
		picked = append(picked, cache.Invalidation{Scope: cache.ScopeGlobal})
	}
	if categories {
		picked = append(picked, cache.Invalidation{Scope: cache.ScopeCategories})
	}
	if derived {
		picked = append(picked, cache.Invalidation{Scope: cache.ScopeDerived})
	}
	if all {
		picked = append(picked, cache.Invalidation{Scope: cache.ScopeAll})
	}

	switch len(picked) {
	case 0:
		return cache.Invalidation{}, errors.New("one of --user, --global, --categories, --derived or --all is required")
	case 1:
		return picked[0], nil
	default:
		return cache.Invalidation{}, errors.New("only one invalidation scope may be given")
	}
}

func runCacheInvalidate(cmd *cobra.Command, _ []string) error {
	inv, err := invalidationFromFlags(invalidateUser, invalidateGlobal, invalidateCategories, invalidateDerived, invalidateAll)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	lg := logger.LoggerWrapper()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	layer, err := initCache(ctx, cfg.Cache, lg)
	if err != nil {
		return err
	}
	defer layer.Store.Close()

	if cfg.Cache.Broadcast.Enabled {
		b, err := broadcast.Dial(cfg.Cache.Broadcast.AMQPURL, cfg.Cache.Broadcast.Exchange, lg)
		if err != nil {
			return fmt.Errorf("broadcast invalidation: %w", err)
		}
		defer b.Close()
		layer.Coordinator.SetBroadcaster(b)
	}

	removed := layer.Coordinator.Invalidate(ctx, inv)
	fmt.Printf("Removed %d cache entries (scope %s)\n", removed, inv.Scope)
	return nil
}

func runCachePing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	store, err := cache.NewStoreFromConfig(ctx, cfg.Cache, logger.LoggerWrapper())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("cache %s unavailable: %w", cfg.Cache.Driver, err)
	}
	fmt.Printf("cache %s ok\n", cfg.Cache.Driver)
	return nil
}
