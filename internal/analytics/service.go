package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

// Computer is the uncached computation behind each analytics view.
type Computer interface {
	Compute(ctx context.Context, q Query) (*Result, error)
	CategoryStats(ctx context.Context, q Query) ([]CategoryStat, error)
	SpendingTrends(ctx context.Context, scope Scope, months int) ([]TrendPoint, error)
}

type TTLs struct {
	User   time.Duration
	Global time.Duration
}

// Service serves the analytics views through the cache-aside orchestrator.
// Each method reports whether the payload came from the cache.
type Service struct {
	computer Computer
	cache    *cache.Orchestrator
	ttl      TTLs
	logger   *slog.Logger
}

func NewService(computer Computer, orch *cache.Orchestrator, ttl TTLs, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if orch == nil {
		orch = cache.NewOrchestrator(cache.NewNullStore())
	}
	return &Service{
		computer: computer,
		cache:    orch,
		ttl:      ttl,
		logger:   logger,
	}
}

func (s *Service) GetUserAnalytics(ctx context.Context, userID int64, q Query) (*Result, bool, error) {
	q.Scope = UserScope(userID)
	key := cache.UserAnalyticsKey(userID, string(q.Period), q.Year, q.Month)

	res, fromCache, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.User, func(ctx context.Context) (*Result, error) {
		return s.computer.Compute(ctx, q)
	})
	if err != nil {
		s.log(ctx).Error("user analytics failed", "user_id", userID, "error", err)
		return nil, false, err
	}
	return res, fromCache, nil
}

// GetGlobalAnalytics aggregates over every user. Callers are expected to
// have checked the role already.
func (s *Service) GetGlobalAnalytics(ctx context.Context, q Query) (*Result, bool, error) {
	q.Scope = GlobalScope()
	key := cache.GlobalAnalyticsKey(string(q.Period), q.Year, q.Month)

	res, fromCache, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.Global, func(ctx context.Context) (*Result, error) {
		return s.computer.Compute(ctx, q)
	})
	if err != nil {
		s.log(ctx).Error("global analytics failed", "error", err)
		return nil, false, err
	}
	return res, fromCache, nil
}

func (s *Service) GetCategoryAnalytics(ctx context.Context, userID int64, q Query) ([]CategoryStat, bool, error) {
	q.Scope = UserScope(userID)
	key := cache.UserCategoryAnalyticsKey(userID, string(q.Period), q.Year, q.Month)

	stats, fromCache, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.User, func(ctx context.Context) ([]CategoryStat, error) {
		return s.computer.CategoryStats(ctx, q)
	})
	if err != nil {
		s.log(ctx).Error("category analytics failed", "user_id", userID, "error", err)
		return nil, false, err
	}
	return stats, fromCache, nil
}

func (s *Service) GetSpendingTrends(ctx context.Context, userID int64, months int) ([]TrendPoint, bool, error) {
	if months <= 0 {
		months = DefaultTrendMonths
	}
	key := cache.UserTrendsKey(userID, months)

	points, fromCache, err := cache.GetOrCompute(ctx, s.cache, key, s.ttl.User, func(ctx context.Context) ([]TrendPoint, error) {
		return s.computer.SpendingTrends(ctx, UserScope(userID), months)
	})
	if err != nil {
		s.log(ctx).Error("spending trends failed", "user_id", userID, "error", err)
		return nil, false, err
	}
	return points, fromCache, nil
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.From(ctx, s.logger)
}
