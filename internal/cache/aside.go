package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

// Orchestrator implements cache-aside reads over a Store.
type Orchestrator struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	epoch   *Epoch
	flight  *singleflight.Group
}

type OrchestratorOption func(*Orchestrator)

// WithSingleFlight collapses concurrent misses on the same key into one computation.
func WithSingleFlight() OrchestratorOption {
	return func(o *Orchestrator) {
		o.flight = &singleflight.Group{}
	}
}

// WithEpoch ties fills to the invalidation epoch of a Coordinator. A fill
// that overlaps an invalidation returns its value but does not store it, and
// readers arriving after the invalidation never join it.
func WithEpoch(e *Epoch) OrchestratorOption {
	return func(o *Orchestrator) {
		o.epoch = e
	}
}

func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewOrchestrator(store Store, opts ...OrchestratorOption) *Orchestrator {
	if store == nil {
		store = NewNullStore()
	}
	o := &Orchestrator{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetOrCompute returns the cached value for key, or runs compute, stores its
// result for ttl and returns it. The bool reports whether the value came from
// the cache. Only compute errors are returned; store failures degrade to a
// direct computation and are logged.
func GetOrCompute[T any](ctx context.Context, o *Orchestrator, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	if !o.store.Available() {
		o.metrics.bypass(key)
		v, err := compute(ctx)
		return v, false, err
	}

	seen := o.epoch.Current()

	if v, ok := lookup[T](ctx, o, key); ok {
		return v, true, nil
	}
	o.metrics.miss(key)

	if o.flight == nil {
		v, err := fill(ctx, o, key, ttl, seen, compute)
		return v, false, err
	}

	// The shared computation must not die with whichever caller arrived first.
	shared := context.WithoutCancel(ctx)
	res, err, _ := o.flight.Do(key+"@"+strconv.FormatUint(seen, 10), func() (interface{}, error) {
		return fill(shared, o, key, ttl, seen, compute)
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

func lookup[T any](ctx context.Context, o *Orchestrator, key string) (T, bool) {
	var zero T

	raw, found, err := o.store.Get(ctx, key)
	if err != nil {
		o.metrics.storeError("get")
		logger.From(ctx, o.logger).Warn("cache lookup failed, computing directly", "key", key, "error", err)
		return zero, false
	}
	if !found {
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		logger.From(ctx, o.logger).Warn("discarding undecodable cache entry", "key", key, "error", err)
		if derr := o.store.Delete(ctx, key); derr != nil {
			o.metrics.storeError("delete")
		}
		return zero, false
	}

	o.metrics.hit(key)
	return v, true
}

func fill[T any](ctx context.Context, o *Orchestrator, key string, ttl time.Duration, seen uint64, compute func(ctx context.Context) (T, error)) (T, error) {
	v, err := compute(ctx)
	if err != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		logger.From(ctx, o.logger).Warn("cache write skipped, value not serializable", "key", key, "error", err)
		return v, nil
	}

	stored := o.epoch.holding(seen, func() {
		if err := o.store.SetWithTTL(ctx, key, raw, ttl); err != nil {
			o.metrics.storeError("set")
			logger.From(ctx, o.logger).Warn("cache write failed", "key", key, "error", err)
		}
	})
	if !stored {
		logger.From(ctx, o.logger).Debug("cache write skipped, invalidated while computing", "key", key)
	}
	return v, nil
}
