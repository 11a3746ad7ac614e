package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const (
	InvalidationScan  = "scan"
	InvalidationIndex = "index"

	indexKeyPrefix = "keyindex:"
	scanBatchSize  = 100

	// past this many deferred prefixes the whole owned keyspace is cleared
	maxDeferred = 256
)

type RedisOptions struct {
	// OpTimeout bounds every get, set and delete.
	OpTimeout time.Duration
	// InvalidationTimeout bounds a whole DeleteByPrefix run.
	InvalidationTimeout time.Duration
	// Invalidation is InvalidationScan or InvalidationIndex.
	Invalidation string
	// IndexTTL is the lifetime of a per-user index set; it must cover the
	// longest entry TTL.
	IndexTTL time.Duration

	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	BreakerInterval    time.Duration

	Logger *slog.Logger
}

// RedisStore is the Store backed by Redis. Every call runs through a
// circuit breaker; while the breaker is open the store reports itself
// unavailable and callers fall back to direct computation.
type RedisStore struct {
	client              *redis.Client
	breaker             *gobreaker.CircuitBreaker
	opTimeout           time.Duration
	invalidationTimeout time.Duration
	indexed             bool
	indexTTL            time.Duration
	logger              *slog.Logger

	// prefixes whose invalidation failed; cleared before the next operation
	deferredMu sync.Mutex
	deferred   map[string]struct{}
}

// NewRedisClient builds a client from a redis:// URL when one is set,
// otherwise from the address fields.
func NewRedisClient(cfg internal.RedisConfig) (*redis.Client, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		return redis.NewClient(opts), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}), nil
}

func NewRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	if opts.InvalidationTimeout <= 0 {
		opts.InvalidationTimeout = 2 * time.Second
	}
	if opts.IndexTTL <= 0 {
		opts.IndexTTL = time.Hour
	}
	if opts.BreakerMaxFailures == 0 {
		opts.BreakerMaxFailures = 5
	}

	s := &RedisStore{
		client:              client,
		opTimeout:           opts.OpTimeout,
		invalidationTimeout: opts.InvalidationTimeout,
		indexed:             opts.Invalidation == InvalidationIndex,
		indexTTL:            opts.IndexTTL,
		logger:              opts.Logger,
		deferred:            make(map[string]struct{}),
	}

	maxFailures := opts.BreakerMaxFailures
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Interval:    opts.BreakerInterval,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			s.logger.Warn("cache circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not a store failure
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := s.execute(ctx, s.opTimeout, func(ctx context.Context) (interface{}, error) {
		b, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		return nil, false, err
	}

	b, _ := res.([]byte)
	if b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.execute(ctx, s.opTimeout, func(ctx context.Context) (interface{}, error) {
		scope := IndexScope(key)
		if !s.indexed || scope == "" {
			return nil, s.client.Set(ctx, key, value, ttl).Err()
		}

		pipe := s.client.TxPipeline()
		pipe.Set(ctx, key, value, ttl)
		pipe.SAdd(ctx, indexKey(scope), key)
		pipe.Expire(ctx, indexKey(scope), s.indexTTL)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.execute(ctx, s.opTimeout, func(ctx context.Context) (interface{}, error) {
		return nil, s.client.Del(ctx, key).Err()
	})
	return err
}

// DeleteByPrefix removes keys under prefix. With the index strategy a
// per-user scope is resolved from its index set; every other prefix falls
// back to an incremental SCAN, which never blocks the server the way KEYS does.
//
// When the delete fails, including while the breaker is open, the prefix is
// kept and cleared before the store serves anything else.
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	res, err := s.execute(ctx, s.invalidationTimeout, func(ctx context.Context) (interface{}, error) {
		return s.deletePrefix(ctx, prefix)
	})
	if err != nil {
		s.deferPrefix(prefix)
		return 0, err
	}
	n, _ := res.(int)
	return n, nil
}

func (s *RedisStore) Available() bool {
	return s.breaker.State() != gobreaker.StateOpen
}

func (s *RedisStore) Ping(ctx context.Context) error {
	_, err := s.execute(ctx, s.opTimeout, func(ctx context.Context) (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) deletePrefix(ctx context.Context, prefix string) (int, error) {
	if s.indexed && IndexScope(prefix+"x") == prefix {
		return s.deleteIndexed(ctx, prefix)
	}
	return s.deleteScanned(ctx, prefix)
}

func (s *RedisStore) deferPrefix(prefix string) {
	s.deferredMu.Lock()
	defer s.deferredMu.Unlock()

	if len(s.deferred) >= maxDeferred {
		s.deferred = map[string]struct{}{
			AnalyticsPrefix:    {},
			TransactionsPrefix: {},
			CategoriesPrefix:   {},
		}
		return
	}
	s.deferred[prefix] = struct{}{}
}

func (s *RedisStore) pendingPrefixes() []string {
	s.deferredMu.Lock()
	defer s.deferredMu.Unlock()

	out := make([]string, 0, len(s.deferred))
	for p := range s.deferred {
		out = append(out, p)
	}
	return out
}

// clearDeferred runs the invalidations that failed earlier. Any error fails
// the caller's operation, so no read is served while one is outstanding.
func (s *RedisStore) clearDeferred(ctx context.Context) error {
	for _, prefix := range s.pendingPrefixes() {
		n, err := s.deletePrefix(ctx, prefix)
		if err != nil {
			return fmt.Errorf("clear deferred invalidation %q: %w", prefix, err)
		}
		s.deferredMu.Lock()
		delete(s.deferred, prefix)
		s.deferredMu.Unlock()
		logger.From(ctx, s.logger).Info("cleared deferred cache invalidation", "prefix", prefix, "removed", n)
	}
	return nil
}

func (s *RedisStore) deleteIndexed(ctx context.Context, scope string) (int, error) {
	idx := indexKey(scope)
	members, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		if strings.HasPrefix(m, scope) {
			keys = append(keys, m)
		}
	}
	keys = append(keys, idx)

	removed, err := s.client.Unlink(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	// the index set itself is not an entry
	if removed > 0 {
		removed--
	}
	return int(removed), nil
}

func (s *RedisStore) deleteScanned(ctx context.Context, prefix string) (int, error) {
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", scanBatchSize).Iterator()

	removed := 0
	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Unlink(ctx, batch...).Result()
		if err != nil {
			return err
		}
		removed += int(n)
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, flush()
}

func (s *RedisStore) execute(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if len(s.pendingPrefixes()) > 0 && timeout < s.invalidationTimeout {
		timeout = s.invalidationTimeout
	}
	ctx, cancel := internal.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.breaker.Execute(func() (interface{}, error) {
		if err := s.clearDeferred(ctx); err != nil {
			return nil, err
		}
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, err
}

func indexKey(scope string) string {
	return indexKeyPrefix + scope
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
