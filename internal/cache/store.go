// Package cache holds the lookaside cache used by the analytics, transaction
// and category read paths: the store adapters, the key builder, the
// cache-aside orchestrator and the invalidation coordinator.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by stores that are disabled or whose breaker is open.
var ErrUnavailable = errors.New("cache store unavailable")

// Store is a key-value store with per-key expiry.
//
// Implementations must be safe for concurrent use. Get reports a miss as
// (nil, false, nil); errors are reserved for transport failures.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key starting with prefix and returns how
	// many were removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	// Available is consulted before reads. An unavailable store is bypassed
	// by GetOrCompute but still receives invalidations, which it must not
	// lose.
	Available() bool
	Ping(ctx context.Context) error
	Close() error
}
