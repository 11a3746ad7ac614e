package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

type Scope string

const (
	ScopeUser       Scope = "user"
	ScopeGlobal     Scope = "global"
	ScopeCategories Scope = "categories"
	ScopeDerived    Scope = "derived"
	ScopeAll        Scope = "all"
)

// Invalidation describes one invalidation run. It is also the message
// exchanged between replicas.
type Invalidation struct {
	Scope  Scope `json:"scope"`
	UserID int64 `json:"user_id,omitempty"`
}

// Prefixes returns the key prefixes the invalidation removes.
func (i Invalidation) Prefixes() []string {
	switch i.Scope {
	case ScopeUser:
		return []string{
			UserAnalyticsPrefix(i.UserID),
			UserTransactionsPrefix(i.UserID),
			GlobalAnalyticsPrefix,
		}
	case ScopeGlobal:
		return []string{GlobalAnalyticsPrefix}
	case ScopeCategories:
		return []string{CategoriesPrefix}
	case ScopeDerived:
		return []string{CategoriesPrefix, AnalyticsPrefix, TransactionsPrefix}
	case ScopeAll:
		return []string{AnalyticsPrefix, TransactionsPrefix, CategoriesPrefix}
	default:
		return nil
	}
}

func (i Invalidation) label() string {
	if i.Scope == ScopeUser {
		return "user:" + strconv.FormatInt(i.UserID, 10)
	}
	return string(i.Scope)
}

// Broadcaster forwards invalidations to other replicas.
type Broadcaster interface {
	Broadcast(ctx context.Context, inv Invalidation) error
}

// Epoch counts invalidations. A cache fill that started before an
// invalidation must not store its result after it, and must not be shared
// with readers that arrive after it.
type Epoch struct {
	mu sync.RWMutex
	n  uint64
}

func NewEpoch() *Epoch {
	return &Epoch{}
}

func (e *Epoch) Current() uint64 {
	if e == nil {
		return 0
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.n
}

func (e *Epoch) advance() {
	if e == nil {
		return
	}
	e.mu.Lock()
	e.n++
	e.mu.Unlock()
}

// holding runs fn only if no invalidation happened since seen. An
// invalidation cannot start while fn runs, so a write made by fn is always
// visible to the next invalidation.
func (e *Epoch) holding(seen uint64, fn func()) bool {
	if e == nil {
		fn()
		return true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.n != seen {
		return false
	}
	fn()
	return true
}

// Coordinator removes cache entries after ledger mutations. It never returns
// errors: cache consistency is best effort, ledger consistency is not.
type Coordinator struct {
	store       Store
	logger      *slog.Logger
	metrics     *Metrics
	epoch       *Epoch
	broadcaster Broadcaster
}

func NewCoordinator(store Store, logger *slog.Logger, metrics *Metrics) *Coordinator {
	if store == nil {
		store = NewNullStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		logger:  logger,
		metrics: metrics,
		epoch:   NewEpoch(),
	}
}

// Epoch is advanced on every invalidation. Orchestrators reading the same
// store share it through WithEpoch.
func (c *Coordinator) Epoch() *Epoch {
	return c.epoch
}

// SetBroadcaster enables fan-out of local invalidations to peers.
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

// OnTransactionMutated clears every analytics and transaction list entry of
// the owning user, plus global analytics. Call it after the ledger commit.
func (c *Coordinator) OnTransactionMutated(ctx context.Context, ownerID int64) {
	c.Invalidate(ctx, Invalidation{Scope: ScopeUser, UserID: ownerID})
}

// OnCategoryMutated clears the category catalogue.
func (c *Coordinator) OnCategoryMutated(ctx context.Context) {
	c.Invalidate(ctx, Invalidation{Scope: ScopeCategories})
}

// OnCategoryPresentationChanged clears the catalogue and every payload that
// embeds category names or colors.
func (c *Coordinator) OnCategoryPresentationChanged(ctx context.Context) {
	c.Invalidate(ctx, Invalidation{Scope: ScopeDerived})
}

// Invalidate applies inv locally and forwards it to peers.
func (c *Coordinator) Invalidate(ctx context.Context, inv Invalidation) int {
	// the ledger write already committed; a caller hanging up must not
	// leave stale entries behind
	ctx = context.WithoutCancel(ctx)

	removed := c.Apply(ctx, inv)

	if c.broadcaster != nil {
		if err := c.broadcaster.Broadcast(ctx, inv); err != nil {
			logger.From(ctx, c.logger).Warn("cache invalidation broadcast failed", "scope", inv.label(), "error", err)
		}
	}
	return removed
}

// Apply runs inv against the local store only and returns how many entries
// were removed. Used for messages received from peers.
//
// Stores bound the delete themselves. A store that cannot delete right now
// (an open breaker, a timeout) must keep the prefix and clear it before it
// serves another read.
func (c *Coordinator) Apply(ctx context.Context, inv Invalidation) int {
	ctx = context.WithoutCancel(ctx)
	c.epoch.advance()

	removed := 0
	for _, prefix := range inv.Prefixes() {
		n, err := c.store.DeleteByPrefix(ctx, prefix)
		if err != nil {
			c.metrics.storeError("delete_prefix")
			logger.From(ctx, c.logger).Warn("cache invalidation deferred",
				"scope", inv.label(),
				"prefix", prefix,
				"error", err)
			continue
		}
		removed += n
	}

	c.metrics.invalidated(string(inv.Scope))
	logger.From(ctx, c.logger).Debug("cache invalidated", "scope", inv.label(), "removed", removed)
	return removed
}
