package cache_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/frahmantamala/finance-tracker/internal/cache"
	"github.com/frahmantamala/finance-tracker/internal/core/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []cache.Invalidation
	err  error
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, inv cache.Invalidation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, inv)
	return r.err
}

var _ = Describe("Coordinator", func() {
	var (
		ctx         context.Context
		store       *flakyStore
		coordinator *cache.Coordinator
		slogger     *slog.Logger
	)

	seed := func(keys ...string) {
		for _, k := range keys {
			Expect(store.MemoryStore.SetWithTTL(ctx, k, []byte("x"), time.Minute)).To(Succeed())
		}
	}

	exists := func(key string) bool {
		_, ok, _ := store.MemoryStore.Get(ctx, key)
		return ok
	}

	BeforeEach(func() {
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = newFlakyStore()
		coordinator = cache.NewCoordinator(store, slogger, nil)
	})

	Describe("OnTransactionMutated", func() {
		It("clears the owner's analytics, lists and the global analytics", func() {
			seed(
				"analytics:user:7:month:2025:3",
				"analytics:user:7:trends:6",
				`transactions:user:7:{"page":1}`,
				"analytics:global:month::",
				"analytics:user:8:month:2025:3",
				`transactions:user:8:{"page":1}`,
				"categories:all",
			)

			coordinator.OnTransactionMutated(ctx, 7)

			Expect(exists("analytics:user:7:month:2025:3")).To(BeFalse())
			Expect(exists("analytics:user:7:trends:6")).To(BeFalse())
			Expect(exists(`transactions:user:7:{"page":1}`)).To(BeFalse())
			Expect(exists("analytics:global:month::")).To(BeFalse())

			Expect(exists("analytics:user:8:month:2025:3")).To(BeTrue())
			Expect(exists(`transactions:user:8:{"page":1}`)).To(BeTrue())
			Expect(exists("categories:all")).To(BeTrue())
		})

		It("swallows store failures", func() {
			store.failDelete = true
			Expect(func() { coordinator.OnTransactionMutated(ctx, 7) }).NotTo(Panic())
			Expect(store.prefixes).To(HaveLen(3))
		})

		It("still hands the prefixes to a store that reports unavailable", func() {
			store.unavailable = true
			coordinator.OnTransactionMutated(ctx, 7)
			Expect(store.prefixes).To(ConsistOf(
				cache.UserAnalyticsPrefix(7),
				cache.UserTransactionsPrefix(7),
				cache.GlobalAnalyticsPrefix,
			))
		})

		It("advances the epoch", func() {
			before := coordinator.Epoch().Current()
			coordinator.OnTransactionMutated(ctx, 7)
			coordinator.Apply(ctx, cache.Invalidation{Scope: cache.ScopeCategories})
			Expect(coordinator.Epoch().Current()).To(Equal(before + 2))
		})
	})

	Describe("OnCategoryMutated", func() {
		It("clears every category listing and nothing else", func() {
			seed("categories:all", "categories:income", "categories:expense", "analytics:user:1:month::")

			coordinator.OnCategoryMutated(ctx)

			Expect(exists("categories:all")).To(BeFalse())
			Expect(exists("categories:income")).To(BeFalse())
			Expect(exists("categories:expense")).To(BeFalse())
			Expect(exists("analytics:user:1:month::")).To(BeTrue())
		})

		It("clears derived payloads when presentation changes", func() {
			seed("categories:all", "analytics:user:1:month::", `transactions:user:2:{}`, "analytics:global:year::")

			coordinator.OnCategoryPresentationChanged(ctx)

			Expect(store.MemoryStore.Len()).To(BeZero())
		})
	})

	Describe("broadcasting", func() {
		It("forwards every local invalidation and ignores broadcast errors", func() {
			b := &recordingBroadcaster{err: errors.New("broker down")}
			coordinator.SetBroadcaster(b)

			coordinator.OnTransactionMutated(ctx, 3)
			coordinator.OnCategoryMutated(ctx)

			Expect(b.sent).To(Equal([]cache.Invalidation{
				{Scope: cache.ScopeUser, UserID: 3},
				{Scope: cache.ScopeCategories},
			}))
		})

		It("does not re-broadcast invalidations applied from peers", func() {
			b := &recordingBroadcaster{}
			coordinator.SetBroadcaster(b)
			seed("categories:all")

			removed := coordinator.Apply(ctx, cache.Invalidation{Scope: cache.ScopeCategories})

			Expect(removed).To(Equal(1))
			Expect(b.sent).To(BeEmpty())
		})

		It("flushes everything locally and tells peers on a full invalidation", func() {
			b := &recordingBroadcaster{}
			coordinator.SetBroadcaster(b)
			seed("categories:all", "analytics:global:summary", "transactions:user:2:page:1")

			removed := coordinator.Invalidate(ctx, cache.Invalidation{Scope: cache.ScopeAll})

			Expect(removed).To(Equal(3))
			Expect(exists("categories:all")).To(BeFalse())
			Expect(exists("transactions:user:2:page:1")).To(BeFalse())
			Expect(b.sent).To(Equal([]cache.Invalidation{{Scope: cache.ScopeAll}}))
		})
	})

	Describe("event subscriptions", func() {
		var bus *events.EventBus

		BeforeEach(func() {
			bus = events.NewEventBus(slogger)
			cache.RegisterEventHandlers(bus, coordinator)
		})

		It("invalidates the owner, not the actor, on transaction events", func() {
			seed("analytics:user:5:month::", "analytics:user:1:month::")

			ev := events.NewTransactionMutatedEvent(events.EventTypeTransactionUpdated, 10, 5, 1)
			Expect(bus.PublishSync(ctx, ev)).To(Succeed())

			Expect(exists("analytics:user:5:month::")).To(BeFalse())
			Expect(exists("analytics:user:1:month::")).To(BeTrue())
		})

		It("clears categories on category events", func() {
			seed("categories:all", "analytics:user:1:month::")

			Expect(bus.PublishSync(ctx, events.NewCategoryMutatedEvent(events.EventTypeCategoryCreated, 4, false))).To(Succeed())
			Expect(exists("categories:all")).To(BeFalse())
			Expect(exists("analytics:user:1:month::")).To(BeTrue())

			seed("categories:all")
			Expect(bus.PublishSync(ctx, events.NewCategoryMutatedEvent(events.EventTypeCategoryUpdated, 4, true))).To(Succeed())
			Expect(exists("categories:all")).To(BeFalse())
			Expect(exists("analytics:user:1:month::")).To(BeFalse())
		})

		It("drops a deleted user's entries and global analytics", func() {
			seed("analytics:user:5:month::", "analytics:global:month::", "analytics:user:1:month::")

			Expect(bus.PublishSync(ctx, events.NewUserDeletedEvent(5, 1))).To(Succeed())
			Expect(exists("analytics:user:5:month::")).To(BeFalse())
			Expect(exists("analytics:global:month::")).To(BeFalse())
			Expect(exists("analytics:user:1:month::")).To(BeTrue())
		})
	})
})
