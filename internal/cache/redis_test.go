package cache_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/cache"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RedisStore", func() {
	var (
		ctx     context.Context
		mr      *miniredis.Miniredis
		stopped bool
		store   *cache.RedisStore
		slogger *slog.Logger
	)

	newStore := func(strategy string) *cache.RedisStore {
		client, err := cache.NewRedisClient(internal.RedisConfig{Addr: mr.Addr()})
		Expect(err).NotTo(HaveOccurred())
		return cache.NewRedisStore(client, cache.RedisOptions{
			OpTimeout:          time.Second,
			Invalidation:       strategy,
			IndexTTL:           time.Hour,
			BreakerMaxFailures: 2,
			BreakerOpenTimeout: time.Minute,
			Logger:             slogger,
		})
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mr, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		stopped = false
		store = newStore(cache.InvalidationScan)
	})

	AfterEach(func() {
		_ = store.Close()
		if !stopped {
			mr.Close()
		}
	})

	It("round trips values with a TTL", func() {
		Expect(store.SetWithTTL(ctx, "categories:all", []byte(`[1]`), 30*time.Second)).To(Succeed())

		v, ok, err := store.Get(ctx, "categories:all")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(string(v)).To(Equal(`[1]`))
		Expect(mr.TTL("categories:all")).To(Equal(30 * time.Second))

		mr.FastForward(31 * time.Second)
		_, ok, err = store.Get(ctx, "categories:all")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("treats a missing key as a miss, not an error", func() {
		_, ok, err := store.Get(ctx, "nope")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(store.Available()).To(BeTrue())
	})

	It("deletes a single key", func() {
		Expect(store.SetWithTTL(ctx, "k", []byte("v"), time.Minute)).To(Succeed())
		Expect(store.Delete(ctx, "k")).To(Succeed())
		Expect(mr.Exists("k")).To(BeFalse())
	})

	Describe("DeleteByPrefix with scan", func() {
		It("removes only keys under the prefix", func() {
			for _, k := range []string{
				"analytics:user:1:month:2025:3",
				"analytics:user:1:year:2025:",
				"analytics:user:12:month:2025:3",
				"categories:all",
			} {
				Expect(store.SetWithTTL(ctx, k, []byte("x"), time.Minute)).To(Succeed())
			}

			n, err := store.DeleteByPrefix(ctx, cache.UserAnalyticsPrefix(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(mr.Exists("analytics:user:12:month:2025:3")).To(BeTrue())
			Expect(mr.Exists("categories:all")).To(BeTrue())
		})

		It("handles more keys than one scan batch", func() {
			for i := 0; i < 250; i++ {
				key, err := cache.TransactionListKey(5, map[string]int{"page": i})
				Expect(err).NotTo(HaveOccurred())
				Expect(store.SetWithTTL(ctx, key, []byte("x"), time.Minute)).To(Succeed())
			}

			n, err := store.DeleteByPrefix(ctx, cache.UserTransactionsPrefix(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(250))
			Expect(mr.Keys()).To(BeEmpty())
		})
	})

	Describe("DeleteByPrefix with a key index", func() {
		BeforeEach(func() {
			_ = store.Close()
			store = newStore(cache.InvalidationIndex)
		})

		It("records user scoped keys in an index set and clears them through it", func() {
			Expect(store.SetWithTTL(ctx, "analytics:user:3:month::", []byte("a"), time.Minute)).To(Succeed())
			Expect(store.SetWithTTL(ctx, "analytics:user:3:year:2025:", []byte("b"), time.Minute)).To(Succeed())
			Expect(store.SetWithTTL(ctx, "analytics:user:4:month::", []byte("c"), time.Minute)).To(Succeed())

			members, err := mr.SMembers("keyindex:analytics:user:3:")
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(ConsistOf("analytics:user:3:month::", "analytics:user:3:year:2025:"))

			n, err := store.DeleteByPrefix(ctx, cache.UserAnalyticsPrefix(3))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(mr.Exists("keyindex:analytics:user:3:")).To(BeFalse())
			Expect(mr.Exists("analytics:user:4:month::")).To(BeTrue())
		})

		It("falls back to scanning for shared prefixes", func() {
			Expect(store.SetWithTTL(ctx, "categories:all", []byte("a"), time.Minute)).To(Succeed())
			Expect(store.SetWithTTL(ctx, "categories:income", []byte("b"), time.Minute)).To(Succeed())

			n, err := store.DeleteByPrefix(ctx, cache.CategoriesPrefix)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
		})
	})

	It("opens the breaker and reports unavailable after repeated failures", func() {
		mr.Close()
		stopped = true

		for i := 0; i < 2; i++ {
			_, _, err := store.Get(ctx, "k")
			Expect(err).To(HaveOccurred())
		}

		Expect(store.Available()).To(BeFalse())
		_, _, err := store.Get(ctx, "k")
		Expect(err).To(MatchError(cache.ErrUnavailable))
	})

	Describe("invalidation after a ledger write", func() {
		var (
			coordinator *cache.Coordinator
			key         string
		)

		BeforeEach(func() {
			_ = store.Close()
			client, err := cache.NewRedisClient(internal.RedisConfig{Addr: mr.Addr()})
			Expect(err).NotTo(HaveOccurred())
			store = cache.NewRedisStore(client, cache.RedisOptions{
				OpTimeout:          time.Second,
				Invalidation:       cache.InvalidationScan,
				BreakerMaxFailures: 2,
				BreakerOpenTimeout: 100 * time.Millisecond,
				Logger:             slogger,
			})
			coordinator = cache.NewCoordinator(store, slogger, nil)

			key = cache.UserAnalyticsKey(7, "month", nil, nil)
			Expect(store.SetWithTTL(ctx, key, []byte(`{"income":100}`), time.Minute)).To(Succeed())
		})

		It("completes even when the caller's context is already canceled", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			coordinator.OnTransactionMutated(canceled, 7)

			Expect(mr.Exists(key)).To(BeFalse())
		})

		It("clears entries missed while the breaker was open before serving them again", func() {
			mr.SetError("ERR injected failure")
			for i := 0; i < 2; i++ {
				_, _, err := store.Get(ctx, "analytics:user:9:month::")
				Expect(err).To(HaveOccurred())
			}
			Expect(store.Available()).To(BeFalse())
			mr.SetError("")

			coordinator.OnTransactionMutated(ctx, 7)
			Expect(mr.Exists(key)).To(BeTrue())

			Eventually(store.Available).
				WithTimeout(2 * time.Second).
				WithPolling(20 * time.Millisecond).
				Should(BeTrue())

			_, found, err := store.Get(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
			Expect(mr.Exists(key)).To(BeFalse())
		})

		It("keeps a deferred invalidation while redis keeps failing", func() {
			mr.SetError("ERR injected failure")
			coordinator.OnTransactionMutated(ctx, 7)

			_, _, err := store.Get(ctx, key)
			Expect(err).To(HaveOccurred())

			mr.SetError("")
			Expect(mr.Exists(key)).To(BeTrue())

			Eventually(func() (bool, error) {
				_, found, err := store.Get(ctx, key)
				return found, err
			}).WithTimeout(2 * time.Second).WithPolling(20 * time.Millisecond).Should(BeFalse())
			Expect(mr.Exists(key)).To(BeFalse())
		})
	})

	It("builds clients from a redis URL", func() {
		client, err := cache.NewRedisClient(internal.RedisConfig{URL: "redis://" + mr.Addr() + "/2"})
		Expect(err).NotTo(HaveOccurred())
		defer client.Close()
		Expect(client.Options().DB).To(Equal(2))
		Expect(client.Ping(ctx).Err()).To(Succeed())
	})

	It("rejects malformed redis URLs", func() {
		_, err := cache.NewRedisClient(internal.RedisConfig{URL: "://bad"})
		Expect(err).To(HaveOccurred())
	})
})
