package cache_test

import (
	"context"
	"sync"
	"time"

	"github.com/frahmantamala/finance-tracker/internal/cache"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("MemoryStore", func() {
	var (
		ctx   context.Context
		clock *fakeClock
		store *cache.MemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		clock = &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
		store = cache.NewMemoryStore(0, cache.WithClock(clock.Now), cache.WithMaxItems(3))
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("returns stored values until the TTL elapses", func() {
		Expect(store.SetWithTTL(ctx, "k", []byte("v"), time.Minute)).To(Succeed())

		v, ok, err := store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(string(v)).To(Equal("v"))

		clock.Advance(time.Minute)
		_, ok, err = store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("reports a miss for unknown keys", func() {
		v, ok, err := store.Get(ctx, "missing")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(v).To(BeNil())
	})

	It("deletes by prefix only the matching keys", func() {
		Expect(store.SetWithTTL(ctx, "analytics:user:1:month::", []byte("a"), time.Minute)).To(Succeed())
		Expect(store.SetWithTTL(ctx, "analytics:user:12:month::", []byte("b"), time.Minute)).To(Succeed())
		Expect(store.SetWithTTL(ctx, "categories:all", []byte("c"), time.Minute)).To(Succeed())

		n, err := store.DeleteByPrefix(ctx, cache.UserAnalyticsPrefix(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(1))

		_, ok, _ := store.Get(ctx, "analytics:user:12:month::")
		Expect(ok).To(BeTrue())
		_, ok, _ = store.Get(ctx, "categories:all")
		Expect(ok).To(BeTrue())
	})

	It("evicts the least recently used entry when full", func() {
		Expect(store.SetWithTTL(ctx, "a", []byte("1"), time.Minute)).To(Succeed())
		Expect(store.SetWithTTL(ctx, "b", []byte("2"), time.Minute)).To(Succeed())
		Expect(store.SetWithTTL(ctx, "c", []byte("3"), time.Minute)).To(Succeed())

		_, _, _ = store.Get(ctx, "a")
		Expect(store.SetWithTTL(ctx, "d", []byte("4"), time.Minute)).To(Succeed())

		_, ok, _ := store.Get(ctx, "b")
		Expect(ok).To(BeFalse())
		_, ok, _ = store.Get(ctx, "a")
		Expect(ok).To(BeTrue())
		Expect(store.Len()).To(Equal(3))
	})

	It("returns copies that callers cannot mutate", func() {
		Expect(store.SetWithTTL(ctx, "k", []byte("abc"), time.Minute)).To(Succeed())
		v, _, _ := store.Get(ctx, "k")
		v[0] = 'x'
		again, _, _ := store.Get(ctx, "k")
		Expect(string(again)).To(Equal("abc"))
	})

	It("is always available", func() {
		Expect(store.Available()).To(BeTrue())
		Expect(store.Ping(ctx)).To(Succeed())
	})
})

var _ = Describe("NullStore", func() {
	It("is unavailable and never fails", func() {
		ctx := context.Background()
		store := cache.NewNullStore()

		Expect(store.Available()).To(BeFalse())
		Expect(store.SetWithTTL(ctx, "k", []byte("v"), time.Minute)).To(Succeed())
		_, ok, err := store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		n, err := store.DeleteByPrefix(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
		Expect(store.Ping(ctx)).To(MatchError(cache.ErrUnavailable))
	})
})
