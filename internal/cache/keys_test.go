package cache_test

import (
	"github.com/frahmantamala/finance-tracker/internal/cache"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type listFilter struct {
	Page      int     `json:"page"`
	Limit     int     `json:"limit"`
	Type      string  `json:"type,omitempty"`
	Search    *string `json:"search"`
	SortOrder string  `json:"sort_order"`
}

type reorderedFilter struct {
	SortOrder string `json:"sort_order"`
	Limit     int    `json:"limit"`
	Page      int    `json:"page"`
}

func intPtr(v int) *int { return &v }

var _ = Describe("Key builder", func() {
	Describe("analytics keys", func() {
		It("renders the documented format", func() {
			Expect(cache.UserAnalyticsKey(7, "month", intPtr(2024), intPtr(3))).To(Equal("analytics:user:7:month:2024:3"))
		})

		It("renders absent year and month as empty segments", func() {
			Expect(cache.UserAnalyticsKey(7, "year", nil, nil)).To(Equal("analytics:user:7:year::"))
			Expect(cache.GlobalAnalyticsKey("month", intPtr(2025), nil)).To(Equal("analytics:global:month:2025:"))
		})

		It("keeps derived analytics views under the user prefix", func() {
			prefix := cache.UserAnalyticsPrefix(7)
			Expect(cache.UserCategoryAnalyticsKey(7, "month", nil, nil)).To(HavePrefix(prefix))
			Expect(cache.UserTrendsKey(7, 6)).To(Equal("analytics:user:7:trends:6"))
		})

		It("never lets one user's prefix cover another user's keys", func() {
			key12 := cache.UserAnalyticsKey(12, "month", nil, nil)
			Expect(key12).NotTo(HavePrefix(cache.UserAnalyticsPrefix(1)))
			list12, err := cache.TransactionListKey(12, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(list12).NotTo(HavePrefix(cache.UserTransactionsPrefix(1)))
		})
	})

	Describe("category keys", func() {
		It("uses all for an empty kind", func() {
			Expect(cache.CategoriesKey("")).To(Equal("categories:all"))
			Expect(cache.CategoriesKey("expense")).To(Equal("categories:expense"))
		})
	})

	Describe("canonical filters", func() {
		It("is independent of field order", func() {
			a, err := cache.TransactionListKey(3, listFilter{Page: 1, Limit: 10, SortOrder: "desc"})
			Expect(err).NotTo(HaveOccurred())
			b, err := cache.TransactionListKey(3, reorderedFilter{SortOrder: "desc", Limit: 10, Page: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		})

		It("treats null and empty values as omitted", func() {
			empty := ""
			a, err := cache.TransactionListKey(3, listFilter{Page: 1, Limit: 10, Search: &empty, SortOrder: "desc"})
			Expect(err).NotTo(HaveOccurred())
			b, err := cache.TransactionListKey(3, map[string]any{"page": 1, "limit": 10, "sort_order": "desc", "type": nil})
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
			Expect(a).To(Equal(`transactions:user:3:{"limit":10,"page":1,"sort_order":"desc"}`))
		})

		It("distinguishes filters that change results", func() {
			coffee := "coffee"
			a, _ := cache.TransactionListKey(3, listFilter{Page: 1, Limit: 10})
			b, _ := cache.TransactionListKey(3, listFilter{Page: 2, Limit: 10})
			c, _ := cache.TransactionListKey(3, listFilter{Page: 1, Limit: 10, Search: &coffee})
			Expect(a).NotTo(Equal(b))
			Expect(a).NotTo(Equal(c))
		})

		It("keeps users apart for identical filters", func() {
			a, _ := cache.TransactionListKey(1, listFilter{Page: 1, Limit: 10})
			b, _ := cache.TransactionListKey(2, listFilter{Page: 1, Limit: 10})
			Expect(a).NotTo(Equal(b))
		})
	})

	Describe("IndexScope", func() {
		It("returns the per-user prefix for user keys", func() {
			Expect(cache.IndexScope("analytics:user:42:month::")).To(Equal("analytics:user:42:"))
			Expect(cache.IndexScope(`transactions:user:42:{"page":1}`)).To(Equal("transactions:user:42:"))
		})

		It("returns empty for shared keys", func() {
			Expect(cache.IndexScope("categories:all")).To(BeEmpty())
			Expect(cache.IndexScope("analytics:global:month::")).To(BeEmpty())
		})
	})

	It("labels keys by their first segment", func() {
		Expect(cache.Namespace("categories:all")).To(Equal("categories"))
		Expect(cache.Namespace("plain")).To(Equal("plain"))
	})
})
