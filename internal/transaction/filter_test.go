package transaction

import (
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/cache"
)

var _ = Describe("ParseListFilter", func() {
	It("fills in defaults", func() {
		f, err := ParseListFilter(url.Values{})
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Page).To(Equal(1))
		Expect(f.Limit).To(Equal(10))
		Expect(f.SortBy).To(Equal("date"))
		Expect(f.SortOrder).To(Equal("desc"))
		Expect(f.Offset()).To(Equal(0))
		Expect(f.OrderClause()).To(Equal("t.date DESC, t.id DESC"))
	})

	It("parses every supported parameter", func() {
		f, err := ParseListFilter(url.Values{
			"page":        {"3"},
			"limit":       {"25"},
			"type":        {"expense"},
			"category_id": {"4"},
			"start_date":  {"2025-01-01"},
			"end_date":    {"2025-01-31T10:00:00Z"},
			"search":      {"  coffee "},
			"sort_by":     {"amount"},
			"sort_order":  {"ASC"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Offset()).To(Equal(50))
		Expect(*f.CategoryID).To(Equal(int64(4)))
		Expect(f.EndDate).To(Equal("2025-01-31"))
		Expect(f.Search).To(Equal("coffee"))
		Expect(f.OrderClause()).To(Equal("t.amount ASC, t.id ASC"))
	})

	DescribeTable("rejects invalid values",
		func(name, value string) {
			_, err := ParseListFilter(url.Values{name: {value}})
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		},
		Entry("page", "page", "0"),
		Entry("limit", "limit", "101"),
		Entry("type", "type", "transfer"),
		Entry("category", "category_id", "abc"),
		Entry("date", "start_date", "31/01/2025"),
		Entry("sort column", "sort_by", "user_id; DROP TABLE transactions"),
		Entry("sort order", "sort_order", "sideways"),
	)

	It("produces the same cache key for equivalent requests", func() {
		a, err := ParseListFilter(url.Values{"type": {"income"}, "page": {"1"}})
		Expect(err).NotTo(HaveOccurred())
		b, err := ParseListFilter(url.Values{"sort_order": {"desc"}, "type": {"income"}})
		Expect(err).NotTo(HaveOccurred())

		ka, err := cache.TransactionListKey(7, a)
		Expect(err).NotTo(HaveOccurred())
		kb, err := cache.TransactionListKey(7, b)
		Expect(err).NotTo(HaveOccurred())
		Expect(ka).To(Equal(kb))
		Expect(ka).To(HavePrefix("transactions:user:7:"))
	})
})
