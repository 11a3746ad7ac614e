package analytics

import (
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Query", func() {
	DescribeTable("ParseQuery",
		func(raw string, valid bool) {
			values, err := url.ParseQuery(raw)
			Expect(err).NotTo(HaveOccurred())
			_, err = ParseQuery(values)
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(HaveOccurred())
			}
		},
		Entry("empty", "", true),
		Entry("year only", "period=year&year=2024", true),
		Entry("month and year", "period=month&year=2024&month=12", true),
		Entry("month without year", "month=2", false),
		Entry("month out of range", "year=2024&month=13", false),
		Entry("year before 1970", "year=1969", false),
		Entry("not a number", "year=abc", false),
		Entry("unknown period", "period=day", false),
	)

	It("defaults the period to month", func() {
		q, err := ParseQuery(url.Values{})
		Expect(err).NotTo(HaveOccurred())
		Expect(q.Period).To(Equal(PeriodMonth))
		Expect(q.Year).To(BeNil())
	})

	DescribeTable("DateRange",
		func(q Query, from, to string) {
			r := q.DateRange()
			if from == "" {
				Expect(r.Bounded()).To(BeFalse())
				return
			}
			Expect(r.From.Format(time.DateOnly)).To(Equal(from))
			Expect(r.To.Format(time.DateOnly)).To(Equal(to))
		},
		Entry("no year is all time", Query{Period: PeriodMonth}, "", ""),
		Entry("year period", Query{Period: PeriodYear, Year: ptr(2024)}, "2024-01-01", "2025-01-01"),
		Entry("year period ignores month", Query{Period: PeriodYear, Year: ptr(2024), Month: ptr(5)}, "2024-01-01", "2025-01-01"),
		Entry("month period", Query{Period: PeriodMonth, Year: ptr(2024), Month: ptr(12)}, "2024-12-01", "2025-01-01"),
		Entry("month period with only a year", Query{Period: PeriodMonth, Year: ptr(2024)}, "2024-01-01", "2025-01-01"),
	)

	It("defaults the trend window to six months", func() {
		n, err := ParseTrendMonths(url.Values{})
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(DefaultTrendMonths))
	})
})
