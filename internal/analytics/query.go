package analytics

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/frahmantamala/finance-tracker/internal"
)

const (
	MinYear = 1970
	MaxYear = 9999

	DefaultTrendMonths = 6
	MaxTrendMonths     = 24
)

// ParseQuery reads period, year and month from query parameters. Absent
// parameters stay nil so cache keys render them as empty segments.
func ParseQuery(values url.Values) (Query, error) {
	q := Query{Period: PeriodMonth}

	if raw := strings.TrimSpace(values.Get("period")); raw != "" {
		switch Period(raw) {
		case PeriodMonth, PeriodYear:
			q.Period = Period(raw)
		default:
			return q, internal.NewValidationFieldError("period", "period must be one of month, year", internal.ErrCodeInvalidFilter)
		}
	}

	year, err := optionalInt(values, "year", MinYear, MaxYear)
	if err != nil {
		return q, err
	}
	month, err := optionalInt(values, "month", 1, 12)
	if err != nil {
		return q, err
	}
	if month != nil && year == nil {
		return q, internal.NewValidationFieldError("month", "month requires year", internal.ErrCodeInvalidFilter)
	}

	q.Year = year
	q.Month = month
	return q, nil
}

// ParseTrendMonths reads the months parameter for spending trends.
func ParseTrendMonths(values url.Values) (int, error) {
	n, err := optionalInt(values, "months", 1, MaxTrendMonths)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return DefaultTrendMonths, nil
	}
	return *n, nil
}

func optionalInt(values url.Values, name string, lo, hi int) (*int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return nil, internal.NewValidationFieldError(name,
			name+" must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi),
			internal.ErrCodeInvalidFilter)
	}
	return &n, nil
}
