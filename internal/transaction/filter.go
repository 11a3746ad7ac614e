package transaction

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/core/common/validation"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	sortFields = map[string]string{
		"date":        "t.date",
		"amount":      "t.amount",
		"created_at":  "t.created_at",
		"description": "t.description",
	}
)

// ListFilter selects and pages transactions. After ParseListFilter every
// default is filled in, so equivalent requests serialize identically.
type ListFilter struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Type       string `json:"type,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	UserID     *int64 `json:"user_id,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`
	Search     string `json:"search,omitempty"`
	SortBy     string `json:"sort_by"`
	SortOrder  string `json:"sort_order"`
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// OrderClause returns a safe ORDER BY expression for the sort fields.
func (f ListFilter) OrderClause() string {
	col, ok := sortFields[f.SortBy]
	if !ok {
		col = sortFields["date"]
	}
	dir := "DESC"
	if f.SortOrder == "asc" {
		dir = "ASC"
	}
	return col + " " + dir + ", t.id " + dir
}

func ParseListFilter(values url.Values) (ListFilter, error) {
	f := ListFilter{
		Page:      DefaultPage,
		Limit:     DefaultLimit,
		SortBy:    "date",
		SortOrder: "desc",
	}
	b := validation.NewValidator()

	if raw := values.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		b.Check(err == nil && n >= 1, "page", "page must be a positive integer", internal.ErrCodeInvalidFilter)
		if err == nil && n >= 1 {
			f.Page = n
		}
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		b.Check(err == nil && n >= 1 && n <= MaxLimit, "limit", "limit must be between 1 and 100", internal.ErrCodeInvalidFilter)
		if err == nil && n >= 1 && n <= MaxLimit {
			f.Limit = n
		}
	}
	if raw := strings.TrimSpace(values.Get("type")); raw != "" {
		b.Check(raw == KindIncome || raw == KindExpense, "type", "type must be one of income, expense", internal.ErrCodeInvalidFilter)
		f.Type = raw
	}
	f.CategoryID = positiveID(b, values, "category_id")
	f.UserID = positiveID(b, values, "user_id")

	for _, name := range []string{"start_date", "end_date"} {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			continue
		}
		d, ok := ParseDate(raw)
		b.Check(ok, name, name+" must be a date in YYYY-MM-DD format", internal.ErrCodeInvalidFilter)
		if ok {
			if name == "start_date" {
				f.StartDate = d.Format("2006-01-02")
			} else {
				f.EndDate = d.Format("2006-01-02")
			}
		}
	}

	f.Search = strings.TrimSpace(values.Get("search"))

	if raw := values.Get("sort_by"); raw != "" {
		_, ok := sortFields[raw]
		b.Check(ok, "sort_by", "sort_by must be one of date, amount, created_at, description", internal.ErrCodeInvalidFilter)
		if ok {
			f.SortBy = raw
		}
	}
	if raw := strings.ToLower(values.Get("sort_order")); raw != "" {
		b.Check(raw == "asc" || raw == "desc", "sort_order", "sort_order must be asc or desc", internal.ErrCodeInvalidFilter)
		if raw == "asc" || raw == "desc" {
			f.SortOrder = raw
		}
	}

	if err := b.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

func positiveID(b *validation.ValidationBuilder, values url.Values, name string) *int64 {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	b.Check(err == nil && n > 0, name, name+" must be a positive integer", internal.ErrCodeInvalidFilter)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}
