package transaction

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/core/common/validation"
)

var (
	minAmount = decimal.RequireFromString("0.01")
	maxAmount = decimal.RequireFromString("9999999999.99")
)

// CreateTransactionDTO is the body of POST /transactions. UserID is only
// read on the admin route.
type CreateTransactionDTO struct {
	UserID      *int64           `json:"user_id,omitempty"`
	Type        string           `json:"type" validate:"required,oneof=income expense"`
	Amount      *decimal.Decimal `json:"amount" validate:"required"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Date        string           `json:"date" validate:"required"`
	CategoryID  *int64           `json:"category_id" validate:"omitempty,gt=0"`
}

// UpdateTransactionDTO is a partial update; nil fields keep their value.
type UpdateTransactionDTO struct {
	Type        *string          `json:"type" validate:"omitempty,oneof=income expense"`
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description" validate:"omitempty,max=500"`
	Date        *string          `json:"date"`
	CategoryID  *int64           `json:"category_id" validate:"omitempty,gt=0"`
}

func (d CreateTransactionDTO) Validate() (time.Time, error) {
	b := validation.NewValidator().Merge("body", validation.Struct(d))

	var date time.Time
	if d.Amount != nil {
		checkAmount(b, *d.Amount)
	}
	if d.Date != "" {
		var ok bool
		date, ok = ParseDate(d.Date)
		b.Check(ok, "date", "date must be a valid ISO 8601 date", internal.ErrCodeInvalidDate)
	}

	if err := b.Validate(); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

func (d UpdateTransactionDTO) Validate() (*time.Time, error) {
	b := validation.NewValidator().Merge("body", validation.Struct(d))

	var date *time.Time
	if d.Amount != nil {
		checkAmount(b, *d.Amount)
	}
	if d.Date != nil {
		parsed, ok := ParseDate(*d.Date)
		b.Check(ok, "date", "date must be a valid ISO 8601 date", internal.ErrCodeInvalidDate)
		date = &parsed
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return date, nil
}

func checkAmount(b *validation.ValidationBuilder, amount decimal.Decimal) {
	b.Check(amount.GreaterThanOrEqual(minAmount), "amount", "amount must be at least 0.01", internal.ErrCodeInvalidAmount)
	b.Check(amount.LessThanOrEqual(maxAmount), "amount", "amount must not exceed 9999999999.99", internal.ErrCodeInvalidAmount)
	b.Check(amount.Equal(amount.Round(2)), "amount", "amount must have at most two decimal places", internal.ErrCodeInvalidAmount)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar day at UTC midnight.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
