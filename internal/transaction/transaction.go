package transaction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/finance-tracker/internal/transport"
)

const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// Transaction is a single ledger entry. Amounts are exact decimals.
type Transaction struct {
	ID            int64
	UserID        int64
	Type          string
	Amount        decimal.Decimal
	Description   *string
	Date          time.Time
	CategoryID    *int64
	CategoryName  *string
	CategoryColor *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// View is the JSON shape of a transaction, also what the list cache stores.
type View struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Type          string    `json:"type"`
	Amount        float64   `json:"amount"`
	Description   *string   `json:"description"`
	Date          string    `json:"date"`
	CategoryID    *int64    `json:"category_id"`
	CategoryName  *string   `json:"category_name"`
	CategoryColor *string   `json:"category_color"`
	CreatedAt     time.Time `json:"created_at"`
}

func (t *Transaction) ToView() View {
	return View{
		ID:            t.ID,
		UserID:        t.UserID,
		Type:          t.Type,
		Amount:        t.Amount.Round(2).InexactFloat64(),
		Description:   t.Description,
		Date:          t.Date.UTC().Format(time.DateOnly),
		CategoryID:    t.CategoryID,
		CategoryName:  t.CategoryName,
		CategoryColor: t.CategoryColor,
		CreatedAt:     t.CreatedAt.UTC(),
	}
}

type Page struct {
	Transactions []View               `json:"transactions"`
	Pagination   transport.Pagination `json:"pagination"`
}
