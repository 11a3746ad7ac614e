package analytics

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindIncome  = "income"
	KindExpense = "expense"

	UncategorizedName  = "Uncategorized"
	UncategorizedColor = "#6B7280"

	RecentLimit = 5
)

type Period string

const (
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Scope selects whose ledger an aggregation reads. It is always explicit.
type Scope struct {
	Global bool
	UserID int64
}

func UserScope(userID int64) Scope {
	return Scope{UserID: userID}
}

func GlobalScope() Scope {
	return Scope{Global: true}
}

// DateRange is the half-open interval [From, To). The zero value is unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Bounded() bool {
	return !r.From.IsZero()
}

func YearRange(year int) DateRange {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: from.AddDate(1, 0, 0)}
}

func MonthRange(year, month int) DateRange {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: from.AddDate(0, 1, 0)}
}

type Query struct {
	Scope  Scope
	Period Period
	Year   *int
	Month  *int
}

// DateRange applies the period rules: month with year and month is that
// month, any period with only a year is that year, no year is all time.
func (q Query) DateRange() DateRange {
	if q.Year == nil {
		return DateRange{}
	}
	if q.Period == PeriodMonth && q.Month != nil {
		return MonthRange(*q.Year, *q.Month)
	}
	return YearRange(*q.Year)
}

// Result is the dashboard payload. It is derived data only and is rebuilt
// on every cache miss.
type Result struct {
	Summary            Summary             `json:"summary"`
	CategoryBreakdown  []CategoryBreakdown `json:"categoryBreakdown"`
	MonthlyTrends      []MonthlyTrend      `json:"monthlyTrends"`
	RecentTransactions []RecentTransaction `json:"recentTransactions"`
}

type Summary struct {
	TotalIncome   float64 `json:"totalIncome"`
	TotalExpenses float64 `json:"totalExpenses"`
	NetIncome     float64 `json:"netIncome"`
	SavingsRate   float64 `json:"savingsRate"`
	IncomeCount   int64   `json:"incomeCount"`
	ExpenseCount  int64   `json:"expenseCount"`
}

type CategoryBreakdown struct {
	CategoryID *int64  `json:"categoryId"`
	Category   string  `json:"category"`
	Color      string  `json:"color"`
	Type       string  `json:"type"`
	Total      float64 `json:"total"`
	Count      int64   `json:"count"`
}

type MonthlyTrend struct {
	Month     int     `json:"month"`
	MonthName string  `json:"monthName"`
	Income    float64 `json:"income"`
	Expenses  float64 `json:"expenses"`
	Net       float64 `json:"net"`
}

type RecentTransaction struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
	Category    string  `json:"category"`
	Color       string  `json:"color"`
}

type CategoryStat struct {
	CategoryID *int64  `json:"id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Type       string  `json:"type"`
	Total      float64 `json:"total"`
	Count      int64   `json:"count"`
	Average    float64 `json:"average"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
}

type TrendPoint struct {
	Month     string  `json:"month"`
	MonthName string  `json:"monthName"`
	Income    float64 `json:"income"`
	Expenses  float64 `json:"expenses"`
	Net       float64 `json:"net"`
}

// Ledger row types, one per query.

type KindTotal struct {
	Kind  string          `gorm:"column:kind"`
	Total decimal.Decimal `gorm:"column:total"`
	Count int64           `gorm:"column:count"`
}

type CategoryKindTotal struct {
	CategoryID    *int64          `gorm:"column:category_id"`
	CategoryName  *string         `gorm:"column:category_name"`
	CategoryColor *string         `gorm:"column:category_color"`
	Kind          string          `gorm:"column:kind"`
	Total         decimal.Decimal `gorm:"column:total"`
	Count         int64           `gorm:"column:count"`
}

type MonthKindTotal struct {
	Year  int
	Month int
	Kind  string
	Total decimal.Decimal
}

type RecentRow struct {
	ID            int64           `gorm:"column:id"`
	Kind          string          `gorm:"column:kind"`
	Amount        decimal.Decimal `gorm:"column:amount"`
	Description   *string         `gorm:"column:description"`
	Date          time.Time       `gorm:"column:date"`
	CategoryName  *string         `gorm:"column:category_name"`
	CategoryColor *string         `gorm:"column:category_color"`
}

type CategoryStatRow struct {
	CategoryID    *int64          `gorm:"column:category_id"`
	CategoryName  *string         `gorm:"column:category_name"`
	CategoryColor *string         `gorm:"column:category_color"`
	Kind          string          `gorm:"column:kind"`
	Total         decimal.Decimal `gorm:"column:total"`
	Count         int64           `gorm:"column:count"`
	Average       decimal.Decimal `gorm:"column:average"`
	Minimum       decimal.Decimal `gorm:"column:minimum"`
	Maximum       decimal.Decimal `gorm:"column:maximum"`
}

// Ledger is the read side of the ledger store.
type Ledger interface {
	SumByKind(ctx context.Context, scope Scope, r DateRange) ([]KindTotal, error)
	SumByCategoryAndKind(ctx context.Context, scope Scope, r DateRange) ([]CategoryKindTotal, error)
	SumByMonthAndKind(ctx context.Context, scope Scope, r DateRange) ([]MonthKindTotal, error)
	RecentTransactions(ctx context.Context, scope Scope, limit int) ([]RecentRow, error)
	CategoryStats(ctx context.Context, scope Scope, r DateRange) ([]CategoryStatRow, error)
}
