package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/finance-tracker/internal"
)

var hundred = decimal.NewFromInt(100)

// Engine computes analytics from the ledger. It keeps no state between calls.
type Engine struct {
	ledger       Ledger
	logger       *slog.Logger
	now          func() time.Time
	queryTimeout time.Duration
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func WithQueryTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.queryTimeout = d
	}
}

func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(ledger Ledger, opts ...EngineOption) *Engine {
	e := &Engine{
		ledger: ledger,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute builds the dashboard result for q. Monthly trends always cover the
// current calendar year regardless of the requested period.
func (e *Engine) Compute(ctx context.Context, q Query) (*Result, error) {
	ctx, cancel := internal.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	r := q.DateRange()

	totals, err := e.ledger.SumByKind(ctx, q.Scope, r)
	if err != nil {
		return nil, e.ledgerError("sum by kind", q.Scope, err)
	}

	byCategory, err := e.ledger.SumByCategoryAndKind(ctx, q.Scope, r)
	if err != nil {
		return nil, e.ledgerError("sum by category", q.Scope, err)
	}

	year := e.now().UTC().Year()
	byMonth, err := e.ledger.SumByMonthAndKind(ctx, q.Scope, YearRange(year))
	if err != nil {
		return nil, e.ledgerError("sum by month", q.Scope, err)
	}

	recent, err := e.ledger.RecentTransactions(ctx, q.Scope, RecentLimit)
	if err != nil {
		return nil, e.ledgerError("recent transactions", q.Scope, err)
	}

	return &Result{
		Summary:            summarize(totals),
		CategoryBreakdown:  breakdown(byCategory),
		MonthlyTrends:      monthlyTrends(byMonth, year),
		RecentTransactions: recentTransactions(recent),
	}, nil
}

func (e *Engine) CategoryStats(ctx context.Context, q Query) ([]CategoryStat, error) {
	ctx, cancel := internal.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	rows, err := e.ledger.CategoryStats(ctx, q.Scope, q.DateRange())
	if err != nil {
		return nil, e.ledgerError("category stats", q.Scope, err)
	}

	stats := make([]CategoryStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, CategoryStat{
			CategoryID: row.CategoryID,
			Name:       stringOr(row.CategoryName, UncategorizedName),
			Color:      stringOr(row.CategoryColor, UncategorizedColor),
			Type:       row.Kind,
			Total:      money(row.Total),
			Count:      row.Count,
			Average:    money(row.Average),
			Min:        money(row.Minimum),
			Max:        money(row.Maximum),
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Total > stats[j].Total
	})
	return stats, nil
}

// SpendingTrends returns one zero-filled point per month for the last months
// calendar months, the current month last.
func (e *Engine) SpendingTrends(ctx context.Context, scope Scope, months int) ([]TrendPoint, error) {
	if months <= 0 {
		months = DefaultTrendMonths
	}

	ctx, cancel := internal.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	now := e.now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := current.AddDate(0, -(months - 1), 0)

	rows, err := e.ledger.SumByMonthAndKind(ctx, scope, DateRange{From: start, To: current.AddDate(0, 1, 0)})
	if err != nil {
		return nil, e.ledgerError("spending trends", scope, err)
	}

	type bucket struct{ income, expenses decimal.Decimal }
	buckets := make(map[string]*bucket, months)
	points := make([]TrendPoint, 0, months)
	for i := 0; i < months; i++ {
		m := start.AddDate(0, i, 0)
		key := m.Format("2006-01")
		buckets[key] = &bucket{}
		points = append(points, TrendPoint{Month: key, MonthName: m.Format("Jan 2006")})
	}

	for _, row := range rows {
		key := fmt.Sprintf("%04d-%02d", row.Year, row.Month)
		b, ok := buckets[key]
		if !ok {
			continue
		}
		switch row.Kind {
		case KindIncome:
			b.income = b.income.Add(row.Total)
		case KindExpense:
			b.expenses = b.expenses.Add(row.Total)
		}
	}

	for i := range points {
		b := buckets[points[i].Month]
		points[i].Income = money(b.income)
		points[i].Expenses = money(b.expenses)
		points[i].Net = money(b.income.Sub(b.expenses))
	}
	return points, nil
}

func (e *Engine) ledgerError(op string, scope Scope, err error) error {
	e.logger.Error("ledger query failed", "op", op, "global", scope.Global, "user_id", scope.UserID, "error", err)
	return internal.NewLedgerError(op, err)
}

func summarize(totals []KindTotal) Summary {
	var income, expenses decimal.Decimal
	var s Summary
	for _, t := range totals {
		switch t.Kind {
		case KindIncome:
			income = income.Add(t.Total)
			s.IncomeCount += t.Count
		case KindExpense:
			expenses = expenses.Add(t.Total)
			s.ExpenseCount += t.Count
		}
	}

	net := income.Sub(expenses)
	s.TotalIncome = money(income)
	s.TotalExpenses = money(expenses)
	s.NetIncome = money(net)
	if income.IsPositive() {
		s.SavingsRate = money(net.Div(income).Mul(hundred))
	}
	return s
}

func breakdown(rows []CategoryKindTotal) []CategoryBreakdown {
	out := make([]CategoryBreakdown, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryBreakdown{
			CategoryID: row.CategoryID,
			Category:   stringOr(row.CategoryName, UncategorizedName),
			Color:      stringOr(row.CategoryColor, UncategorizedColor),
			Type:       row.Kind,
			Total:      money(row.Total),
			Count:      row.Count,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}

func monthlyTrends(rows []MonthKindTotal, year int) []MonthlyTrend {
	var income, expenses [12]decimal.Decimal
	for _, row := range rows {
		if row.Year != year || row.Month < 1 || row.Month > 12 {
			continue
		}
		switch row.Kind {
		case KindIncome:
			income[row.Month-1] = income[row.Month-1].Add(row.Total)
		case KindExpense:
			expenses[row.Month-1] = expenses[row.Month-1].Add(row.Total)
		}
	}

	out := make([]MonthlyTrend, 12)
	for i := range out {
		out[i] = MonthlyTrend{
			Month:     i + 1,
			MonthName: time.Month(i + 1).String()[:3],
			Income:    money(income[i]),
			Expenses:  money(expenses[i]),
			Net:       money(income[i].Sub(expenses[i])),
		}
	}
	return out
}

func recentTransactions(rows []RecentRow) []RecentTransaction {
	out := make([]RecentTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, RecentTransaction{
			ID:          row.ID,
			Type:        row.Kind,
			Amount:      money(row.Amount),
			Description: row.Description,
			Date:        row.Date.UTC().Format(time.DateOnly),
			Category:    stringOr(row.CategoryName, UncategorizedName),
			Color:       stringOr(row.CategoryColor, UncategorizedColor),
		})
	}
	return out
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func stringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
