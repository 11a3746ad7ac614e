package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/finance-tracker/internal/analytics"
)

// LedgerRepository answers aggregation queries over the transactions table.
// The SQL sticks to constructs shared by PostgreSQL and SQLite; month
// bucketing happens in Go.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ analytics.Ledger = (*LedgerRepository)(nil)

func (r *LedgerRepository) SumByKind(ctx context.Context, scope analytics.Scope, rng analytics.DateRange) ([]analytics.KindTotal, error) {
	where, args := filter(scope, rng)
	query := `SELECT t.type AS kind, SUM(t.amount) AS total, COUNT(*) AS count
		FROM transactions t` + where + `
		GROUP BY t.type`

	var rows []analytics.KindTotal
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LedgerRepository) SumByCategoryAndKind(ctx context.Context, scope analytics.Scope, rng analytics.DateRange) ([]analytics.CategoryKindTotal, error) {
	where, args := filter(scope, rng)
	query := `SELECT c.id AS category_id, c.name AS category_name, c.color AS category_color,
			t.type AS kind, SUM(t.amount) AS total, COUNT(*) AS count
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id` + where + `
		GROUP BY c.id, c.name, c.color, t.type
		ORDER BY total DESC`

	var rows []analytics.CategoryKindTotal
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type dayKindTotal struct {
	Day   time.Time       `gorm:"column:day"`
	Kind  string          `gorm:"column:kind"`
	Total decimal.Decimal `gorm:"column:total"`
}

func (r *LedgerRepository) SumByMonthAndKind(ctx context.Context, scope analytics.Scope, rng analytics.DateRange) ([]analytics.MonthKindTotal, error) {
	where, args := filter(scope, rng)
	query := `SELECT t.date AS day, t.type AS kind, SUM(t.amount) AS total
		FROM transactions t` + where + `
		GROUP BY t.date, t.type
		ORDER BY t.date`

	var days []dayKindTotal
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&days).Error; err != nil {
		return nil, err
	}

	type monthKey struct {
		year  int
		month int
		kind  string
	}
	index := make(map[monthKey]int)
	var out []analytics.MonthKindTotal
	for _, d := range days {
		day := d.Day.UTC()
		k := monthKey{day.Year(), int(day.Month()), d.Kind}
		if i, ok := index[k]; ok {
			out[i].Total = out[i].Total.Add(d.Total)
			continue
		}
		index[k] = len(out)
		out = append(out, analytics.MonthKindTotal{Year: k.year, Month: k.month, Kind: k.kind, Total: d.Total})
	}
	return out, nil
}

func (r *LedgerRepository) RecentTransactions(ctx context.Context, scope analytics.Scope, limit int) ([]analytics.RecentRow, error) {
	where, args := filter(scope, analytics.DateRange{})
	query := `SELECT t.id AS id, t.type AS kind, t.amount AS amount, t.description AS description,
			t.date AS date, c.name AS category_name, c.color AS category_color
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id` + where + `
		ORDER BY t.date DESC, t.id DESC
		LIMIT ?`

	var rows []analytics.RecentRow
	if err := r.db.WithContext(ctx).Raw(query, append(args, limit)...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *LedgerRepository) CategoryStats(ctx context.Context, scope analytics.Scope, rng analytics.DateRange) ([]analytics.CategoryStatRow, error) {
	where, args := filter(scope, rng)
	query := `SELECT c.id AS category_id, c.name AS category_name, c.color AS category_color,
			t.type AS kind, SUM(t.amount) AS total, COUNT(*) AS count,
			AVG(t.amount) AS average, MIN(t.amount) AS minimum, MAX(t.amount) AS maximum
		FROM transactions t
		LEFT JOIN categories c ON t.category_id = c.id` + where + `
		GROUP BY c.id, c.name, c.color, t.type
		ORDER BY total DESC`

	var rows []analytics.CategoryStatRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func filter(scope analytics.Scope, rng analytics.DateRange) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if !scope.Global {
		clauses = append(clauses, "t.user_id = ?")
		args = append(args, scope.UserID)
	}
	if rng.Bounded() {
		clauses = append(clauses, "t.date >= ?", "t.date < ?")
		args = append(args, rng.From, rng.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(clauses, " AND "), args
}
