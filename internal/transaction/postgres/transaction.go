package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/frahmantamala/finance-tracker/internal"
	categoryDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/category"
	transactionDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/transaction"
	userDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/user"
	"github.com/frahmantamala/finance-tracker/internal/transaction"
)

// TransactionRepository implements transaction.Repository using GORM
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

var _ transaction.Repository = (*TransactionRepository)(nil)

type transactionRow struct {
	ID            int64           `gorm:"column:id"`
	UserID        int64           `gorm:"column:user_id"`
	Type          string          `gorm:"column:type"`
	Amount        decimal.Decimal `gorm:"column:amount"`
	Description   *string         `gorm:"column:description"`
	Date          time.Time       `gorm:"column:date"`
	CategoryID    *int64          `gorm:"column:category_id"`
	CategoryName  *string         `gorm:"column:category_name"`
	CategoryColor *string         `gorm:"column:category_color"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

func (r transactionRow) toDomain() *transaction.Transaction {
	return &transaction.Transaction{
		ID:            r.ID,
		UserID:        r.UserID,
		Type:          r.Type,
		Amount:        r.Amount,
		Description:   r.Description,
		Date:          r.Date.UTC(),
		CategoryID:    r.CategoryID,
		CategoryName:  r.CategoryName,
		CategoryColor: r.CategoryColor,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const selectColumns = `t.id, t.user_id, t.type, t.amount, t.description, t.date, t.category_id,
		c.name AS category_name, c.color AS category_color, t.created_at, t.updated_at`

func (r *TransactionRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("transactions t").
		Joins("LEFT JOIN categories c ON t.category_id = c.id")
}

func (r *TransactionRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	row := transactionDatamodel.Transaction{
		UserID:      t.UserID,
		Type:        t.Type,
		Amount:      t.Amount,
		Description: t.Description,
		Date:        t.Date,
		CategoryID:  t.CategoryID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	t.ID = row.ID
	t.CreatedAt = row.CreatedAt
	t.UpdatedAt = row.UpdatedAt
	return nil
}

// GetByID retrieves a transaction joined with its category
func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*transaction.Transaction, error) {
	var rows []transactionRow
	err := r.joined(ctx).
		Select(selectColumns).
		Where("t.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, internal.ErrTransactionNotFound
	}
	return rows[0].toDomain(), nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	res := r.db.WithContext(ctx).
		Model(&transactionDatamodel.Transaction{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"type":        t.Type,
			"amount":      t.Amount,
			"description": t.Description,
			"date":        t.Date,
			"category_id": t.CategoryID,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrTransactionNotFound
	}
	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&transactionDatamodel.Transaction{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrTransactionNotFound
	}
	return nil
}

// List returns one page of matching transactions and the total match count.
func (r *TransactionRepository) List(ctx context.Context, f transaction.ListFilter) ([]*transaction.Transaction, int64, error) {
	where, args := listFilter(f)

	var total int64
	count := r.joined(ctx)
	if where != "" {
		count = count.Where(where, args...)
	}
	if err := count.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*transaction.Transaction{}, 0, nil
	}

	var rows []transactionRow
	q := r.joined(ctx).Select(selectColumns)
	if where != "" {
		q = q.Where(where, args...)
	}
	err := q.Order(f.OrderClause()).
		Limit(f.Limit).
		Offset(f.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	out := make([]*transaction.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

func (r *TransactionRepository) CategoryKind(ctx context.Context, categoryID int64) (string, error) {
	var c categoryDatamodel.Category
	err := r.db.WithContext(ctx).Select("id", "type").Where("id = ?", categoryID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", internal.ErrCategoryNotFound
		}
		return "", err
	}
	return c.Type, nil
}

func (r *TransactionRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&n).Error
	return n > 0, err
}

// listFilter builds the WHERE clause. Dates are half-open day ranges so the
// end date is inclusive.
func listFilter(f transaction.ListFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.UserID != nil {
		clauses = append(clauses, "t.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Type != "" {
		clauses = append(clauses, "t.type = ?")
		args = append(args, f.Type)
	}
	if f.CategoryID != nil {
		clauses = append(clauses, "t.category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if d, ok := transaction.ParseDate(f.StartDate); ok {
		clauses = append(clauses, "t.date >= ?")
		args = append(args, d)
	}
	if d, ok := transaction.ParseDate(f.EndDate); ok {
		clauses = append(clauses, "t.date < ?")
		args = append(args, d.AddDate(0, 0, 1))
	}
	if f.Search != "" {
		clauses = append(clauses, "LOWER(t.description) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Search)+"%")
	}

	return strings.Join(clauses, " AND "), args
}
