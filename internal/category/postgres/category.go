package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/category"
	categoryDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/category"
	transactionDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/transaction"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) category.RepositoryAPI {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context, kind string) ([]*categoryDatamodel.Category, error) {
	var categories []*categoryDatamodel.Category
	q := r.db.WithContext(ctx).Order("type ASC").Order("name ASC")
	if kind != "" {
		q = q.Where("type = ?", kind)
	}
	err := q.Find(&categories).Error
	return categories, err
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*categoryDatamodel.Category, error) {
	var cat categoryDatamodel.Category
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrCategoryNotFound
		}
		return nil, err
	}
	return &cat, nil
}

// ExistsByNameAndType skips excludeID so an update can keep its own name.
func (r *CategoryRepository) ExistsByNameAndType(ctx context.Context, name, kind string, excludeID int64) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&categoryDatamodel.Category{}).
		Where("LOWER(name) = LOWER(?) AND type = ?", name, kind)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *CategoryRepository) Create(ctx context.Context, cat *categoryDatamodel.Category) error {
	return r.db.WithContext(ctx).Create(cat).Error
}

func (r *CategoryRepository) Update(ctx context.Context, cat *categoryDatamodel.Category) error {
	res := r.db.WithContext(ctx).
		Model(&categoryDatamodel.Category{}).
		Where("id = ?", cat.ID).
		Updates(map[string]interface{}{
			"name":       cat.Name,
			"type":       cat.Type,
			"color":      cat.Color,
			"icon":       cat.Icon,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrCategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&categoryDatamodel.Category{}, id)
	if res.Error != nil {
		// a transaction referenced the row after the usage check
		if isForeignKeyViolation(res.Error) {
			return internal.ErrCategoryInUse
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrCategoryNotFound
	}
	return nil
}

func (r *CategoryRepository) InUse(ctx context.Context, id int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&transactionDatamodel.Transaction{}).
		Where("category_id = ?", id).
		Count(&n).Error
	return n > 0, err
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
