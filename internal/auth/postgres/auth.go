package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/auth"
	usermodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var row usermodel.User
	err := r.db.WithContext(ctx).
		Select("id", "password_hash", "is_active").
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &auth.Credentials{UserID: row.ID, PasswordHash: row.PasswordHash, IsActive: row.IsActive}, nil
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (*auth.User, bool, error) {
	var row usermodel.User
	if err := r.db.WithContext(ctx).First(&row, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, internal.ErrUserNotFound
		}
		return nil, false, err
	}
	return &auth.User{
		ID:    row.ID,
		Email: row.Email,
		Name:  strings.TrimSpace(row.FirstName + " " + row.LastName),
		Role:  auth.Role(row.Role),
	}, row.IsActive, nil
}

func (r *Repository) CreateUser(ctx context.Context, account auth.NewAccount) (*auth.User, error) {
	row := usermodel.User{
		Email:        account.Email,
		FirstName:    account.FirstName,
		LastName:     account.LastName,
		PasswordHash: account.PasswordHash,
		Role:         string(account.Role),
		IsActive:     true,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, internal.ErrEmailTaken
		}
		return nil, err
	}
	return &auth.User{
		ID:    row.ID,
		Email: row.Email,
		Name:  strings.TrimSpace(row.FirstName + " " + row.LastName),
		Role:  auth.Role(row.Role),
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// sqlite reports constraint failures as plain text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
