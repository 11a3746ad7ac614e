package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/user"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (p *Repository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	query := p.db.Rebind(`SELECT id, email, first_name, last_name, role, is_active, created_at
		FROM users WHERE id = ?`)
	if err := p.db.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (p *Repository) UpdateNames(ctx context.Context, id int64, firstName, lastName *string) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().UTC()}
	if firstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, strings.TrimSpace(*firstName))
	}
	if lastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, strings.TrimSpace(*lastName))
	}
	args = append(args, id)

	query := p.db.Rebind("UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?")
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (p *Repository) List(ctx context.Context) ([]user.User, error) {
	users := []user.User{}
	query := `SELECT id, email, first_name, last_name, role, is_active, created_at
		FROM users ORDER BY created_at DESC, id DESC`
	if err := p.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (p *Repository) UpdateRole(ctx context.Context, id int64, role string) error {
	query := p.db.Rebind("UPDATE users SET role = ?, updated_at = ? WHERE id = ?")
	res, err := p.db.ExecContext(ctx, query, role, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update user role: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

// Delete removes the user's transactions and then the user in one
// transaction. The foreign key cascades on Postgres; deleting explicitly
// keeps stores without enforced foreign keys consistent.
func (p *Repository) Delete(ctx context.Context, id int64) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM transactions WHERE user_id = ?"), id); err != nil {
		return fmt.Errorf("delete user transactions: %w", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return internal.ErrUserNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (p *Repository) Stats(ctx context.Context) (*user.SystemStats, error) {
	var stats user.SystemStats
	query := `SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM users WHERE is_active) AS active_users,
		(SELECT COUNT(*) FROM transactions) AS total_transactions,
		(SELECT COUNT(*) FROM categories) AS total_categories`
	if err := p.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("system stats: %w", err)
	}

	if p.db.DriverName() == "pgx" || p.db.DriverName() == "postgres" {
		if err := p.db.GetContext(ctx, &stats.DatabaseSize,
			`SELECT pg_size_pretty(pg_database_size(current_database()))`); err != nil {
			return nil, fmt.Errorf("database size: %w", err)
		}
	}
	return &stats, nil
}
