// Package datamodel holds the gorm row models. Schema changes go through the
// goose migrations in db/migrations; Models exists for in-memory databases.
package datamodel

import (
	"github.com/frahmantamala/finance-tracker/internal/core/datamodel/category"
	"github.com/frahmantamala/finance-tracker/internal/core/datamodel/transaction"
	"github.com/frahmantamala/finance-tracker/internal/core/datamodel/user"
)

// Models lists every row model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&category.Category{},
		&transaction.Transaction{},
	}
}
