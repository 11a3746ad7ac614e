package user

import (
	"time"
)

// User is the profile view of an account. The password hash never leaves
// the store.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"firstName" db:"first_name"`
	LastName  string    `json:"lastName" db:"last_name"`
	Role      string    `json:"role" db:"role"`
	IsActive  bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// UpdateProfileDTO carries the fields a user may change on their own profile.
type UpdateProfileDTO struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
}

// UpdateRoleDTO is the admin payload for changing a user's role.
type UpdateRoleDTO struct {
	Role string `json:"role" validate:"required,oneof=admin user read-only"`
}

// SystemStats is the admin overview of the installation.
type SystemStats struct {
	TotalUsers        int64  `json:"totalUsers" db:"total_users"`
	ActiveUsers       int64  `json:"activeUsers" db:"active_users"`
	TotalTransactions int64  `json:"totalTransactions" db:"total_transactions"`
	TotalCategories   int64  `json:"totalCategories" db:"total_categories"`
	SystemUptime      string `json:"systemUptime" db:"-"`
	DatabaseSize      string `json:"databaseSize,omitempty" db:"-"`
}
