package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/finance-tracker/internal/auth"
	categoryDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/category"
	transactionDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/transaction"
	userDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with the default categories and one account per role.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gormDB, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if err := seed(cmd.Context(), gormDB, cfg.Security.BCryptCost, clearData); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
		fmt.Println("Seeding completed")
	},
}

type seedUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      auth.Role
}

var seedUsers = []seedUser{
	{"admin@financetracker.com", "admin123", "Admin", "User", auth.RoleAdmin},
	{"user@financetracker.com", "user123", "Demo", "User", auth.RoleUser},
	{"readonly@financetracker.com", "readonly123", "Read", "Only", auth.RoleReadOnly},
}

var seedCategories = []categoryDatamodel.Category{
	{Name: "Salary", Type: "income", Color: "#10B981"},
	{Name: "Freelance", Type: "income", Color: "#06B6D4"},
	{Name: "Investments", Type: "income", Color: "#8B5CF6"},
	{Name: "Food & Dining", Type: "expense", Color: "#EF4444"},
	{Name: "Transportation", Type: "expense", Color: "#F59E0B"},
	{Name: "Shopping", Type: "expense", Color: "#EC4899"},
	{Name: "Bills & Utilities", Type: "expense", Color: "#6366F1"},
	{Name: "Entertainment", Type: "expense", Color: "#14B8A6"},
	{Name: "Healthcare", Type: "expense", Color: "#F97316"},
}

// seed upserts the role accounts by email and inserts missing categories.
// With clear set, transactions and categories are removed first.
func seed(ctx context.Context, db *gorm.DB, bcryptCost int, clear bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db = db.WithContext(ctx)

	return db.Transaction(func(tx *gorm.DB) error {
		if clear {
			if err := tx.Where("1 = 1").Delete(&transactionDatamodel.Transaction{}).Error; err != nil {
				return fmt.Errorf("clear transactions: %w", err)
			}
			if err := tx.Where("1 = 1").Delete(&categoryDatamodel.Category{}).Error; err != nil {
				return fmt.Errorf("clear categories: %w", err)
			}
			fmt.Println("Cleared transactions and categories")
		}

		for _, u := range seedUsers {
			hash, err := auth.HashPassword(u.Password, bcryptCost)
			if err != nil {
				return fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			row := userDatamodel.User{
				Email:        u.Email,
				FirstName:    u.FirstName,
				LastName:     u.LastName,
				PasswordHash: hash,
				Role:         string(u.Role),
				IsActive:     true,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "password_hash", "role", "is_active"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("upsert user %s: %w", u.Email, err)
			}
			fmt.Printf("Seeded %s user: %s\n", u.Role, u.Email)
		}

		for _, c := range seedCategories {
			res := tx.Where("name = ? AND type = ?", c.Name, c.Type).FirstOrCreate(&c)
			if res.Error != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, res.Error)
			}
			if res.RowsAffected > 0 {
				fmt.Printf("Seeded category: %s (%s)\n", c.Name, c.Type)
			}
		}
		return nil
	})
}
