package category

import "time"

type Category struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;size:100;not null;uniqueIndex:idx_categories_name_type"`
	Type      string    `gorm:"column:type;size:10;not null;uniqueIndex:idx_categories_name_type"`
	Color     string    `gorm:"column:color;size:7;not null"`
	Icon      *string   `gorm:"column:icon;size:50"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Category) TableName() string { return "categories" }
