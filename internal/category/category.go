package category

import (
	"time"

	categoryDatamodel "github.com/frahmantamala/finance-tracker/internal/core/datamodel/category"
)

const (
	KindIncome  = "income"
	KindExpense = "expense"

	DefaultColor = "#3B82F6"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Color     string    `json:"color"`
	Icon      *string   `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewCategory(name, kind, color string, icon *string) *Category {
	if color == "" {
		color = DefaultColor
	}
	now := time.Now().UTC()
	return &Category{
		Name:      name,
		Type:      kind,
		Color:     color,
		Icon:      icon,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply merges a partial update and reports whether the name or color
// changed. Those two are copied into analytics and transaction payloads.
func (c *Category) Apply(dto UpdateCategoryDTO) (presentationChanged bool) {
	if dto.Name != nil && *dto.Name != c.Name {
		c.Name = *dto.Name
		presentationChanged = true
	}
	if dto.Color != nil && *dto.Color != c.Color {
		c.Color = *dto.Color
		presentationChanged = true
	}
	if dto.Type != nil {
		c.Type = *dto.Type
	}
	if dto.Icon != nil {
		c.Icon = dto.Icon
	}
	c.UpdatedAt = time.Now().UTC()
	return presentationChanged
}

func ToDataModel(c *Category) *categoryDatamodel.Category {
	return &categoryDatamodel.Category{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Color:     c.Color,
		Icon:      c.Icon,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func FromDataModel(c *categoryDatamodel.Category) *Category {
	return &Category{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Color:     c.Color,
		Icon:      c.Icon,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}
