package category

import (
	"regexp"
	"strings"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/core/common/validation"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type CreateCategoryDTO struct {
	Name  string  `json:"name" validate:"required,min=1,max=100"`
	Type  string  `json:"type" validate:"required,oneof=income expense"`
	Color string  `json:"color"`
	Icon  *string `json:"icon" validate:"omitempty,max=50"`
}

// UpdateCategoryDTO is a partial update; nil fields keep their value.
type UpdateCategoryDTO struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Type  *string `json:"type" validate:"omitempty,oneof=income expense"`
	Color *string `json:"color"`
	Icon  *string `json:"icon" validate:"omitempty,max=50"`
}

func (d *CreateCategoryDTO) Validate() error {
	d.Name = strings.TrimSpace(d.Name)
	b := validation.NewValidator().Merge("body", validation.Struct(d))
	if d.Color != "" {
		checkColor(b, d.Color)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

func (d *UpdateCategoryDTO) Validate() error {
	if d.Name != nil {
		trimmed := strings.TrimSpace(*d.Name)
		d.Name = &trimmed
	}
	b := validation.NewValidator().Merge("body", validation.Struct(d))
	if d.Color != nil {
		checkColor(b, *d.Color)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	return nil
}

func checkColor(b *validation.ValidationBuilder, color string) {
	b.Check(colorPattern.MatchString(color), "color", "color must be a hex color like #3B82F6", internal.ErrCodeValidationFailed)
}
