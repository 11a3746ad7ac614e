package auth

import (
	"unicode"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/core/common/validation"
)

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterDTO is the self-service sign-up payload. New accounts always get
// the user role.
type RegisterDTO struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"first_name" validate:"omitempty,max=50"`
	LastName  string `json:"last_name" validate:"omitempty,max=50"`
}

// RefreshTokenDTO for refresh token requests
type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (d LoginDTO) Validate() error {
	return validation.Struct(d)
}

func (d RefreshTokenDTO) Validate() error {
	return validation.Struct(d)
}

// Validate checks the tags and then the password mix: at least one upper
// case letter, one lower case letter and one digit.
func (d RegisterDTO) Validate() error {
	if err := validation.Struct(d); err != nil {
		return err
	}
	var upper, lower, digit bool
	for _, r := range d.Password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if appErr := validation.NewValidator().
		Check(upper && lower && digit, "password",
			"password must contain an upper case letter, a lower case letter and a digit",
			internal.ErrCodeValidationFailed).
		Validate(); appErr != nil {
		return appErr
	}
	return nil
}
