package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/frahmantamala/finance-tracker/internal"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator. Field names in errors follow the
// json tag so they match what the client sent.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		instance.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return instance
}

// Struct validates v against its validate tags and converts failures into a
// validation AppError carrying one entry per field.
func Struct(v interface{}) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error(), apperrors.ErrCodeValidationFailed)
	}

	b := NewValidator()
	for _, fe := range fieldErrs {
		b.add(fe.Field(), message(fe), apperrors.ErrCodeValidationFailed)
	}
	if appErr := b.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "hexcolor", "len":
		return fmt.Sprintf("%s must be a hex color like #3B82F6", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ValidationBuilder collects field errors from hand-written checks.
type ValidationBuilder struct {
	errors []apperrors.ValidationError
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{}
}

func (v *ValidationBuilder) add(field, msg string, code apperrors.ErrorCode) {
	v.errors = append(v.errors, apperrors.ValidationError{Field: field, Message: msg, Code: string(code)})
}

// Check records an error for field when ok is false.
func (v *ValidationBuilder) Check(ok bool, field, msg string, code apperrors.ErrorCode) *ValidationBuilder {
	if !ok {
		v.add(field, msg, code)
	}
	return v
}

// Merge folds the field errors of err into the builder. Errors that are not
// validation AppErrors are recorded against field.
func (v *ValidationBuilder) Merge(field string, err error) *ValidationBuilder {
	if err == nil {
		return v
	}
	if appErr, ok := apperrors.IsAppError(err); ok {
		if details, ok := appErr.Details.(apperrors.ValidationErrors); ok {
			v.errors = append(v.errors, details.Errors...)
			return v
		}
		v.add(field, appErr.Message, appErr.Code)
		return v
	}
	v.add(field, err.Error(), apperrors.ErrCodeValidationFailed)
	return v
}

func (v *ValidationBuilder) Validate() *apperrors.AppError {
	if len(v.errors) == 0 {
		return nil
	}
	return apperrors.NewValidationError("Validation failed", apperrors.ErrCodeValidationFailed).
		WithDetails(apperrors.ValidationErrors{Errors: v.errors})
}
