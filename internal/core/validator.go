package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pricebook/internal/types"
)

// enumValue is implemented by the catalog enums in package types.
type enumValue interface {
	IsValid() bool
}

// Validator wraps go-playground/validator with the catalog's custom tags.
//
// Custom tags:
//   - enum:     the field implements IsValid() and reports true. Empty values
//     pass so that optional specifier fields can be combined with omitempty.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a Validator. Field names in errors use the json tag.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	if err := v.RegisterValidation("enum", validateEnum); err != nil {
		logger.Error("failed to register validation", "tag", "enum", "error", err)
	}

	return &Validator{validate: v, logger: logger}
}

func validateEnum(fl validator.FieldLevel) bool {
	if fl.Field().Kind() == reflect.String && fl.Field().Len() == 0 {
		return true
	}
	e, ok := fl.Field().Interface().(enumValue)
	if !ok {
		return false
	}
	return e.IsValid()
}

// ValidateStruct validates s and returns a validation_missing_required_field
// or validation_invalid_selector AppError listing every failed field.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	code := types.ErrCodeValidationInvalidSelector
	missing := true
	for _, fe := range verrs {
		fields[fieldPath(fe)] = describe(fe)
		if fe.Tag() != "required" {
			missing = false
		}
	}
	if missing {
		code = types.ErrCodeValidationMissingField
	}

	return types.NewAppErrorWithDetails(code, "request validation failed", err, map[string]any{"fields": fields})
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "enum":
		return fmt.Sprintf("'%v' is not a valid value", fe.Value())
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}
