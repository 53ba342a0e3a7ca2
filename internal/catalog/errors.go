package catalog

import (
	"errors"
	"fmt"
	"strings"

	"pricebook/internal/types"
)

// Sentinel errors. Every lookup failure is returned as a *types.AppError that
// wraps one of these, so callers can use either errors.Is or the AppError code.
var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrPhaseNotFound        = errors.New("phase not found")
	ErrPriceListNotFound    = errors.New("price list not found")
	ErrVersionNotFound      = errors.New("no catalog version in effect")
	ErrNoRuleMatched        = errors.New("no rule matched")
	ErrCurrencyValueMissing = errors.New("currency value missing")
	ErrCatalogNameMismatch  = errors.New("catalog name mismatch")
	ErrDuplicateVersion     = errors.New("duplicate catalog effective date")
	ErrInvalidPhaseName     = errors.New("invalid phase name")
)

func planNotFound(format string, args ...any) *types.AppError {
	return types.NewAppError(types.ErrCodeNotFoundPlan, fmt.Sprintf(format, args...), ErrPlanNotFound)
}

func productNotFound(name string) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeNotFoundProduct,
		fmt.Sprintf("product '%s' not found", name), ErrProductNotFound,
		map[string]any{"product": name})
}

func phaseNotFound(name string) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeNotFoundPhase,
		fmt.Sprintf("phase '%s' not found", name), ErrPhaseNotFound,
		map[string]any{"phase": name})
}

func priceListNotFound(name string) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeNotFoundPriceList,
		fmt.Sprintf("price list '%s' not found", name), ErrPriceListNotFound,
		map[string]any{"price_list": name})
}

func noRuleMatched(rule string) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeRuleNoMatch,
		fmt.Sprintf("no %s rule matched", rule), ErrNoRuleMatched,
		map[string]any{"rule": rule})
}

// IsNotFound reports whether err is any of the NotFound kinds.
func IsNotFound(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code.IsNotFound()
	}
	return false
}

// ValidationError is a single structural defect found while validating a
// catalog version.
// Document is set when the defect was found while loading several documents.
type ValidationError struct {
	Document string `json:"document,omitempty"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Message  string `json:"message"`
}

func (e ValidationError) String() string {
	s := fmt.Sprintf("%s '%s': %s", e.Kind, e.Name, e.Message)
	if e.Name == "" {
		s = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Document != "" {
		return e.Document + ": " + s
	}
	return s
}

// ValidationErrors collects every defect of a catalog load so they can be
// reported together instead of failing on the first one.
type ValidationErrors []ValidationError

// Add appends a defect.
func (v *ValidationErrors) Add(kind, name, format string, args ...any) {
	*v = append(*v, ValidationError{Kind: kind, Name: name, Message: fmt.Sprintf(format, args...)})
}

// Merge appends every defect of other.
func (v *ValidationErrors) Merge(other ValidationErrors) {
	*v = append(*v, other...)
}

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.String()
	}
	return fmt.Sprintf("%d catalog validation error(s): %s", len(v), strings.Join(parts, "; "))
}

// Err returns nil when v is empty, and an AppError wrapping v otherwise.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationCatalogInvalid,
		fmt.Sprintf("catalog has %d validation error(s)", len(v)), v,
		map[string]any{"errors": []ValidationError(v)})
}

// Object kinds used in ValidationError.Kind.
const (
	kindCatalog   = "catalog"
	kindCurrency  = "currency"
	kindProduct   = "product"
	kindPlan      = "plan"
	kindPhase     = "phase"
	kindPrice     = "price"
	kindDuration  = "duration"
	kindPriceList = "price_list"
	kindRules     = "rules"
)
