package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All packages MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationCatalogInvalid   ErrorCode = "validation_catalog_invalid"
	ErrCodeValidationInvalidSelector  ErrorCode = "validation_invalid_selector"
	ErrCodeValidationInvalidDate      ErrorCode = "validation_invalid_date"
	ErrCodeValidationInvalidCurrency  ErrorCode = "validation_invalid_currency"
	ErrCodeValidationMissingField     ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidJSON      ErrorCode = "validation_invalid_json"
	ErrCodeValidationInvalidPhaseName ErrorCode = "validation_invalid_phase_name"

	// Not Found (404)
	ErrCodeNotFoundPlan           ErrorCode = "not_found_plan"
	ErrCodeNotFoundProduct        ErrorCode = "not_found_product"
	ErrCodeNotFoundPhase          ErrorCode = "not_found_phase"
	ErrCodeNotFoundPriceList      ErrorCode = "not_found_price_list"
	ErrCodeNotFoundCatalogVersion ErrorCode = "not_found_catalog_version"

	// Conflict (409)
	ErrCodeConflictCatalogName   ErrorCode = "conflict_catalog_name_mismatch"
	ErrCodeConflictCatalogDate   ErrorCode = "conflict_catalog_effective_date"
	ErrCodeConflictCatalogExists ErrorCode = "conflict_catalog_version_exists"

	// Unprocessable (422)
	ErrCodeRuleNoMatch          ErrorCode = "rule_no_match"
	ErrCodeCurrencyValueMissing ErrorCode = "currency_value_missing"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalNotLoaded   ErrorCode = "internal_catalog_not_loaded"
	ErrCodeUpstreamStorage     ErrorCode = "upstream_storage_unavailable"
	ErrCodeUpstreamQueue       ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case c == ErrCodeRuleNoMatch, c == ErrCodeCurrencyValueMissing:
		return http.StatusUnprocessableEntity // 422
	case c == ErrCodeInternalNotLoaded:
		return http.StatusServiceUnavailable // 503
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// IsNotFound reports whether the code belongs to the NotFound kind.
func (c ErrorCode) IsNotFound() bool {
	return strings.HasPrefix(string(c), "not_found_")
}

// IsValidation reports whether c is one of the validation codes.
func (c ErrorCode) IsValidation() bool {
	return strings.HasPrefix(string(c), "validation_")
}

// AppError is the standard application error type used throughout the service.
// Catalog lookups, rule resolution and loading all report failures as AppError
// so callers get consistent formatting, HTTP status mapping and error chains.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
