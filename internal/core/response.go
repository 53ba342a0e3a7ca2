package core

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"pricebook/internal/types"
)

// maxRequestBodySize bounds request bodies. Policy and price queries are small.
const maxRequestBodySize = 1 << 20

// APIResponse is the envelope for successful responses.
type APIResponse struct {
	Data any `json:"data"`
}

// APIErrorResponse is the envelope for error responses.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible part of an error.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// JSON writes data with the given status. A value that cannot be marshalled
// produces a 500 error envelope instead.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Data writes data wrapped in an APIResponse with status 200.
func Data(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, r, http.StatusOK, APIResponse{Data: data})
}

// Error writes err as an APIErrorResponse. An *types.AppError anywhere in the
// chain selects the status and is shown to the client; any other error becomes
// an opaque 500 and is logged with the request logger.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := types.GetRequestID(ctx)

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus()
		if status >= http.StatusInternalServerError {
			requestLogger(ctx).Error("request failed", "code", appErr.Code, "error", appErr)
		}
		JSON(w, r, status, APIErrorResponse{Error: ErrorDetail{
			Code:      string(appErr.Code),
			Message:   appErr.Message,
			Details:   appErr.Details,
			RequestID: requestID,
		}})
		return
	}

	requestLogger(ctx).Error("unexpected error", "error", err)
	JSON(w, r, http.StatusInternalServerError, APIErrorResponse{Error: ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: requestID,
	}})
}

// DecodeJSON reads a single JSON value from the body into dst. Unknown fields,
// trailing values, empty bodies and bodies over 1MB are rejected with
// validation_invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must contain a single JSON object", nil)
	}
	return nil
}

// requestLogger returns the logger stored by RequestIDMiddleware, or the
// default logger outside a request chain.
func requestLogger(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return types.NewSlogLogger(nil)
}

func mapDecodeError(err error) *types.AppError {
	var (
		maxBytesErr      *http.MaxBytesError
		syntaxErr        *json.SyntaxError
		unmarshalTypeErr *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not exceed 1MB", err)
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err)
	case errors.As(err, &unmarshalTypeErr):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, "invalid value for field", err,
			map[string]any{"field": unmarshalTypeErr.Field, "expected": unmarshalTypeErr.Type.String()})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	case errors.Is(err, io.EOF):
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not be empty", err)
	default:
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid JSON in request body", err)
	}
}
