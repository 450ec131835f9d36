package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Packages MUST use these instead of string literals.
const (
	// Validation (400)
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidURL   ErrorCode = "validation_invalid_url"
	ErrCodeValidationPlanCode     ErrorCode = "validation_invalid_plan_code"
	ErrCodeValidationTimezone     ErrorCode = "validation_invalid_timezone"
	ErrCodeValidationTimeOfDay    ErrorCode = "validation_time_of_day_out_of_range"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationInvalidValue ErrorCode = "validation_invalid_value"

	// Auth (401)
	ErrCodeAuthTokenMissing          ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid          ErrorCode = "auth_token_invalid"
	ErrCodeAuthPortalUnauthenticated ErrorCode = "auth_portal_not_authenticated"

	// Not Found (404)
	ErrCodeNotFoundPlan      ErrorCode = "not_found_plan"
	ErrCodeNotFoundRunConfig ErrorCode = "not_found_run_config"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalSealing     ErrorCode = "internal_sealing_error"
	ErrCodeUpstreamTransport   ErrorCode = "upstream_portal_transport"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_portal_unavailable"
	ErrCodeUpstreamStructure   ErrorCode = "upstream_portal_structure"
	ErrCodeUpstreamUnclear     ErrorCode = "upstream_portal_unclear"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Unrecognized codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case c == ErrCodeAuthPortalUnauthenticated:
		// The operator is authenticated; the portal session is not.
		return http.StatusBadGateway
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Portal flows, repositories
// and handlers all express failures as AppError so that the engine boundary
// and the API layer can classify them uniformly.
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

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// HasCode reports whether err is (or wraps) an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// Message returns the human-readable text for err. For AppErrors this is the
// Message field without the code prefix; other errors use Error().
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
