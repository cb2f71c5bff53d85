package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidEmail  ErrorCode = "validation_invalid_email"
	ErrCodeValidationInvalidTier   ErrorCode = "validation_invalid_plan_tier"
	ErrCodeValidationNegativeLimit ErrorCode = "validation_negative_limit_override"
	ErrCodeValidationInvalidInput  ErrorCode = "validation_invalid_input"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"
	ErrCodeAuthTokenRevoked ErrorCode = "auth_token_revoked"

	// Permission (403)
	ErrCodePermissionWorkspace ErrorCode = "permission_workspace_mismatch"
	ErrCodePermissionAdmin     ErrorCode = "permission_admin_required"

	// Limits (403)
	ErrCodeLimitSparks     ErrorCode = "limit_sparks_exceeded"
	ErrCodeLimitMembers    ErrorCode = "limit_members_exceeded"
	ErrCodeLimitStorage    ErrorCode = "limit_storage_exceeded"
	ErrCodeLimitWorkspaces ErrorCode = "limit_workspaces_exceeded"

	// Not Found (404)
	ErrCodeNotFoundWorkspace ErrorCode = "not_found_workspace"
	ErrCodeNotFoundMember    ErrorCode = "not_found_member"
	ErrCodeNotFoundAsset     ErrorCode = "not_found_asset"
	ErrCodeNotFoundPost      ErrorCode = "not_found_post"
	ErrCodeNotFoundInvite    ErrorCode = "not_found_invite"

	// Conflict (409)
	ErrCodeConflictMemberExists ErrorCode = "conflict_member_exists"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamLLM        ErrorCode = "upstream_llm_unavailable"
	ErrCodeUpstreamEmail      ErrorCode = "upstream_email_unavailable"
	ErrCodeUpstreamStorage    ErrorCode = "upstream_storage_unavailable"
	ErrCodeUpstreamStripe     ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamRateLimit  ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "permission_"):
		return http.StatusForbidden
	case strings.HasPrefix(s, "limit_"):
		return http.StatusForbidden
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case s == string(ErrCodeUpstreamRateLimit):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
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

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain errors.
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
