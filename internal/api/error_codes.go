// internal/api/error_codes.go
package api

// API error codes
const (
	// general
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorForbidden     = "FORBIDDEN"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"
	ErrorTimeout       = "TIMEOUT"

	// sessions
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorSessionClosed   = "SESSION_CLOSED"
	ErrorTokenInvalid    = "TOKEN_INVALID"
	ErrorTokenMismatch   = "TOKEN_SESSION_MISMATCH"

	// catalog and progress
	ErrorFeelingNotFound = "FEELING_NOT_FOUND"
	ErrorTaskNotFound    = "TASK_NOT_FOUND"
	ErrorCategoryInvalid = "CATEGORY_INVALID"
	ErrorViewInvalid     = "VIEW_INVALID"

	// tuning
	ErrorTuningInvalid = "TUNING_INVALID"
)
