// Package errors provides the standardized error system used across
// the dialog/message pipeline, the realtime hub, the scheduler, and
// the HTTP surface, mapping every failure to one of the kinds named in
// the system's error-handling design and a stable HTTP status.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode is a stable, machine-readable error code.
type ErrorCode string

const (
	// Client errors (400-499)
	ErrBadRequest           ErrorCode = "BAD_REQUEST"
	ErrValidationFailed     ErrorCode = "VALIDATION_ERROR"
	ErrMissingRequiredField ErrorCode = "MISSING_REQUIRED_FIELD"
	ErrInvalidDataType      ErrorCode = "INVALID_DATA_TYPE"
	ErrInvalidID            ErrorCode = "INVALID_ID"
	ErrRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrPayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrUnsupportedMedia     ErrorCode = "UNSUPPORTED_MEDIA_TYPE"

	// Authentication & authorization (401-403)
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"

	// Not found (404)
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"
	ErrDialogNotFound   ErrorCode = "DIALOG_NOT_FOUND"
	ErrMessageNotFound  ErrorCode = "MESSAGE_NOT_FOUND"

	// Conflict (409)
	ErrConflict ErrorCode = "CONFLICT"

	// Server errors (500-599)
	ErrInternalServer        ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrServiceUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrDatabaseError         ErrorCode = "DATABASE_ERROR"
	ErrCacheError            ErrorCode = "CACHE_ERROR"
	ErrObjectStoreError      ErrorCode = "OBJECT_STORE_ERROR"
	ErrWebhookError          ErrorCode = "WEBHOOK_ERROR"

	// Configuration errors
	ErrMissingEnvVar        ErrorCode = "MISSING_ENV_VAR"
	ErrInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
)

// StatusCodes maps each ErrorCode to its HTTP status.
var StatusCodes = map[ErrorCode]int{
	ErrBadRequest:           http.StatusBadRequest,
	ErrValidationFailed:     http.StatusBadRequest,
	ErrMissingRequiredField: http.StatusBadRequest,
	ErrInvalidDataType:      http.StatusBadRequest,
	ErrInvalidID:            http.StatusBadRequest,
	ErrRateLimitExceeded:    http.StatusTooManyRequests,
	ErrPayloadTooLarge:      http.StatusRequestEntityTooLarge,
	ErrUnsupportedMedia:     http.StatusUnsupportedMediaType,

	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,

	ErrResourceNotFound: http.StatusNotFound,
	ErrDialogNotFound:   http.StatusNotFound,
	ErrMessageNotFound:  http.StatusNotFound,

	ErrConflict: http.StatusConflict,

	ErrInternalServer:        http.StatusInternalServerError,
	ErrServiceUnavailable:    http.StatusServiceUnavailable,
	ErrDependencyUnavailable: http.StatusServiceUnavailable,
	ErrDatabaseError:         http.StatusInternalServerError,
	ErrCacheError:            http.StatusInternalServerError,
	ErrObjectStoreError:      http.StatusInternalServerError,
	ErrWebhookError:          http.StatusInternalServerError,

	ErrMissingEnvVar:        http.StatusInternalServerError,
	ErrInvalidConfiguration: http.StatusInternalServerError,
}

// AppError is a structured application error with request-tracing
// metadata, the single error shape handlers and the error-handler
// middleware operate on.
type AppError struct {
	Code      ErrorCode   `json:"error"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode resolves the HTTP status for this error, falling back to
// 500 for any code missing from the table (never leaving a response
// unmapped).
func (e *AppError) StatusCode() int {
	if code, ok := StatusCodes[e.Code]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Timestamp: time.Now()}
}

func NewWithDetails(code ErrorCode, message string, details interface{}) *AppError {
	return &AppError{Code: code, Message: message, Details: details, Timestamp: time.Now()}
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// Wrap converts any error into an AppError, preserving one that
// already is.
func Wrap(err error, code ErrorCode) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(code, err.Error())
}

// IsAppError reports whether err is an *AppError.
func IsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// IsNotFound reports whether err represents a not-found condition,
// used by callers that need to distinguish "missing" from other
// failures without string-matching messages.
func IsNotFound(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case ErrResourceNotFound, ErrDialogNotFound, ErrMessageNotFound:
		return true
	default:
		return false
	}
}
