package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ServiceError represents a service-level error with context
type ServiceError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Details    string `json:"details,omitempty"`
	Cause      error  `json:"-"` // Original error, not exposed in JSON
}

func (e ServiceError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(code, message string) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewServiceErrorWithStatus creates a service error with specific HTTP status
func NewServiceErrorWithStatus(code, message string, statusCode int) error {
	return ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// GetServiceError extracts a ServiceError from an error chain
func GetServiceError(err error) (ServiceError, bool) {
	var serviceErr ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr, true
	}
	return ServiceError{}, false
}

// IsErrorCode reports whether err carries the given service error code.
func IsErrorCode(err error, code string) bool {
	serviceErr, ok := GetServiceError(err)
	return ok && serviceErr.Code == code
}

// Common service error constructors
func NewUnauthorizedError(message string) error {
	return ServiceError{
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) error {
	return ServiceError{
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewNotFoundError(resource string) error {
	return ServiceError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func NewBadRequestError(message string) error {
	return ServiceError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewConflictError(message string) error {
	return ServiceError{
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string) error {
	return ServiceError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewDatabaseError(operation string, cause error) error {
	return ServiceError{
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("Database operation failed: %s", operation),
		Cause:      cause,
		StatusCode: http.StatusInternalServerError,
	}
}

// Domain errors

// NewUnsupportedMetricError marks a reading type the evaluator does not
// recognize. Ingestion continues without alerting.
func NewUnsupportedMetricError(readingType string) error {
	return ServiceError{
		Code:       ErrCodeUnsupportedMetric,
		Message:    fmt.Sprintf("Unsupported metric type: %s", readingType),
		StatusCode: http.StatusBadRequest,
	}
}

// NewPatientNotFoundError fails ingestion entirely; nothing is persisted or
// published.
func NewPatientNotFoundError() error {
	return ServiceError{
		Code:       ErrCodePatientNotFound,
		Message:    "Patient not found",
		StatusCode: http.StatusNotFound,
	}
}

// NewPermissionDeniedError marks a lifecycle transition attempted without the
// required capability. The alert state is unchanged.
func NewPermissionDeniedError(capability string) error {
	return ServiceError{
		Code:       ErrCodePermissionDenied,
		Message:    fmt.Sprintf("Missing required capability: %s", capability),
		StatusCode: http.StatusForbidden,
	}
}

// NewInvalidTransitionError marks a transition attempted from a state that
// does not permit it. The alert state is unchanged.
func NewInvalidTransitionError(from, to string) error {
	return ServiceError{
		Code:       ErrCodeInvalidTransition,
		Message:    fmt.Sprintf("Cannot transition alert from %s to %s", from, to),
		StatusCode: http.StatusConflict,
	}
}

func NewAlertNotFoundError() error {
	return NewNotFoundError("Alert")
}

func NewUserNotFoundError() error {
	return NewNotFoundError("User")
}

// Error code constants
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeAuthentication    = "AUTHENTICATION_ERROR"
	ErrCodeAuthorization     = "AUTHORIZATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeDatabase          = "DATABASE_ERROR"
	ErrCodeUnsupportedMetric = "UNSUPPORTED_METRIC"
	ErrCodePatientNotFound   = "PATIENT_NOT_FOUND"
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
)
