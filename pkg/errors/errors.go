package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates out-of-range or missing request parameters
	ErrorTypeValidation ErrorType = "BAD_REQUEST"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeConfigMissing indicates a required env var or config file is absent
	ErrorTypeConfigMissing ErrorType = "CONFIG_MISSING"

	// ErrorTypeDatasetUnavailable indicates the canonical table cannot be read
	ErrorTypeDatasetUnavailable ErrorType = "DATASET_UNAVAILABLE"

	// ErrorTypeProviderTransient indicates a timeout or 5xx from a geocoder or travel-time provider
	ErrorTypeProviderTransient ErrorType = "PROVIDER_TRANSIENT"

	// ErrorTypeInvariantViolation indicates a forbidden value reached a write path
	ErrorTypeInvariantViolation ErrorType = "INVARIANT_VIOLATION"

	// ErrorTypeParse indicates a row-level parse failure during ingestion
	ErrorTypeParse ErrorType = "PARSE_ERROR"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error type to the status code returned to API clients.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeDatasetUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeProviderTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewConfigMissingError reports a required setting that is absent
func NewConfigMissingError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConfigMissing,
		Message: message,
	}
}

// NewDatasetUnavailableError reports that the canonical table cannot be served
func NewDatasetUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDatasetUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewProviderTransientError wraps a retryable provider failure
func NewProviderTransientError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeProviderTransient,
		Message: message,
		Err:     err,
	}
}

// NewInvariantViolationError reports a forbidden value on a write path
func NewInvariantViolationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvariantViolation,
		Message: message,
	}
}

// NewParseError reports a row that could not be parsed
func NewParseError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeParse,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err (or anything it wraps) is an AppError of type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// As extracts the AppError from err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
