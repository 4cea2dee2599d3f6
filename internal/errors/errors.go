package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeNoLearner  = "NO_LEARNER"
)

// Domain conditions shared across packages. Wrap with %w and test with errors.Is.
var (
	// ErrSessionOpen means a dwell session is already open for a different block.
	ErrSessionOpen = stderrors.New("a session is already open for another block")
	// ErrGated means the current block's minimum time has not elapsed.
	ErrGated = stderrors.New("minimum time for this block has not elapsed")
	// ErrDevModeUnavailable means the developer override is not compiled into this deployment.
	ErrDevModeUnavailable = stderrors.New("developer mode is not available")
	// ErrHourIncomplete means an hour was completed before reaching the required time.
	ErrHourIncomplete = stderrors.New("hour has not reached the required time")
	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = stderrors.New("not found")
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	Code    string // Error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Message string // Human-readable error message
	Status  int    // HTTP status code
	Err     error  // Wrapped underlying error (optional)
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error wrapping support
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new NOT_FOUND error
func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// NewValidationError creates a new VALIDATION_ERROR
func NewValidationError(field string, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf("validation failed for %s: %s", field, reason),
		Status:  http.StatusBadRequest,
	}
}

// NewInternalError creates a new INTERNAL_ERROR
func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// NewBadRequestError creates a new BAD_REQUEST error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewConflictError creates a new CONFLICT error wrapping a domain condition.
func NewConflictError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: message,
		Status:  http.StatusConflict,
		Err:     err,
	}
}

// NewNoLearnerError reports a request that needs a selected learner but has none.
func NewNoLearnerError() *AppError {
	return &AppError{
		Code:    ErrCodeNoLearner,
		Message: "no learner selected",
		Status:  http.StatusUnauthorized,
	}
}

// FromDomain maps the package's sentinel errors onto AppErrors. Unknown errors become
// INTERNAL_ERROR; an error that already is an AppError is returned unchanged.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	switch {
	case stderrors.Is(err, ErrGated):
		return NewConflictError("cannot advance yet", err)
	case stderrors.Is(err, ErrSessionOpen):
		return NewConflictError("another block is still open", err)
	case stderrors.Is(err, ErrHourIncomplete):
		return NewConflictError("hour is not complete", err)
	case stderrors.Is(err, ErrDevModeUnavailable):
		return &AppError{Code: ErrCodeBadRequest, Message: "developer mode is not available", Status: http.StatusForbidden, Err: err}
	case stderrors.Is(err, ErrNotFound):
		return &AppError{Code: ErrCodeNotFound, Message: err.Error(), Status: http.StatusNotFound, Err: err}
	default:
		return NewInternalError(err)
	}
}
