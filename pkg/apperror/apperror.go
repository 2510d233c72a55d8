// Package apperror defines the structured error taxonomy shared by all
// domain services. Every operation failure surfaces to the caller as a
// stable code plus a human-readable message; the HTTP layer attaches the
// request's correlation id before serializing.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of operation failure.
type Code string

const (
	CodeValidation            Code = "VALIDATION_ERROR"
	CodeNotFound              Code = "NOT_FOUND"
	CodeSlotUnavailable       Code = "SLOT_UNAVAILABLE"
	CodeSlotConflict          Code = "SLOT_CONFLICT"
	CodeLimitExceeded         Code = "LIMIT_EXCEEDED"
	CodeCutoffViolation       Code = "CUTOFF_VIOLATION"
	CodeLeadTimeViolation     Code = "LEAD_TIME_VIOLATION"
	CodeInvalidState          Code = "INVALID_STATE"
	CodeConflict              Code = "CONFLICT"
	CodeDependencyUnavailable Code = "DEPENDENCY_UNAVAILABLE"
	CodeInternal              Code = "INTERNAL_ERROR"
)

// Error is a service-level failure with a stable code.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// CorrelationID is filled in by the HTTP error handler from the
	// request id; services never set it themselves.
	CorrelationID string `json:"correlationId,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error for logging; the cause is never
// serialized to clients.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newf(CodeValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(CodeNotFound, format, args...)
}

func SlotUnavailable(format string, args ...interface{}) *Error {
	return newf(CodeSlotUnavailable, format, args...)
}

func SlotConflict(format string, args ...interface{}) *Error {
	return newf(CodeSlotConflict, format, args...)
}

func LimitExceeded(format string, args ...interface{}) *Error {
	return newf(CodeLimitExceeded, format, args...)
}

func CutoffViolation(format string, args ...interface{}) *Error {
	return newf(CodeCutoffViolation, format, args...)
}

func LeadTimeViolation(format string, args ...interface{}) *Error {
	return newf(CodeLeadTimeViolation, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return newf(CodeInvalidState, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newf(CodeConflict, format, args...)
}

func DependencyUnavailable(format string, args ...interface{}) *Error {
	return newf(CodeDependencyUnavailable, format, args...)
}

func Internal(format string, args ...interface{}) *Error {
	return newf(CodeInternal, format, args...)
}

// As unwraps err into an *Error, or nil if the chain holds none.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// CodeOf returns the taxonomy code of err, or "" for plain errors.
func CodeOf(err error) Code {
	if ae := As(err); ae != nil {
		return ae.Code
	}
	return ""
}

// HTTPStatus maps a taxonomy code to the status the API serves it with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSlotUnavailable, CodeSlotConflict, CodeConflict:
		return http.StatusConflict
	case CodeLimitExceeded, CodeCutoffViolation, CodeLeadTimeViolation, CodeInvalidState:
		return http.StatusUnprocessableEntity
	case CodeDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
