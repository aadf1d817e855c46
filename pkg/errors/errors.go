package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones satisfy errors.Is against the predefined values.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound        = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized    = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrAuthorization   = New("AUTHORIZATION_DENIED", http.StatusForbidden, "requested scope exceeds role permissions")
	ErrValidation      = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrDataUnavailable = &Error{Code: "DATA_UNAVAILABLE", Status: http.StatusServiceUnavailable, Message: "analytics data temporarily unavailable", Retryable: true}
	ErrResultTooLarge  = &Error{Code: "RESULT_TOO_LARGE", Status: http.StatusServiceUnavailable, Message: "query result exceeds row limit", Retryable: true}
	ErrInternal        = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrCacheMiss is returned by cache repositories when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Invalid builds a validation error naming the offending field.
func Invalid(field, message string) *Error {
	clone := Clone(ErrValidation, message)
	clone.Field = field
	return clone
}

// Denied builds an authorization error with a caller-facing reason.
func Denied(message string) *Error {
	return Clone(ErrAuthorization, message)
}

// Unavailable wraps a backing-store failure. The message stays generic; the cause is kept for logs.
func Unavailable(err error) *Error {
	clone := Clone(ErrDataUnavailable, "")
	clone.Err = err
	return clone
}

// IsAuthorization reports whether err is an authorization denial.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

// IsValidation reports whether err is a filter validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDataUnavailable reports whether err is a retryable data-availability failure, including the row cap.
func IsDataUnavailable(err error) bool {
	return errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrResultTooLarge)
}
