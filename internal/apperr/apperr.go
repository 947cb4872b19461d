// Package apperr defines the machine-readable error taxonomy surfaced at the
// platform boundary. Validation and conflict errors are typed values, never
// panics; internal errors are logged with full context and surfaced generic.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeAuthRequired        Code = "AUTH_REQUIRED"
	CodeProviderNotFound    Code = "PROVIDER_NOT_FOUND"
	CodeProviderNotApproved Code = "PROVIDER_NOT_APPROVED"
	CodeRateLimitDaily      Code = "RATE_LIMIT_DAILY"
	CodeRateLimitProvider   Code = "RATE_LIMIT_PROVIDER"
	CodeSchemaNotFound      Code = "SCHEMA_NOT_FOUND"
	CodeSchemaInactive      Code = "SCHEMA_INACTIVE"
	CodeValidationFailed    Code = "VALIDATION_FAILED"
	CodeConflict            Code = "CONFLICT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error is a structured domain error.
type Error struct {
	Code        Code
	Message     string
	FieldErrors map[string]string // VALIDATION_FAILED only: field path -> message
	RetryAfter  time.Duration     // RATE_LIMIT_* only
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a VALIDATION_FAILED error carrying per-field messages.
func Validation(fieldErrors map[string]string) *Error {
	return &Error{
		Code:        CodeValidationFailed,
		Message:     "validation failed",
		FieldErrors: fieldErrors,
	}
}

// Conflict creates a state-conflict error. The fix is "reload state", not
// "change input", which is why it is distinct from validation.
func Conflict(format string, args ...any) *Error {
	return Newf(CodeConflict, format, args...)
}

// RateLimited creates a rate-limit error for the given scope with a computed
// retry-after.
func RateLimited(code Code, retryAfter time.Duration) *Error {
	return &Error{
		Code:       code,
		Message:    "submission limit reached",
		RetryAfter: retryAfter,
	}
}

// As unwraps err to an *Error if one is in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
