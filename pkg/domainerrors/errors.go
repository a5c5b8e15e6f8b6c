// Package domainerrors provides coded errors for the service boundary.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing
// infrastructure facts; services translate those into coded domain errors that
// the transport layer can map to user-facing responses without string
// matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks input that fails a field-level rule, e.g. a
	// rejection without a comment.
	CodeValidation Code = "validation_failed"
	// CodeInvalidTransition marks a state machine guard failure.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeAccessDenied marks a tenant or role mismatch. Presented as
	// not-found to non-superusers so out-of-tenant records are never
	// confirmed to exist.
	CodeAccessDenied Code = "access_denied"
	// CodeConflict marks the loser of an optimistic concurrency check.
	CodeConflict Code = "conflict"
	// CodeNotFound marks an absent case, institution or organisation.
	CodeNotFound Code = "not_found"
	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match on code equality so callers can compare against a
// template error.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not pass through this package.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
