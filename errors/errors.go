// Package errors provides error handling for Loom.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrNotFound) {
//	    // handle not found
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Mark associates an error with a reference sentinel so errors.Is matches
// the sentinel without changing the message.
var Mark = crdb.Mark

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Common sentinel errors for use across Loom.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrConflict indicates a resource conflict (e.g., duplicate name)
	ErrConflict = New("resource conflict")
)

// Binding resolution failures. Each one identifies which part of a
// data-source binding could not be satisfied.
var (
	// ErrSourceNotFound indicates the binding references an unknown dataset
	ErrSourceNotFound = New("source not found")

	// ErrRecordUnavailable indicates a record-scoped binding had no current record
	ErrRecordUnavailable = New("record unavailable")

	// ErrRowOutOfRange indicates a global binding's row exceeds the dataset size
	ErrRowOutOfRange = New("row out of range")
)

// Parser pipeline failures, tagged per strategy so callers can report
// which stage of response handling went wrong.
var (
	// ErrSchemaParse indicates the structured parser's schema definition is malformed
	ErrSchemaParse = New("schema parse error")

	// ErrStructuredExtraction indicates model output could not be coerced to the schema
	ErrStructuredExtraction = New("structured extraction error")

	// ErrCustomParser wraps any failure in user-supplied parser code
	ErrCustomParser = New("custom parser error")
)

// ErrInvocation indicates a (possibly transient) model invocation failure.
var ErrInvocation = New("invocation error")

// ErrRender indicates template parsing or execution failed.
var ErrRender = New("render error")

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsBindingError reports whether the error belongs to the binding
// resolution taxonomy.
func IsBindingError(err error) bool {
	return err != nil && IsAny(err, ErrSourceNotFound, ErrRecordUnavailable, ErrRowOutOfRange)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
