// Package domainerrors provides coded errors that services return to
// transport. Stores and clients return sentinel errors (pkg/platform/sentinel);
// services translate those into coded errors so handlers can map them onto
// HTTP statuses without inspecting infrastructure details.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and worker triage.
type Code string

const (
	// CodeNotFound: referenced entity absent (404-equivalent).
	CodeNotFound Code = "not_found"
	// CodeInvalidState: operation not permitted from the current lifecycle
	// state (400-equivalent). Messages name the offending state.
	CodeInvalidState Code = "invalid_state"
	// CodeValidation: malformed or missing required input (400-equivalent).
	CodeValidation Code = "validation_failure"
	// CodeUpstream: an external collaborator failed after retries or the
	// breaker is open (502-equivalent on read paths; logged and skipped on
	// worker paths).
	CodeUpstream Code = "upstream_unavailable"
	// CodeInternal: anything else.
	CodeInternal Code = "internal"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal if it has none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
