// Package dErrors provides coded domain errors. Codes travel with the error
// through wrapping, drive the HTTP status mapping in httputil, and give
// callers a stable contract independent of message wording.
package dErrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain error.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal_error"
	CodePersistence        Code = "persistence_error"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
)

// Review workflow codes. Each names a precondition a reviewer can act on.
const (
	CodeIncompleteChecklist     Code = "incomplete_checklist"
	CodeIncompleteVerification  Code = "incomplete_verification"
	CodeMissingReason           Code = "missing_reason"
	CodeApplicationClosed       Code = "application_closed"
	CodePrerequisitesIncomplete Code = "prerequisite_stages_incomplete"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is makes two coded errors equal when code and message match, so tests can
// use errors.Is against a freshly constructed error.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// CodeOf returns the code of the outermost coded error, or CodeInternal when
// the chain carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return CodeInternal
	}
	return domainErr.Code
}

// Description returns the outermost coded error's message, or the raw error
// text for uncoded errors.
func Description(err error) string {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return err.Error()
	}
	return domainErr.Message
}
