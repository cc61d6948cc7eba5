// Package errors provides coded error types for the roadgraph pipeline.
//
// Three codes carry pipeline semantics:
//   - TRANSIENT_REMOTE_FAILURE: a network or store call failed and may be retried.
//   - STRUCTURAL_INCONSISTENCY: the persisted graph does not have the shape a
//     contraction expected. The affected proposal is skipped, never patched.
//   - AMBIGUOUS_TRAVERSAL: a recursive way lookup produced more than one
//     candidate. The branch is dropped and counted.
//
// Usage:
//
//	err := errors.Wrap(errors.ErrCodeTransientRemote, cause, "lookup elevation for %d nodes", n)
//	if errors.Is(err, errors.ErrCodeTransientRemote) {
//	    // retry
//	}
package errors

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	ErrCodeTransientRemote Code = "TRANSIENT_REMOTE_FAILURE"
	ErrCodeStructural      Code = "STRUCTURAL_INCONSISTENCY"
	ErrCodeAmbiguous       Code = "AMBIGUOUS_TRAVERSAL"
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInternal        Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates an Error wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WrapErrorf is Wrap with the argument order used across the pipeline packages.
func WrapErrorf(orig error, code Code, format string, a ...any) error {
	return Wrap(code, orig, format, a...)
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code, or "" if err is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Transient marks err as retryable.
func Transient(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(ErrCodeTransientRemote, err, format, args...)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return Is(err, ErrCodeTransientRemote)
}

// Annotate wraps err with more context and keeps its code. Errors without a
// code are wrapped as internal errors.
func Annotate(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	code := GetCode(err)
	if code == "" {
		code = ErrCodeInternal
	}
	return Wrap(code, err, format, args...)
}
