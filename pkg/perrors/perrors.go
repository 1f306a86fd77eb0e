// Package perrors provides structured error values for the parlance engine.
//
// Validation failures inside the engine are not exceptional control flow:
// they are values a caller checks and reports, with zero mutation performed.
// Each carries a machine-readable code and a human-readable message, and can
// wrap an underlying cause for errors.Is/As chains.
//
// # Error Codes
//
// Codes follow a hierarchical naming convention:
//   - INVALID_*: validation failures (kind incompatibility, bad input)
//   - NOT_FOUND_*: a referenced node, pointer, or archive entry is missing
//   - STORAGE_*/DECODE_*: scrap archive data failures
//
// # Usage
//
//	err := perrors.New(perrors.ErrCodeInvalidKind, "reply node cannot be a start")
//	if perrors.Is(err, perrors.ErrCodeInvalidKind) {
//	    // report to the user, retry with different input
//	}
package perrors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the engine's failure taxonomy.
const (
	// Validation failures: no mutation was performed, fully recoverable by
	// the caller retrying with different input.
	ErrCodeInvalidKind       Code = "INVALID_KIND"
	ErrCodeInvalidTarget     Code = "INVALID_TARGET"
	ErrCodeUnreachableParent Code = "UNREACHABLE_PARENT"
	ErrCodeInvalidInput      Code = "INVALID_INPUT"

	// Missing resources.
	ErrCodeNodeNotFound    Code = "NOT_FOUND_NODE"
	ErrCodePointerNotFound Code = "NOT_FOUND_POINTER"
	ErrCodeEntryNotFound   Code = "NOT_FOUND_ENTRY"
	ErrCodeBatchNotFound   Code = "NOT_FOUND_BATCH"

	// Scrap archive data failures.
	ErrCodeStorage Code = "STORAGE_ERROR"
	ErrCodeDecode  Code = "DECODE_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
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

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
