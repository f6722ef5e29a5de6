// Package errors provides structured error types for deciduous.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP host
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow the taxonomy of the compiler:
//   - DECODE_ERROR: the document is not well-formed YAML
//   - DUPLICATE_ID, UNKNOWN_REFERENCE, UNKNOWN_FILTER, INVALID_DOCUMENT:
//     document validation failures (the whole document is rejected)
//   - INVALID_FORMAT, LAYOUT_ERROR, NO_SOURCE: export and render failures
//   - INTERNAL_ERROR: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidFormat, "unknown format: %s", f)
//	if errors.Is(err, errors.ErrCodeInvalidFormat) {
//	    // Handle bad flag
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLayout, origErr, "graphviz failed")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Document errors
	ErrCodeDecode          Code = "DECODE_ERROR"
	ErrCodeDuplicateID     Code = "DUPLICATE_ID"
	ErrCodeUnknownRef      Code = "UNKNOWN_REFERENCE"
	ErrCodeUnknownFilter   Code = "UNKNOWN_FILTER"
	ErrCodeInvalidDocument Code = "INVALID_DOCUMENT"

	// Export errors
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeLayout        Code = "LAYOUT_ERROR"
	ErrCodeNoSource      Code = "NO_SOURCE"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// ValidationError reports a document that cannot be compiled. NodeID names
// the entry the problem was found at; it is empty for document-level
// problems such as a malformed title.
type ValidationError struct {
	Code   Code
	NodeID string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("%s: node %q: %s", e.Code, e.NodeID, e.Reason)
}

// Invalid creates a ValidationError for the given node.
func Invalid(code Code, nodeID, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, NodeID: nodeID, Reason: fmt.Sprintf(format, args...)}
}

// FilterError reports a filter entry naming a node the document never
// declares. It is a validation failure in its own right: an unresolvable
// filter is never treated as a no-op.
type FilterError struct {
	NodeID string
}

// Error implements the error interface.
func (e *FilterError) Error() string {
	return fmt.Sprintf("%s: filter names undeclared node %q", ErrCodeUnknownFilter, e.NodeID)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for a coded error with a matching code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error chain carries no code.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Code
	}
	var f *FilterError
	if errors.As(err, &f) {
		return ErrCodeUnknownFilter
	}
	return ""
}

// NodeID returns the offending node of a validation failure, or "".
func NodeID(err error) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.NodeID
	}
	var f *FilterError
	if errors.As(err, &f) {
		return f.NodeID
	}
	return ""
}

// IsValidation reports whether err rejects the document itself (as opposed
// to an I/O or render failure).
func IsValidation(err error) bool {
	var v *ValidationError
	var f *FilterError
	return errors.As(err, &v) || errors.As(err, &f)
}

// UserMessage returns a user-friendly message for the error.
// For coded errors, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	var v *ValidationError
	if errors.As(err, &v) {
		if v.NodeID == "" {
			return v.Reason
		}
		return fmt.Sprintf("%s: %s", v.NodeID, v.Reason)
	}
	var f *FilterError
	if errors.As(err, &f) {
		return fmt.Sprintf("filter names undeclared node %q", f.NodeID)
	}
	return err.Error()
}
