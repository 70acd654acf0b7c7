// Package sqlerr defines the errors raised while building, executing and
// reading queries.
package sqlerr

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnsupportedCapability is returned when a backend cannot serve the
	// requested table capability.
	ErrUnsupportedCapability = errors.New("capability not supported by backend")

	// ErrConsumed is returned when a table's rows have already been read.
	ErrConsumed = errors.New("table rows already consumed")

	// ErrClosed is returned by operations on a closed table.
	ErrClosed = errors.New("table is closed")
)

// MalformedQueryError reports builder misuse detected before any backend call.
type MalformedQueryError struct {
	Reason string
}

// Error implements the error interface.
func (e *MalformedQueryError) Error() string {
	return "malformed query: " + e.Reason
}

// Malformed creates a MalformedQueryError.
func Malformed(format string, args ...any) *MalformedQueryError {
	return &MalformedQueryError{Reason: fmt.Sprintf(format, args...)}
}

// ExecutionError reports a statement the backend rejected. Query holds the
// statement text only; parameter values are never recorded.
type ExecutionError struct {
	Query string
	Err   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %v (query: %s)", e.Err, e.Query)
}

// Unwrap returns the backend error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// CursorError reports a failure while fetching a row. The cursor has
// already been closed when this error is returned.
type CursorError struct {
	Query    string
	RowIndex int64
	Err      error
}

// Error implements the error interface.
func (e *CursorError) Error() string {
	return fmt.Sprintf("cursor error at row %d: %v (query: %s)", e.RowIndex, e.Err, e.Query)
}

// Unwrap returns the fetch error.
func (e *CursorError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is or wraps a MalformedQueryError.
func IsMalformed(err error) bool {
	var target *MalformedQueryError
	return errors.As(err, &target)
}

// IsExecution reports whether err is or wraps an ExecutionError.
func IsExecution(err error) bool {
	var target *ExecutionError
	return errors.As(err, &target)
}

// IsCursor reports whether err is or wraps a CursorError.
func IsCursor(err error) bool {
	var target *CursorError
	return errors.As(err, &target)
}
