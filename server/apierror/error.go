// Package apierror defines the coded errors returned by the HTTP service.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nnnkkk7/geoquery/pkg/catalog"
	"github.com/nnnkkk7/geoquery/pkg/sqlerr"
)

// Error codes
const (
	// Query Errors (001xxx)
	CodeSQLCompilationError = "001003"
	CodeSQLExecutionError   = "001007"
	CodeCursorError         = "001008"

	// Object Errors (002xxx)
	CodeObjectNotFound        = "002003"
	CodeUnsupportedCapability = "002101"
	CodeViewClosed            = "002102"
	CodeViewConsumed          = "002103"

	// System Errors (000xxx)
	CodeInternalError    = "000001"
	CodeInvalidParameter = "000002"
	CodeCanceled         = "000604"
)

// SQLState represents SQL standard error states.
const (
	SQLStateSuccess       = "00000"
	SQLStateSyntaxError   = "42000"
	SQLStateDataException = "22000"
	SQLStateNoData        = "02000"
	SQLStateNotSupported  = "0A000"
	SQLStateInvalidCursor = "24000"
	SQLStateCanceled      = "57014"
	SQLStateGeneralError  = "HY000"
)

// GetSQLState returns the SQL state for a given error code
func GetSQLState(code string) string {
	mapping := map[string]string{
		CodeSQLCompilationError:   SQLStateSyntaxError,
		CodeSQLExecutionError:     SQLStateDataException,
		CodeCursorError:           SQLStateInvalidCursor,
		CodeObjectNotFound:        SQLStateNoData,
		CodeUnsupportedCapability: SQLStateNotSupported,
		CodeViewClosed:            SQLStateInvalidCursor,
		CodeViewConsumed:          SQLStateInvalidCursor,
		CodeCanceled:              SQLStateCanceled,
	}

	if state, ok := mapping[code]; ok {
		return state
	}
	return SQLStateGeneralError
}

// HTTPStatus returns the HTTP status for a given error code.
func HTTPStatus(code string) int {
	switch code {
	case CodeSQLCompilationError, CodeInvalidParameter, CodeUnsupportedCapability:
		return http.StatusBadRequest
	case CodeObjectNotFound:
		return http.StatusNotFound
	case CodeSQLExecutionError, CodeCursorError:
		return http.StatusUnprocessableEntity
	case CodeViewClosed, CodeViewConsumed:
		return http.StatusConflict
	case CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// APIError is a coded error returned to HTTP clients.
type APIError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	SQLState string         `json:"sqlState,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MarshalJSON implements custom JSON marshaling.
func (e *APIError) MarshalJSON() ([]byte, error) {
	type Alias APIError
	return json.Marshal(&struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	})
}

// WithData adds data to the error.
func (e *APIError) WithData(key string, value any) *APIError {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// Is checks if this error matches another error by code.
func (e *APIError) Is(target error) bool {
	var apiErr *APIError
	if errors.As(target, &apiErr) {
		return e.Code == apiErr.Code
	}
	return false
}

// Status returns the HTTP status of the error.
func (e *APIError) Status() int {
	return HTTPStatus(e.Code)
}

// ErrorResponse represents the JSON response structure for errors.
type ErrorResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Code     string         `json:"code"`
	SQLState string         `json:"sqlState,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ToResponse converts the APIError to an ErrorResponse.
func (e *APIError) ToResponse() *ErrorResponse {
	data := make(map[string]any, len(e.Data))
	for k, v := range e.Data {
		data[k] = v
	}

	return &ErrorResponse{
		Success:  false,
		Message:  e.Message,
		Code:     e.Code,
		SQLState: e.SQLState,
		Data:     data,
	}
}

// New creates an APIError with the given code and message.
func New(code, message string) *APIError {
	return &APIError{
		Code:     code,
		Message:  message,
		SQLState: GetSQLState(code),
		Data:     make(map[string]any),
	}
}

// NewObjectNotFoundError creates an object not found error.
func NewObjectNotFoundError(objectType, objectName string) *APIError {
	return New(CodeObjectNotFound, fmt.Sprintf("Object not found: %s '%s'", objectType, objectName)).
		WithData("objectType", objectType).
		WithData("objectName", objectName)
}

// NewSQLCompilationError creates a SQL compilation error.
func NewSQLCompilationError(message string) *APIError {
	return New(CodeSQLCompilationError, message)
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *APIError {
	return New(CodeInternalError, message)
}

// NewInvalidParameterError creates an invalid parameter error.
func NewInvalidParameterError(paramName, reason string) *APIError {
	return New(CodeInvalidParameter, fmt.Sprintf("Invalid parameter '%s': %s", paramName, reason)).
		WithData("paramName", paramName)
}

// WrapError wraps a standard Go error into an APIError.
func WrapError(code, message string, err error) *APIError {
	apiErr := New(code, message)
	if err != nil {
		apiErr.Data["originalError"] = err.Error()
	}
	return apiErr
}

// FromError converts an error to an APIError.
// If the error is already an APIError, it returns it as-is.
// If the error is nil, it returns nil.
// Query layer errors map to their own codes; anything else is internal.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var malformed *sqlerr.MalformedQueryError
	var execErr *sqlerr.ExecutionError
	var cursorErr *sqlerr.CursorError

	switch {
	case errors.As(err, &malformed):
		return New(CodeSQLCompilationError, malformed.Error())
	case errors.As(err, &execErr):
		return WrapError(CodeSQLExecutionError, "statement execution failed", execErr.Err).
			WithData("query", execErr.Query)
	case errors.As(err, &cursorErr):
		return WrapError(CodeCursorError, "row fetch failed", cursorErr.Err).
			WithData("rowIndex", cursorErr.RowIndex)
	case errors.Is(err, catalog.ErrTableNotFound):
		return New(CodeObjectNotFound, err.Error())
	case errors.Is(err, sqlerr.ErrUnsupportedCapability):
		return New(CodeUnsupportedCapability, err.Error())
	case errors.Is(err, sqlerr.ErrClosed):
		return New(CodeViewClosed, err.Error())
	case errors.Is(err, sqlerr.ErrConsumed):
		return New(CodeViewConsumed, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return New(CodeCanceled, err.Error())
	default:
		return New(CodeInternalError, err.Error())
	}
}
