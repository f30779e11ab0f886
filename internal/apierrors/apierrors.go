// Package apierrors defines the structured errors of the REST API and their
// wire form.
package apierrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/maruel/pagetree/internal/gateway"
)

// ErrorCode identifies the kind of an API error.
type ErrorCode string

const (
	// ErrValidationFailed is returned when a request is malformed or rejected
	// by the store.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrNotFound is returned when a workspace, page or block does not exist.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrConflict is returned when a pre-assigned ID is already used.
	ErrConflict ErrorCode = "CONFLICT"
	// ErrUnauthorized is returned when the bearer token is missing or invalid.
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrRateLimited is returned when a client exceeds its request budget.
	ErrRateLimited ErrorCode = "RATE_LIMITED"
	// ErrTimeout is returned when the request context expired.
	ErrTimeout ErrorCode = "TIMEOUT"
	// ErrInternal is returned for anything unexpected.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorWithStatus is an error carrying its HTTP representation.
type ErrorWithStatus interface {
	error
	Message() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is an error with an HTTP status, a code and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrapped    error
}

var _ ErrorWithStatus = (*APIError)(nil)

// New returns an APIError.
func New(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
}

// WithDetail adds a detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = map[string]any{}
	}
	e.details[key] = value
	return e
}

// Wrap sets the underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrapped = err
	return e
}

// Error implements error.
func (e *APIError) Error() string {
	switch {
	case e.wrapped == nil:
		return e.message
	case e.message == "":
		return e.wrapped.Error()
	default:
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
}

// Message returns the text sent to clients. Internal errors do not leak
// their cause.
func (e *APIError) Message() string {
	if e.message == "" && e.wrapped != nil {
		return e.wrapped.Error()
	}
	return e.message
}

// StatusCode implements ErrorWithStatus.
func (e *APIError) StatusCode() int { return e.statusCode }

// Code implements ErrorWithStatus.
func (e *APIError) Code() ErrorCode { return e.code }

// Details implements ErrorWithStatus.
func (e *APIError) Details() map[string]any { return e.details }

// Unwrap returns the wrapped error.
func (e *APIError) Unwrap() error { return e.wrapped }

// BadRequest returns a 400 error.
func BadRequest(message string) *APIError {
	return New(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField returns a 400 error naming a required field.
func MissingField(name string) *APIError {
	return BadRequest("missing required field: " + name).WithDetail("field", name)
}

// Unauthorized returns a 401 error.
func Unauthorized(message string) *APIError {
	return New(http.StatusUnauthorized, ErrUnauthorized, message)
}

// TooManyRequests returns a 429 error.
func TooManyRequests() *APIError {
	return New(http.StatusTooManyRequests, ErrRateLimited, "rate limit exceeded")
}

// Internal returns a 500 error wrapping err.
func Internal(message string, err error) *APIError {
	return New(http.StatusInternalServerError, ErrInternal, message).Wrap(err)
}

// FromGateway maps a store error to its API form. An error that already has
// a status is returned unchanged.
func FromGateway(err error) ErrorWithStatus {
	var ews ErrorWithStatus
	if errors.As(err, &ews) {
		return ews
	}
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		return New(http.StatusNotFound, ErrNotFound, "").Wrap(err)
	case errors.Is(err, gateway.ErrConflict):
		return New(http.StatusConflict, ErrConflict, "").Wrap(err)
	case errors.Is(err, gateway.ErrInvalid):
		return New(http.StatusBadRequest, ErrValidationFailed, "").Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return New(http.StatusGatewayTimeout, ErrTimeout, "").Wrap(err)
	default:
		return Internal("internal error", err)
	}
}

// Body is the JSON body of an error response.
type Body struct {
	Error   BodyError      `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// BodyError is the error member of Body.
type BodyError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Sentinel returns the gateway error matching a code, or nil.
func (c ErrorCode) Sentinel() error {
	switch c {
	case ErrNotFound:
		return gateway.ErrNotFound
	case ErrConflict:
		return gateway.ErrConflict
	case ErrValidationFailed:
		return gateway.ErrInvalid
	}
	return nil
}
