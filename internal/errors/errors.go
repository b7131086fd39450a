// Package errors defines the service error model shared by handlers and services.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

const (
	CodeInvalidInput      ErrorCode = "INVALID_INPUT"
	CodeValidation        ErrorCode = "VALIDATION_FAILED"
	CodeInvalidFormat     ErrorCode = "INVALID_FORMAT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodePaymentRequired   ErrorCode = "PAYMENT_REQUIRED"
	CodeUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// ServiceError carries an HTTP status and details alongside the message.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New creates a ServiceError.
func New(code ErrorCode, message string, status int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status}
}

// Wrap creates a ServiceError around an underlying cause.
func Wrap(code ErrorCode, message string, status int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func InvalidInput(message string) *ServiceError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func InvalidFormat(field, expected string) *ServiceError {
	return New(CodeInvalidFormat, fmt.Sprintf("%s has invalid format", field), http.StatusBadRequest).
		WithDetails("field", field).
		WithDetails("expected", expected)
}

// Validation reports a rejected field value.
func Validation(field, message string) *ServiceError {
	return New(CodeValidation, message, http.StatusUnprocessableEntity).WithDetails("field", field)
}

func NotFound(resource, id string) *ServiceError {
	e := New(CodeNotFound, resource+" not found", http.StatusNotFound).WithDetails("resource", resource)
	if id != "" {
		e = e.WithDetails("id", id)
	}
	return e
}

func Conflict(message string) *ServiceError {
	return New(CodeConflict, message, http.StatusConflict)
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "access denied"
	}
	return New(CodeForbidden, message, http.StatusForbidden)
}

func InvalidToken(err error) *ServiceError {
	return Wrap(CodeInvalidToken, "invalid or expired token", http.StatusUnauthorized, err)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return New(CodeRateLimitExceeded, "rate limit exceeded", http.StatusTooManyRequests).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func PaymentRequired(message string, err error) *ServiceError {
	return Wrap(CodePaymentRequired, message, http.StatusPaymentRequired, err)
}

func Unavailable(message string, err error) *ServiceError {
	return Wrap(CodeUnavailable, message, http.StatusServiceUnavailable, err)
}

func Internal(message string, err error) *ServiceError {
	return Wrap(CodeInternal, message, http.StatusInternalServerError, err)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HTTPStatus maps an error to a response status, defaulting to 500.
func HTTPStatus(err error) int {
	if se := GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
