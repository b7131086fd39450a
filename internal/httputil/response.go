// Package httputil provides HTTP request and response helpers shared by handlers.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
)

// ErrorBody is the JSON error envelope returned by every handler.
type ErrorBody struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteErrorResponse writes the error envelope, including the request trace ID.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	body := ErrorBody{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	}
	if r != nil {
		body.TraceID = logging.GetTraceID(r.Context())
	}
	WriteJSON(w, status, body)
}

// WriteError writes a plain error envelope without request context.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteErrorResponse(w, nil, status, codeForStatus(status), message, nil)
}

// WriteServiceError renders err, mapping non-service errors to 500 without leaking internals.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("internal error", err)
	}
	if se.HTTPStatus >= http.StatusInternalServerError {
		logging.Default().WithContext(r.Context()).WithError(err).Error("request failed")
	}
	WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	WriteError(w, http.StatusUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "access denied"
	}
	WriteError(w, http.StatusForbidden, message)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(errors.CodeInvalidInput)
	case http.StatusUnauthorized:
		return string(errors.CodeUnauthorized)
	case http.StatusForbidden:
		return string(errors.CodeForbidden)
	case http.StatusNotFound:
		return string(errors.CodeNotFound)
	case http.StatusConflict:
		return string(errors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(errors.CodeRateLimitExceeded)
	case http.StatusServiceUnavailable:
		return string(errors.CodeUnavailable)
	default:
		return string(errors.CodeInternal)
	}
}
