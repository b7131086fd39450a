package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/altarlane/marketplace/internal/logging"
)

// MaxRequestBodyBytes bounds JSON request bodies.
const MaxRequestBodyBytes = 1 << 20

// DecodeJSON decodes the request body into v, writing a 400 on failure.
// Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := ReadAllStrict(r.Body, MaxRequestBodyBytes)
	if err != nil {
		BadRequest(w, "request body too large or unreadable")
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		BadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// RequireUserID returns the authenticated user ID, writing a 401 when absent.
func RequireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := logging.GetUserID(r.Context())
	if userID == "" {
		Unauthorized(w, "")
		return "", false
	}
	return userID, true
}

// QueryInt parses an integer query parameter, returning def when absent or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// QueryInt64 parses an int64 query parameter, returning def when absent or malformed.
func QueryInt64(r *http.Request, key string, def int64) int64 {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// ErrBodyTooLarge is returned by ReadAllStrict when the limit is exceeded.
var ErrBodyTooLarge = errors.New("body exceeds limit")

// ReadAllWithLimit reads up to limit bytes and reports whether input was truncated.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	if r == nil {
		return nil, false, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// ReadAllStrict reads the whole reader, failing when it exceeds limit bytes.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, limit)
	}
	return data, nil
}
