package database

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a lookup matches no rows.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when PostgREST reports a constraint violation.
	ErrConflict = errors.New("record conflict")
	// ErrDatabaseError wraps transport and server failures.
	ErrDatabaseError = errors.New("database error")
	// ErrInvalidInput is returned before any request is made for bad arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// APIError is a non-2xx PostgREST response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase API error %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies the error for errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 404, 406:
		return ErrNotFound
	case 409:
		return ErrConflict
	default:
		return ErrDatabaseError
	}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// NotFoundError wraps ErrNotFound with the table and key that missed.
func NotFoundError(table, field, value string) error {
	return fmt.Errorf("%w: %s %s=%s", ErrNotFound, table, field, value)
}

// ValidateStatus checks status against an allowed set.
func ValidateStatus(status string, allowed []string) error {
	s := strings.TrimSpace(status)
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return fmt.Errorf("%w: status %q not in %v", ErrInvalidInput, status, allowed)
}
