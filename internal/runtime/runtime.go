// Package runtime exposes deployment environment helpers.
package runtime

import (
	"os"
	"strings"
)

// Environment names recognised by APP_ENV.
const (
	Development = "development"
	Testing     = "testing"
	Staging     = "staging"
	Production  = "production"
)

// Env returns the normalised APP_ENV value, defaulting to development.
func Env() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	switch env {
	case "", "dev", "local":
		return Development
	case "test":
		return Testing
	case "prod":
		return Production
	default:
		return env
	}
}

// IsDevelopmentOrTesting reports whether relaxed defaults are allowed.
func IsDevelopmentOrTesting() bool {
	env := Env()
	return env == Development || env == Testing
}

// IsProduction reports whether the process runs in production.
func IsProduction() bool {
	return Env() == Production
}

// StrictMode reports whether configuration must be complete and secure.
// It is enabled outside development/testing, or explicitly with STRICT_MODE=true.
func StrictMode() bool {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_MODE"))); v == "true" || v == "1" {
		return true
	}
	return !IsDevelopmentOrTesting()
}
