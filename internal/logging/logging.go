// Package logging provides structured logging with request context propagation.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

// Context keys used to carry request identity through handlers.
const (
	TraceIDKey contextKey = "trace_id"
	UserIDKey  contextKey = "user_id"
	RoleKey    contextKey = "role"
	EmailKey   contextKey = "email"
)

// Logger wraps logrus with service metadata and context helpers.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a logger for a service. Level falls back to info and format to json.
func New(service, level, format string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return &Logger{Logger: base, service: service}
}

// NewDiscard returns a logger that drops everything. Intended for tests.
func NewDiscard(service string) *Logger {
	l := New(service, "panic", "json")
	l.SetOutput(io.Discard)
	return l
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns a process-wide logger configured from LOG_LEVEL and LOG_FORMAT.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New("marketplace", os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	})
	return defaultLogger
}

// Service returns the service name attached to every entry.
func (l *Logger) Service() string {
	return l.service
}

// Named derives a logger for a sub-component sharing output and level.
func (l *Logger) Named(service string) *Logger {
	return &Logger{Logger: l.Logger, service: service}
}

// WithContext returns an entry carrying service, trace and user identifiers.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{"service": l.service}
	if ctx != nil {
		if traceID := GetTraceID(ctx); traceID != "" {
			fields["trace_id"] = traceID
		}
		if userID := GetUserID(ctx); userID != "" {
			fields["user_id"] = userID
		}
	}
	return l.Logger.WithFields(fields)
}

// WithFields returns an entry with the service name and the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	return entry
}

// WithField returns an entry with the service name and one field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithField(key, value)
}

// WithError returns an entry with the service name and an error.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithField("service", l.service).WithError(err)
}

// LogRequest writes one access-log line per HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})
	switch {
	case status >= 500:
		entry.Error("http request")
	case status >= 400:
		entry.Warn("http request")
	default:
		entry.Info("http request")
	}
}

// LogSecurityEvent records events relevant to abuse or authentication.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, fields map[string]interface{}) {
	entry := l.WithContext(ctx).WithField("security_event", event)
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	entry.Warn("security event")
}

// NewTraceID generates a new trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID from the context, if any.
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

// WithUserID stores the authenticated user ID in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the authenticated user ID from the context, if any.
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

// WithRole stores the caller role in the context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// GetRole returns the caller role from the context, if any.
func GetRole(ctx context.Context) string {
	v, _ := ctx.Value(RoleKey).(string)
	return v
}

// WithEmail stores the caller email in the context.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, EmailKey, email)
}

// GetEmail returns the caller email from the context, if any.
func GetEmail(ctx context.Context) string {
	v, _ := ctx.Value(EmailKey).(string)
	return v
}
