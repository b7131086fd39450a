package service

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// RequestStats keeps in-process request counters for the /info endpoint.
// Prometheus collectors live in internal/metrics; these are the cheap
// human-readable summary.
type RequestStats struct {
	mu sync.RWMutex

	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64

	latency map[string]*atomic.Int64
	errors  map[int]*atomic.Int64

	startTime time.Time
}

var latencyBuckets = []struct {
	name  string
	limit time.Duration
}{
	{"lt_10ms", 10 * time.Millisecond},
	{"lt_50ms", 50 * time.Millisecond},
	{"lt_100ms", 100 * time.Millisecond},
	{"lt_500ms", 500 * time.Millisecond},
	{"lt_1s", time.Second},
}

// NewRequestStats creates an empty collector.
func NewRequestStats() *RequestStats {
	s := &RequestStats{
		latency:   make(map[string]*atomic.Int64, len(latencyBuckets)+1),
		errors:    make(map[int]*atomic.Int64),
		startTime: time.Now(),
	}
	for _, b := range latencyBuckets {
		s.latency[b.name] = &atomic.Int64{}
	}
	s.latency["gt_1s"] = &atomic.Int64{}
	return s
}

// Record records one request outcome.
func (s *RequestStats) Record(status int, d time.Duration) {
	s.total.Add(1)
	if status < 400 {
		s.success.Add(1)
	} else {
		s.failed.Add(1)
		s.errorCounter(status).Add(1)
	}

	bucket := "gt_1s"
	for _, b := range latencyBuckets {
		if d < b.limit {
			bucket = b.name
			break
		}
	}
	s.latency[bucket].Add(1)
}

func (s *RequestStats) errorCounter(status int) *atomic.Int64 {
	s.mu.RLock()
	c, ok := s.errors[status]
	s.mu.RUnlock()
	if ok {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.errors[status]; !ok {
		c = &atomic.Int64{}
		s.errors[status] = c
	}
	return c
}

// Snapshot returns the counters in a form suitable for WithStats.
func (s *RequestStats) Snapshot() map[string]any {
	total := s.total.Load()
	success := s.success.Load()
	rate := float64(0)
	if total > 0 {
		rate = float64(success) / float64(total) * 100
	}

	latency := make(map[string]int64, len(s.latency))
	for k, v := range s.latency {
		latency[k] = v.Load()
	}

	s.mu.RLock()
	errs := make(map[string]int64, len(s.errors))
	for status, v := range s.errors {
		errs[http.StatusText(status)] = v.Load()
	}
	s.mu.RUnlock()

	return map[string]any{
		"uptime":          time.Since(s.startTime).Truncate(time.Second).String(),
		"requests_total":  total,
		"requests_failed": s.failed.Load(),
		"success_rate":    rate,
		"latency_buckets": latency,
		"errors":          errs,
	}
}

// Middleware records every request passing through next.
func (s *RequestStats) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusResponseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.Record(wrapped.status, time.Since(start))
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
