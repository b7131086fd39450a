// Package testutil provides test doubles for the hosted database and Redis.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/altarlane/marketplace/internal/database"
)

// Recorded is one request received by the fake PostgREST server.
type Recorded struct {
	Method string
	Table  string
	Query  url.Values
	Prefer string
	Body   []byte
}

// Decode unmarshals the recorded body into v.
func (r Recorded) Decode(t *testing.T, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode %s %s body %q: %v", r.Method, r.Table, r.Body, err)
	}
}

// Responder builds a reply for one request: status and a JSON-encodable body.
type Responder func(req Recorded) (int, interface{})

// PostgREST is an in-process stand-in for Supabase's REST endpoint.
//
// Unscripted requests get PostgREST-like defaults: GET returns [],
// POST and PATCH echo the request body as a row list, DELETE returns 204.
type PostgREST struct {
	t      *testing.T
	Server *httptest.Server
	Repo   *database.Repository

	mu       sync.Mutex
	handlers map[string]Responder
	requests []Recorded
}

// NewPostgREST starts a fake server and a repository pointed at it.
func NewPostgREST(t *testing.T) *PostgREST {
	t.Helper()
	t.Setenv("APP_ENV", "testing")

	p := &PostgREST{t: t, handlers: make(map[string]Responder)}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)

	client, err := database.NewClient(database.Config{
		URL:            p.Server.URL,
		ServiceKey:     "test-service-key",
		HTTPClient:     p.Server.Client(),
		Retry:          &database.RetryConfig{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1},
		CircuitBreaker: &database.CircuitBreakerConfig{FailureThreshold: 1000, SuccessThreshold: 1, Timeout: time.Second},
	})
	if err != nil {
		t.Fatalf("database.NewClient: %v", err)
	}
	p.Repo = database.NewRepository(client)
	return p
}

// Handle scripts the reply for method on table.
func (p *PostgREST) Handle(method, table string, fn Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method+" "+table] = fn
}

// Reply scripts a fixed reply for method on table.
func (p *PostgREST) Reply(method, table string, status int, body interface{}) {
	p.Handle(method, table, func(Recorded) (int, interface{}) { return status, body })
}

// Requests returns the recorded requests for method on table.
func (p *PostgREST) Requests(method, table string) []Recorded {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Recorded
	for _, r := range p.requests {
		if r.Method == method && r.Table == table {
			out = append(out, r)
		}
	}
	return out
}

// Last returns the most recent request for method on table, failing the test if none.
func (p *PostgREST) Last(method, table string) Recorded {
	p.t.Helper()
	reqs := p.Requests(method, table)
	if len(reqs) == 0 {
		p.t.Fatalf("no %s request for table %s", method, table)
	}
	return reqs[len(reqs)-1]
}

func (p *PostgREST) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := Recorded{
		Method: r.Method,
		Table:  strings.TrimPrefix(r.URL.Path, "/rest/v1/"),
		Query:  r.URL.Query(),
		Prefer: r.Header.Get("Prefer"),
		Body:   body,
	}

	p.mu.Lock()
	p.requests = append(p.requests, rec)
	fn := p.handlers[rec.Method+" "+rec.Table]
	p.mu.Unlock()

	if fn != nil {
		status, payload := fn(rec)
		writeJSON(w, status, payload)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, []struct{}{})
	case http.MethodPost, http.MethodPatch:
		trimmed := bytes.TrimSpace(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			_, _ = w.Write([]byte("[" + string(trimmed) + "]"))
			return
		}
		_, _ = w.Write(trimmed)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if raw, ok := payload.(string); ok {
		_, _ = w.Write([]byte(raw))
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
