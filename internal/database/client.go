// Package database provides Supabase (PostgREST) database integration.
package database

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/altarlane/marketplace/internal/httputil"
	"github.com/altarlane/marketplace/internal/runtime"
)

// Client wraps the Supabase REST API client.
type Client struct {
	url        string
	serviceKey string
	httpClient *http.Client
	retry      RetryConfig
	breaker    *CircuitBreaker
}

// Config holds database configuration.
type Config struct {
	URL        string
	ServiceKey string
	// HTTPClient overrides the default TLS 1.2+ client. Used by tests.
	HTTPClient     *http.Client
	Retry          *RetryConfig
	CircuitBreaker *CircuitBreakerConfig
}

// NewClient creates a new Supabase client.
func NewClient(cfg Config) (*Client, error) {
	url := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	key := strings.TrimSpace(cfg.ServiceKey)
	strict := runtime.StrictMode()

	if url == "" {
		if strict {
			return nil, fmt.Errorf("SUPABASE_URL is required")
		}
		url = "http://localhost:54321"
	}
	if key == "" && strict {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}

	parsed, err := neturl.Parse(url)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("SUPABASE_URL must be an absolute URL")
	}
	if parsed.User != nil {
		return nil, fmt.Errorf("SUPABASE_URL must not include user info")
	}
	if strict && parsed.Scheme != "https" {
		return nil, fmt.Errorf("SUPABASE_URL must use https")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: tlsTransport(),
		}
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	breaker := DefaultCircuitBreakerConfig()
	if cfg.CircuitBreaker != nil {
		breaker = *cfg.CircuitBreaker
	}

	return &Client{
		url:        url,
		serviceKey: key,
		httpClient: httpClient,
		retry:      retry,
		breaker:    NewCircuitBreaker(breaker),
	}, nil
}

func tlsTransport() http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	cloned := base.Clone()
	if cloned.TLSClientConfig != nil {
		cloned.TLSClientConfig = cloned.TLSClientConfig.Clone()
		if cloned.TLSClientConfig.MinVersion < tls.VersionTLS12 {
			cloned.TLSClientConfig.MinVersion = tls.VersionTLS12
		}
	} else {
		cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cloned.MaxIdleConnsPerHost = 20
	return cloned
}

// BaseURL returns the project URL.
func (c *Client) BaseURL() string {
	return c.url
}

// CircuitState reports the state of the client's circuit breaker.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}

const (
	maxSupabaseResponseBytes  = 8 << 20  // 8 MiB
	maxSupabaseErrorBodyBytes = 32 << 10 // 32 KiB
)

// requestOptions tune a single PostgREST call.
type requestOptions struct {
	prefer []string
}

// RequestOption customises a PostgREST request.
type RequestOption func(*requestOptions)

// WithPrefer adds a Prefer header directive, e.g. "resolution=merge-duplicates".
func WithPrefer(directive string) RequestOption {
	return func(o *requestOptions) {
		o.prefer = append(o.prefer, directive)
	}
}

// request makes an HTTP request to the Supabase REST API.
func (c *Client) request(ctx context.Context, method, table string, body interface{}, query string, opts ...RequestOption) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.url, table)
	if query != "" {
		url += "?" + query
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrInvalidInput, err)
		}
		payload = b
	}

	o := requestOptions{prefer: []string{"return=representation"}}
	for _, opt := range opts {
		opt(&o)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	headers.Set("apikey", c.serviceKey)
	headers.Set("Authorization", "Bearer "+c.serviceKey)
	headers.Set("Prefer", strings.Join(o.prefer, ","))

	resp, err := c.do(ctx, method, url, payload, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrDatabaseError, method, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, maxSupabaseErrorBodyBytes)
		if readErr != nil {
			return nil, fmt.Errorf("%w: read error response: %v", ErrDatabaseError, readErr)
		}
		msg := strings.TrimSpace(string(respBody))
		if truncated {
			msg += "...(truncated)"
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxSupabaseResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrDatabaseError, err)
	}
	return respBody, nil
}

// rawRequest calls an arbitrary project path with service credentials.
func (c *Client) rawRequest(ctx context.Context, method, path string) (*http.Response, error) {
	headers := http.Header{}
	headers.Set("apikey", c.serviceKey)
	headers.Set("Authorization", "Bearer "+c.serviceKey)
	return c.do(ctx, method, c.url+"/"+strings.TrimLeft(path, "/"), nil, headers)
}
