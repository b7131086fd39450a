package database

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// RepositoryInterface is the persistence surface shared by service repositories.
type RepositoryInterface interface {
	Request(ctx context.Context, method, table string, body interface{}, query string, opts ...RequestOption) ([]byte, error)
	HealthCheck(ctx context.Context) error
	PublicURL(bucket, path string) string
}

// Repository is the base PostgREST repository embedded by service repositories.
type Repository struct {
	client *Client
}

// NewRepository creates a new repository.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

var _ RepositoryInterface = (*Repository)(nil)

// Request performs a raw PostgREST call against table.
func (r *Repository) Request(ctx context.Context, method, table string, body interface{}, query string, opts ...RequestOption) ([]byte, error) {
	if r == nil || r.client == nil {
		return nil, fmt.Errorf("%w: repository not initialized", ErrInvalidInput)
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("%w: table cannot be empty", ErrInvalidInput)
	}
	return r.client.request(ctx, method, table, body, query, opts...)
}

// HealthCheck verifies the REST endpoint answers.
func (r *Repository) HealthCheck(ctx context.Context) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("%w: repository not initialized", ErrInvalidInput)
	}
	resp, err := r.client.rawRequest(ctx, http.MethodGet, "rest/v1/")
	if err != nil {
		return fmt.Errorf("%w: health check: %v", ErrDatabaseError, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: health status %d", ErrDatabaseError, resp.StatusCode)
	}
	return nil
}

// PublicURL renders an object path in a public Storage bucket.
// Absolute URLs pass through unchanged and empty paths stay empty.
func (r *Repository) PublicURL(bucket, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", r.client.BaseURL(), url.PathEscape(bucket), strings.Join(segments, "/"))
}
