package database

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter adds randomness to backoff (0.0 to 1.0)
	Jitter               float64
	RetryableStatusCodes []int
}

// DefaultRetryConfig returns the retry policy used for PostgREST calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	// Timeout is how long the circuit stays open before going half-open.
	Timeout       time.Duration
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	mu sync.Mutex

	config CircuitBreakerConfig
	state  CircuitState

	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{config: config, state: CircuitClosed, now: time.Now}
}

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Allow checks if a request should be allowed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.openedAt) > cb.config.Timeout {
			cb.transitionTo(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(CircuitClosed)
		}
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		cb.transitionTo(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(newState CircuitState) {
	oldState := cb.state
	cb.state = newState

	switch newState {
	case CircuitClosed:
		cb.failures = 0
		cb.successes = 0
	case CircuitOpen:
		cb.openedAt = cb.now()
		cb.successes = 0
	case CircuitHalfOpen:
		cb.successes = 0
	}

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(oldState, newState)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// do sends a request through the breaker, retrying transient failures.
// The body is rebuilt for every attempt.
func (c *Client) do(ctx context.Context, method, url string, payload []byte, headers http.Header) (*http.Response, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				c.breaker.RecordFailure()
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		if payload == nil {
			req.Body = http.NoBody
		}
		req.Header = headers.Clone()

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if isRetryableError(err) {
				continue
			}
			c.breaker.RecordFailure()
			return nil, err
		}

		if c.isRetryableStatus(resp.StatusCode) && attempt < c.retry.MaxRetries {
			resp.Body.Close()
			lastErr = &APIError{StatusCode: resp.StatusCode, Body: http.StatusText(resp.StatusCode)}
			continue
		}

		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		return resp, nil
	}

	c.breaker.RecordFailure()
	return nil, lastErr
}

func (c *Client) backoff(attempt int) time.Duration {
	backoff := float64(c.retry.InitialBackoff) * math.Pow(c.retry.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(c.retry.MaxBackoff) {
		backoff = float64(c.retry.MaxBackoff)
	}
	if c.retry.Jitter > 0 {
		backoff += backoff * c.retry.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(backoff)
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func (c *Client) isRetryableStatus(code int) bool {
	for _, retryable := range c.retry.RetryableStatusCodes {
		if code == retryable {
			return true
		}
	}
	return false
}
