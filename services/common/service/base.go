// Package service provides the shared service foundation: lifecycle hooks,
// background workers, dependency health and the standard /health and /info routes.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
)

const healthCheckTimeout = 5 * time.Second

// Probe checks one external dependency.
type Probe func(ctx context.Context) error

// BaseConfig contains shared configuration for all services.
type BaseConfig struct {
	ID      string
	Name    string
	Version string
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	// Router is the router routes are mounted on. A new one is created when nil.
	Router *mux.Router
	// Probes are dependency checks reported by /health, keyed by dependency name.
	Probes map[string]Probe
	// Critical names probes whose failure makes the service unhealthy rather than degraded.
	Critical []string
}

// BaseService carries lifecycle and health state shared by every service.
type BaseService struct {
	id      string
	name    string
	version string
	router  *mux.Router
	logger  *logging.Logger
	metrics *metrics.Metrics

	stopCh   chan struct{}
	stopOnce sync.Once

	hydrate func(context.Context) error
	statsFn func() map[string]any
	workers []func(context.Context)

	probes   map[string]Probe
	critical map[string]struct{}

	healthMu        sync.RWMutex
	depHealthy      map[string]bool
	lastHealthCheck time.Time
	startTime       time.Time
}

// NewBase constructs a BaseService from shared config.
func NewBase(cfg *BaseConfig) *BaseService {
	router := cfg.Router
	if router == nil {
		router = mux.NewRouter()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default().Named(cfg.ID)
	}
	critical := make(map[string]struct{}, len(cfg.Critical))
	for _, name := range cfg.Critical {
		critical[name] = struct{}{}
	}
	probes := make(map[string]Probe, len(cfg.Probes))
	depHealthy := make(map[string]bool, len(cfg.Probes))
	for name, p := range cfg.Probes {
		if p == nil {
			continue
		}
		probes[name] = p
		depHealthy[name] = false
	}
	return &BaseService{
		id:         cfg.ID,
		name:       cfg.Name,
		version:    cfg.Version,
		router:     router,
		logger:     logger,
		metrics:    cfg.Metrics,
		stopCh:     make(chan struct{}),
		probes:     probes,
		critical:   critical,
		depHealthy: depHealthy,
	}
}

func (b *BaseService) ID() string                { return b.id }
func (b *BaseService) Name() string              { return b.name }
func (b *BaseService) Version() string           { return b.version }
func (b *BaseService) Router() *mux.Router       { return b.router }
func (b *BaseService) Logger() *logging.Logger   { return b.logger }
func (b *BaseService) Metrics() *metrics.Metrics { return b.metrics }

// WithHydrate sets a hook executed during Start, before workers launch.
func (b *BaseService) WithHydrate(fn func(context.Context) error) *BaseService {
	b.hydrate = fn
	return b
}

// WithStats sets a statistics provider for the /info endpoint.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// AddWorker registers a background worker started after hydrate completes.
// Workers must return when ctx is done or StopChan is closed.
func (b *BaseService) AddWorker(fn func(context.Context)) *BaseService {
	b.workers = append(b.workers, fn)
	return b
}

// AddTickerWorker registers a worker that runs fn every interval until Stop.
func (b *BaseService) AddTickerWorker(name string, interval time.Duration, fn func(context.Context) error) *BaseService {
	worker := func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					b.logger.WithError(err).WithField("worker", name).Warn("worker iteration failed")
				}
			}
		}
	}
	b.workers = append(b.workers, worker)
	return b
}

// StopChan exposes the stop channel for worker goroutines.
func (b *BaseService) StopChan() <-chan struct{} {
	return b.stopCh
}

// Start runs hydrate once, then spins workers.
func (b *BaseService) Start(ctx context.Context) error {
	b.healthMu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.healthMu.Unlock()

	if b.hydrate != nil {
		if err := b.hydrate(ctx); err != nil {
			return fmt.Errorf("%s hydrate: %w", b.id, err)
		}
	}

	for _, w := range b.workers {
		go w(ctx)
	}
	b.logger.WithField("workers", len(b.workers)).Info("service started")
	return nil
}

// Stop signals workers. It is safe to call more than once.
func (b *BaseService) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	return nil
}

// WorkerCount returns the number of registered workers.
func (b *BaseService) WorkerCount() int {
	return len(b.workers)
}

// CheckHealth probes every dependency and caches the result.
func (b *BaseService) CheckHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make(map[string]bool, len(b.probes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, probe := range b.probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			err := probe(ctx)
			if err != nil {
				b.logger.WithError(err).WithField("dependency", name).Warn("health probe failed")
			}
			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	b.healthMu.Lock()
	b.depHealthy = results
	b.lastHealthCheck = time.Now()
	b.healthMu.Unlock()
}

// HealthStatus probes dependencies and returns healthy, degraded or unhealthy.
func (b *BaseService) HealthStatus(ctx context.Context) string {
	b.CheckHealth(ctx)
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	return b.healthStatusLocked()
}

// HealthDetails describes the most recent health state.
func (b *BaseService) HealthDetails() map[string]any {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()

	deps := make(map[string]bool, len(b.depHealthy))
	for name, ok := range b.depHealthy {
		deps[name] = ok
	}
	details := map[string]any{
		"dependencies": deps,
		"last_check":   "",
	}
	if !b.lastHealthCheck.IsZero() {
		details["last_check"] = b.lastHealthCheck.Format(time.RFC3339)
	}

	uptime := time.Duration(0)
	if !b.startTime.IsZero() {
		uptime = time.Since(b.startTime)
	}
	details["uptime"] = uptime.Truncate(time.Second).String()
	return details
}

func (b *BaseService) healthStatusLocked() string {
	status := "healthy"
	for _, name := range sortedKeys(b.depHealthy) {
		if b.depHealthy[name] {
			continue
		}
		if _, ok := b.critical[name]; ok {
			return "unhealthy"
		}
		status = "degraded"
	}
	return status
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
