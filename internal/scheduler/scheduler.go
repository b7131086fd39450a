// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
)

// Job is a named unit of scheduled work.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a cron runner with logging, metrics and overlap protection.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	jobs map[string]cron.EntryID
	ctx  context.Context
	stop context.CancelFunc
}

// New creates a scheduler. metrics may be nil.
func New(logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger:  logger,
		metrics: m,
		jobs:    make(map[string]cron.EntryID),
		ctx:     ctx,
		stop:    cancel,
	}
}

// Register adds a job. Spec accepts standard 5-field expressions and descriptors like "@every 5m".
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job name and run func are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	id, err := s.cron.AddFunc(job.Spec, func() { _ = s.RunNow(s.ctx, job) })
	if err != nil {
		return fmt.Errorf("schedule %q (%s): %w", job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = id
	s.logger.WithFields(map[string]interface{}{"job": job.Name, "spec": job.Spec}).Info("job scheduled")
	return nil
}

// RunNow executes job synchronously with its timeout.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	ctx = logging.WithTraceID(ctx, logging.NewTraceID())

	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordJobRun(job.Name, duration, err)
	}
	entry := s.logger.WithContext(ctx).WithField("job", job.Name).WithField("duration_ms", duration.Milliseconds())
	if err != nil {
		entry.WithError(err).Error("job failed")
	} else {
		entry.Debug("job completed")
	}
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling, cancels running jobs and waits for them up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next reports the next scheduled run of a job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}
