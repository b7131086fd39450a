// Package metrics holds the Prometheus collectors for the marketplace gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketplace"

// Metrics owns a registry plus HTTP and domain collectors.
// Record methods are no-ops on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	cartActions        *prometheus.CounterVec
	wizardTransitions  *prometheus.CounterVec
	availabilityChecks *prometheus.CounterVec
	checkoutSessions   *prometheus.CounterVec
	paymentEvents      *prometheus.CounterVec
	messagesSent       *prometheus.CounterVec
	onboardingSteps    *prometheus.CounterVec
	jobRuns            *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"service", "method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"service", "method", "path"}),
		cartActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "actions_total",
			Help:      "Cart reducer actions by type and outcome.",
		}, []string{"action", "result"}),
		wizardTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "transitions_total",
			Help:      "Vendor-selection wizard transitions by target step.",
		}, []string{"step"}),
		availabilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "availability_checks_total",
			Help:      "Vendor availability checks by outcome.",
		}, []string{"result"}),
		checkoutSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "sessions_total",
			Help:      "Checkout session creation attempts by outcome.",
		}, []string{"result"}),
		paymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "payment_events_total",
			Help:      "Payment webhook events by type and handling outcome.",
		}, []string{"type", "result"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messaging",
			Name:      "messages_sent_total",
			Help:      "Messages sent by sender role.",
		}, []string{"role"}),
		onboardingSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "onboarding",
			Name:      "steps_total",
			Help:      "Onboarding questionnaire actions by step.",
		}, []string{"action", "step"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and success.",
		}, []string{"job", "success"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"job"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.cartActions,
		m.wizardTransitions,
		m.availabilityChecks,
		m.checkoutSessions,
		m.paymentEvents,
		m.messagesSent,
		m.onboardingSteps,
		m.jobRuns,
		m.jobDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncrementInFlight() {
	if m != nil {
		m.httpInFlight.Inc()
	}
}

func (m *Metrics) DecrementInFlight() {
	if m != nil {
		m.httpInFlight.Dec()
	}
}

// RecordHTTPRequest records one completed request. path should be a route template.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordCartAction(action string, err error) {
	if m == nil {
		return
	}
	m.cartActions.WithLabelValues(action, result(err)).Inc()
}

func (m *Metrics) RecordWizardTransition(step string) {
	if m == nil {
		return
	}
	m.wizardTransitions.WithLabelValues(step).Inc()
}

// RecordAvailabilityCheck records an availability lookup; reason is empty when available.
func (m *Metrics) RecordAvailabilityCheck(available bool, reason string) {
	if m == nil {
		return
	}
	label := "available"
	if !available {
		label = reason
	}
	m.availabilityChecks.WithLabelValues(label).Inc()
}

func (m *Metrics) RecordCheckoutSession(err error) {
	if m == nil {
		return
	}
	m.checkoutSessions.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordPaymentEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordMessageSent(role string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(role).Inc()
}

// RecordOnboardingStep records an answer, back or complete action.
func (m *Metrics) RecordOnboardingStep(action, step string) {
	if m == nil {
		return
	}
	m.onboardingSteps.WithLabelValues(action, step).Inc()
}

func (m *Metrics) RecordJobRun(job string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	success := "true"
	if err != nil {
		success = "false"
	}
	m.jobRuns.WithLabelValues(job, success).Inc()
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
