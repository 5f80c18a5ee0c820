package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redeployhq/redeploy/pkg/deploy"
)

// Metrics provides Prometheus metrics for redeploy. It implements
// deploy.Recorder so the coordinator can report orchestration events without
// knowing about Prometheus.
type Metrics struct {
	config MetricsConfig

	// Publish metrics
	publishes *prometheus.CounterVec

	// Discovery metrics
	discoveries       *prometheus.CounterVec
	discoveryAttempts *prometheus.HistogramVec

	// Polling metrics
	pollTicks *prometheus.CounterVec

	// Job metrics
	jobOutcomes *prometheus.CounterVec

	// Cleanup metrics
	cleanupSteps *prometheus.CounterVec

	// Adapter metrics (git, pipeline)
	adapterCalls    *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	adapterErrors   *prometheus.CounterVec

	// Error metrics
	errorsByKind *prometheus.CounterVec

	// System metrics
	activeSessions prometheus.Gauge

	registry *prometheus.Registry
}

// compile-time check: Metrics satisfies the orchestration recorder contract
var _ deploy.Recorder = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publishes_total",
				Help:      "Total number of publish attempts",
			},
			[]string{"scenario", "outcome"},
		),

		discoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_discoveries_total",
				Help:      "Total number of job discovery rounds",
			},
			[]string{"outcome"},
		),
		discoveryAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_discovery_attempts",
				Help:      "Number of listing attempts per discovery round",
				Buckets:   []float64{1, 2, 3},
			},
			[]string{"outcome"},
		),

		pollTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_ticks_total",
				Help:      "Total number of job status poll ticks",
			},
			[]string{"status"},
		),

		jobOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_outcomes_total",
				Help:      "Total number of tracked jobs reaching a terminal state",
			},
			[]string{"status"},
		),

		cleanupSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_steps_total",
				Help:      "Total number of branch cleanup steps executed",
			},
			[]string{"step", "outcome"},
		),

		adapterCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adapter_calls_total",
				Help:      "Total number of adapter calls",
			},
			[]string{"adapter", "operation"},
		),
		adapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "adapter_call_duration_seconds",
				Help:      "Duration of adapter calls in seconds",
				Buckets:   buckets,
			},
			[]string{"adapter", "operation"},
		),
		adapterErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "adapter_errors_total",
				Help:      "Total number of adapter errors",
			},
			[]string{"adapter", "operation"},
		),

		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_kind_total",
				Help:      "Total number of errors by classification",
			},
			[]string{"kind"},
		),

		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Current number of sessions with in-flight work",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.publishes,
		m.discoveries,
		m.discoveryAttempts,
		m.pollTicks,
		m.jobOutcomes,
		m.cleanupSteps,
		m.adapterCalls,
		m.adapterDuration,
		m.adapterErrors,
		m.errorsByKind,
		m.activeSessions,
	)

	return m, nil
}

// Orchestration metrics (deploy.Recorder)

// RecordPublish records a publish attempt and its outcome.
func (m *Metrics) RecordPublish(scenario deploy.Scenario, outcome string) {
	if m.publishes == nil {
		return
	}
	m.publishes.WithLabelValues(string(scenario), outcome).Inc()
}

// RecordDiscovery records a completed discovery round.
func (m *Metrics) RecordDiscovery(outcome string, attempts int) {
	if m.discoveries == nil {
		return
	}
	m.discoveries.WithLabelValues(outcome).Inc()
	m.discoveryAttempts.WithLabelValues(outcome).Observe(float64(attempts))
}

// RecordPollTick records one poll refresh and the status it observed.
func (m *Metrics) RecordPollTick(status deploy.JobStatus) {
	if m.pollTicks == nil {
		return
	}
	m.pollTicks.WithLabelValues(string(status)).Inc()
}

// RecordJobOutcome records a job reaching a terminal state.
func (m *Metrics) RecordJobOutcome(status deploy.JobStatus) {
	if m.jobOutcomes == nil {
		return
	}
	m.jobOutcomes.WithLabelValues(string(status)).Inc()
}

// RecordCleanupStep records a cleanup step execution.
func (m *Metrics) RecordCleanupStep(step deploy.CleanupStepName, ok bool) {
	if m.cleanupSteps == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.cleanupSteps.WithLabelValues(string(step), outcome).Inc()
}

// Adapter Metrics

// RecordAdapterCall records an adapter call with its duration.
func (m *Metrics) RecordAdapterCall(adapter, operation string, duration time.Duration) {
	if m.adapterCalls == nil {
		return
	}
	m.adapterCalls.WithLabelValues(adapter, operation).Inc()
	m.adapterDuration.WithLabelValues(adapter, operation).Observe(duration.Seconds())
}

// RecordAdapterError records an adapter error.
func (m *Metrics) RecordAdapterError(adapter, operation string) {
	if m.adapterErrors == nil {
		return
	}
	m.adapterErrors.WithLabelValues(adapter, operation).Inc()
}

// Error Metrics

// RecordError records an error by classification kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// System Metrics

// SetActiveSessions sets the current number of active sessions.
func (m *Metrics) SetActiveSessions(count float64) {
	if m.activeSessions == nil {
		return
	}
	m.activeSessions.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
