package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for Vaultbuild.
type Metrics struct {
	config MetricsConfig

	// Build metrics
	buildsStarted   *prometheus.CounterVec
	buildsCompleted *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec

	// Prerequisite probe metrics
	probeChecks   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec

	// Compiler tool metrics
	toolInvocations *prometheus.CounterVec
	toolErrors      *prometheus.CounterVec

	// Wizard session metrics
	sessionsResumed *prometheus.CounterVec
	sessionsExpired prometheus.Counter

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// System metrics
	activeBuilds prometheus.Gauge
	queuedBuilds prometheus.Gauge
	workerSlots  prometheus.Gauge

	registry *prometheus.Registry
}

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

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		buildsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_started_total",
				Help:      "Total number of builds started",
			},
			[]string{"track"},
		),
		buildsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "builds_completed_total",
				Help:      "Total number of builds finished, by terminal status",
			},
			[]string{"status"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "build_duration_seconds",
				Help:      "Duration of build execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		probeChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prerequisite_checks_total",
				Help:      "Total number of prerequisite tool probes",
			},
			[]string{"tool", "outcome"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prerequisite_check_duration_seconds",
				Help:      "Duration of prerequisite tool probes in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		toolInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_invocations_total",
				Help:      "Total number of compiler tool invocations",
			},
			[]string{"tool", "operation"},
		),
		toolErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_errors_total",
				Help:      "Total number of compiler tool failures",
			},
			[]string{"tool", "operation"},
		),

		sessionsResumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wizard_sessions_resumed_total",
				Help:      "Total number of wizard sessions resumed, by resumption source",
			},
			[]string{"source"},
		),
		sessionsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wizard_sessions_expired_total",
				Help:      "Total number of persisted wizard sessions discarded as stale",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),

		activeBuilds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_builds",
				Help:      "Current number of running builds",
			},
		),
		queuedBuilds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queued_builds",
				Help:      "Current number of builds waiting for a worker slot",
			},
		),
		workerSlots: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_slots",
				Help:      "Configured size of the compiler worker pool",
			},
		),
	}

	registry.MustRegister(
		m.buildsStarted,
		m.buildsCompleted,
		m.buildDuration,
		m.probeChecks,
		m.probeDuration,
		m.toolInvocations,
		m.toolErrors,
		m.sessionsResumed,
		m.sessionsExpired,
		m.errorsByClass,
		m.activeBuilds,
		m.queuedBuilds,
		m.workerSlots,
	)

	return m, nil
}

// Build Metrics

// RecordBuildStarted increments the counter for started builds.
func (m *Metrics) RecordBuildStarted(track string) {
	if m.buildsStarted == nil {
		return
	}
	m.buildsStarted.WithLabelValues(track).Inc()
	m.activeBuilds.Inc()
}

// RecordBuildCompleted records a finished build with its terminal status and duration.
func (m *Metrics) RecordBuildCompleted(status string, duration time.Duration) {
	if m.buildsCompleted == nil {
		return
	}
	m.buildsCompleted.WithLabelValues(status).Inc()
	m.buildDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeBuilds.Dec()
}

// Prerequisite Metrics

// RecordProbe records one prerequisite tool probe with its outcome.
func (m *Metrics) RecordProbe(tool, outcome string, duration time.Duration) {
	if m.probeChecks == nil {
		return
	}
	m.probeChecks.WithLabelValues(tool, outcome).Inc()
	m.probeDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// Tool Metrics

// RecordToolInvocation records a compiler tool invocation.
func (m *Metrics) RecordToolInvocation(tool, operation string) {
	if m.toolInvocations == nil {
		return
	}
	m.toolInvocations.WithLabelValues(tool, operation).Inc()
}

// RecordToolError records a compiler tool failure.
func (m *Metrics) RecordToolError(tool, operation string) {
	if m.toolErrors == nil {
		return
	}
	m.toolErrors.WithLabelValues(tool, operation).Inc()
}

// Session Metrics

// RecordSessionResumed records a wizard resumption and the source it restored from.
func (m *Metrics) RecordSessionResumed(source string) {
	if m.sessionsResumed == nil {
		return
	}
	m.sessionsResumed.WithLabelValues(source).Inc()
}

// RecordSessionExpired records a persisted session discarded as stale.
func (m *Metrics) RecordSessionExpired() {
	if m.sessionsExpired == nil {
		return
	}
	m.sessionsExpired.Inc()
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// System Metrics

// SetQueuedBuilds sets the current number of builds waiting for a worker slot.
func (m *Metrics) SetQueuedBuilds(count float64) {
	if m.queuedBuilds == nil {
		return
	}
	m.queuedBuilds.Set(count)
}

// SetWorkerSlots records the configured compiler worker pool size.
func (m *Metrics) SetWorkerSlots(count float64) {
	if m.workerSlots == nil {
		return
	}
	m.workerSlots.Set(count)
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
