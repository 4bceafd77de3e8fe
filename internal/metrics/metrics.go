package metrics

import (
	"net/http"
	"time"

	"github.com/harun/logkeeper/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds all Prometheus metrics for logkeeper. It implements
// logger.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Retention metrics
	FilesPrunedTotal   *prometheus.CounterVec
	PruneFailuresTotal prometheus.Counter

	// Session metrics
	SessionsBoundTotal  *prometheus.CounterVec
	RecordsEmittedTotal *prometheus.CounterVec

	// Janitor metrics
	JanitorRunsTotal  *prometheus.CounterVec
	JanitorRunSeconds prometheus.Histogram
	LogFilesRetained  prometheus.Gauge
}

var _ logger.Recorder = (*Metrics)(nil)

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		FilesPrunedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logkeeper_files_pruned_total",
				Help: "Total number of log files pruned",
			},
			[]string{"mode"},
		),
		PruneFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "logkeeper_prune_failures_total",
				Help: "Total number of log files that could not be pruned",
			},
		),

		SessionsBoundTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logkeeper_sessions_bound_total",
				Help: "Total number of logging sessions bound",
			},
			[]string{"kind"},
		),
		RecordsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logkeeper_records_emitted_total",
				Help: "Total number of log records emitted",
			},
			[]string{"level"},
		),

		JanitorRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "logkeeper_janitor_runs_total",
				Help: "Total number of scheduled retention passes",
			},
			[]string{"status"},
		),
		JanitorRunSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "logkeeper_janitor_run_duration_seconds",
				Help:    "Duration of scheduled retention passes in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		LogFilesRetained: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "logkeeper_log_files_retained",
				Help: "Number of log files left after the last retention pass",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.FilesPrunedTotal)
	m.registry.MustRegister(m.PruneFailuresTotal)

	m.registry.MustRegister(m.SessionsBoundTotal)
	m.registry.MustRegister(m.RecordsEmittedTotal)

	m.registry.MustRegister(m.JanitorRunsTotal)
	m.registry.MustRegister(m.JanitorRunSeconds)
	m.registry.MustRegister(m.LogFilesRetained)
}

// FilePruned counts a log file removed by a retention pass
func (m *Metrics) FilePruned(mode logger.PruneMode) {
	m.FilesPrunedTotal.WithLabelValues(string(mode)).Inc()
}

// PruneFailed counts a log file that could not be removed
func (m *Metrics) PruneFailed() {
	m.PruneFailuresTotal.Inc()
}

// SessionBound counts a bound session by kind
func (m *Metrics) SessionBound(child bool) {
	kind := "root"
	if child {
		kind = "child"
	}
	m.SessionsBoundTotal.WithLabelValues(kind).Inc()
}

// RecordEmitted counts a record by level
func (m *Metrics) RecordEmitted(level zerolog.Level) {
	m.RecordsEmittedTotal.WithLabelValues(level.String()).Inc()
}

// JanitorRun records one scheduled retention pass
func (m *Metrics) JanitorRun(duration time.Duration, retained int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		m.LogFilesRetained.Set(float64(retained))
	}
	m.JanitorRunsTotal.WithLabelValues(status).Inc()
	m.JanitorRunSeconds.Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
