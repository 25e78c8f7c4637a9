package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the session Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reeldeck").
	Namespace string

	// Subsystem is the metrics subsystem (default: "session").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the session metrics.
type MetricsOption func(*MetricsConfig)

// WithMetricsNamespace sets the metrics namespace.
func WithMetricsNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithMetricsSubsystem sets the metrics subsystem.
func WithMetricsSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithMetricsConstLabels sets constant labels for all metrics.
func WithMetricsConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithMetricsRegistry sets the Prometheus registry.
func WithMetricsRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics tracks session and synchronization activity.
type Metrics struct {
	// TransitionsTotal counts mode transitions by from/to mode.
	TransitionsTotal *prometheus.CounterVec

	// SyncsTotal counts completed synchronizations by outcome.
	SyncsTotal *prometheus.CounterVec

	// SyncDedupTotal counts sync requests that awaited an existing run.
	SyncDedupTotal prometheus.Counter

	// SyncInFlight tracks currently running synchronizations.
	SyncInFlight prometheus.Gauge

	// ActiveMode exposes the current session mode as a one-hot gauge.
	ActiveMode *prometheus.GaugeVec

	// PersistFailuresTotal counts background persistence failures by scope.
	PersistFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the session metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{
		Namespace: "reeldeck",
		Subsystem: "session",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "transitions_total",
			Help:        "Session mode transitions by from/to mode.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"from", "to"}),

		SyncsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "syncs_total",
			Help:        "Completed user-data synchronizations by outcome.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"outcome"}),

		SyncDedupTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "sync_dedup_total",
			Help:        "Sync requests deduplicated onto an existing in-flight run.",
			ConstLabels: cfg.ConstLabels,
		}),

		SyncInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "sync_in_flight",
			Help:        "Currently running user-data synchronizations.",
			ConstLabels: cfg.ConstLabels,
		}),

		ActiveMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "active_mode",
			Help:        "Current session mode (1 for the active mode, 0 otherwise).",
			ConstLabels: cfg.ConstLabels,
		}, []string{"mode"}),

		PersistFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "persist_failures_total",
			Help:        "Background user-data persistence failures by store scope.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"scope"}),
	}
}

// recordTransition is a nil-safe counter increment.
func (m *Metrics) recordTransition(from, to Mode) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
	m.ActiveMode.WithLabelValues(from.String()).Set(0)
	m.ActiveMode.WithLabelValues(to.String()).Set(1)
}

// RecordPersistFailure is a nil-safe counter increment for a failed
// background persist.
func (m *Metrics) RecordPersistFailure(scope string) {
	if m == nil {
		return
	}
	m.PersistFailuresTotal.WithLabelValues(scope).Inc()
}

// recordSync is a nil-safe outcome increment.
func (m *Metrics) recordSync(outcome string) {
	if m == nil {
		return
	}
	m.SyncsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordDedup() {
	if m == nil {
		return
	}
	m.SyncDedupTotal.Inc()
}

func (m *Metrics) syncStarted() {
	if m == nil {
		return
	}
	m.SyncInFlight.Inc()
}

func (m *Metrics) syncFinished() {
	if m == nil {
		return
	}
	m.SyncInFlight.Dec()
}
