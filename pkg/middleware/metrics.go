package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reeldeck").
	Namespace string

	// Subsystem is the metrics subsystem (default: "http").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "reeldeck",
		Subsystem:   "http",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the HTTP layer.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	wsErrors        *prometheus.CounterVec
	wsConnections   prometheus.Gauge
}

// globalMetrics is the singleton metrics instance.
// Created on first call to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

// initMetrics initializes the Prometheus metrics.
func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of HTTP requests processed",
			ConstLabels: config.ConstLabels,
		}, []string{"path", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"path", "method"}),

		requestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_in_flight",
			Help:        "Number of HTTP requests currently being served",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_connections",
			Help:        "Number of active WebSocket connections",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates middleware that collects Prometheus metrics for HTTP
// requests.
//
// Metrics collected:
//   - reeldeck_http_requests_total: Counter of requests by path, method, and status
//   - reeldeck_http_request_duration_seconds: Histogram of request duration
//   - reeldeck_http_requests_in_flight: Gauge of requests being served
//   - reeldeck_http_websocket_errors_total: Counter of WebSocket errors
//   - reeldeck_http_websocket_connections: Gauge of active WebSocket connections
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Prometheus(
//	    middleware.WithNamespace("myapp"),
//	))
//	r.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Initialize metrics once
	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			m.requestsInFlight.Inc()
			start := time.Now()

			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			m.requestsInFlight.Dec()

			path := routePattern(r)
			m.requestDuration.WithLabelValues(path, r.Method).Observe(duration)
			m.requestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(ww.Status())).Inc()
		})
	}
}

// routePattern returns the chi route pattern for the request, falling back
// to the raw path. Patterns keep label cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// RecordWebSocketError records a WebSocket error.
func RecordWebSocketError(errorType string) {
	if globalMetrics != nil {
		globalMetrics.wsErrors.WithLabelValues(errorType).Inc()
	}
}

// RecordWebSocketOpen records a WebSocket connection opening.
func RecordWebSocketOpen() {
	if globalMetrics != nil {
		globalMetrics.wsConnections.Inc()
	}
}

// RecordWebSocketClose records a WebSocket connection closing.
func RecordWebSocketClose() {
	if globalMetrics != nil {
		globalMetrics.wsConnections.Dec()
	}
}
