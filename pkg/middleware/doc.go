// Package middleware provides HTTP middleware for reeldeck servers.
//
// Two observability middlewares are included: Prometheus, which records
// request counts, durations, and in-flight gauges, and OpenTelemetry,
// which traces every request through the global tracer provider. Both
// follow the functional-options pattern and are plain
// func(http.Handler) http.Handler wrappers, so they compose with chi's
// Use directly.
package middleware
