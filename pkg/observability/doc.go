// Package observability provides structured logging, Prometheus metrics,
// health checks and graceful shutdown for the campfire services.
//
// The Logger is a thin wrapper over slog's JSON handler with field chaining:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("community_id", 42).Info("access check")
//
// Metrics are registered on an explicit prometheus.Registry so tests can
// create isolated instances:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	observability.RegisterMetricsEndpoint(router, registry)
package observability
