// Package observability provides structured logging, Prometheus metrics, and
// panic recovery for the beacon pipeline and collector.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("session_id", sid).Info("pipeline started")
//
// # Prometheus Metrics
//
// Create a registry-backed metrics set and expose it:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// # Panic Recovery
//
// The pipeline's public entry points must never panic into the host
// application. Use RecoverPanic in a defer at every boundary:
//
//	defer observability.RecoverPanic(logger, "track")
package observability
