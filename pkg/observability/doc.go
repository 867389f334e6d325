// Package observability provides structured logging, metrics, health checks
// and tracing for the SIMS server and import job.
//
// # Logging
//
// Logger is a JSON logger backed by logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("sheet_type", "injury").Info("import finished")
//
// Request handlers read a request-scoped logger from the context with
// FromContext. Components that take a logrus.FieldLogger get logger.Entry().
//
// # Metrics
//
// The HTTP server exposes Prometheus collectors at /metrics (NewMetrics,
// HTTPMetricsMiddleware). The import job pushes the same import measurements
// through OpenTelemetry (NewOTelMetrics) since nothing scrapes it.
// A nil *Metrics records nothing, so components can take one optionally.
//
// # Health
//
// HealthChecker aggregates named dependency probes. Required dependencies
// (Postgres) make the service unhealthy; optional ones (Redis) degrade it.
//
// # Tracing
//
// InitOTel installs OTLP gRPC trace and metric exporters as the global
// providers; ShutdownManager flushes them on exit.
package observability
