// Package middleware provides dispatch middleware for wscomms tables.
//
// This package includes:
//   - OpenTelemetry tracing, one span per command
//   - Prometheus metrics for command counts, errors and duration
//   - Token-bucket rate limiting
//   - Structured logging with log/slog
//
// Middleware is installed per table:
//
//	table := dispatch.NewTable("calc")
//	table.Use(
//	    middleware.Logging(slog.Default()),
//	    middleware.OpenTelemetry(middleware.WithTracerName("calc")),
//	    middleware.Prometheus(middleware.WithNamespace("calc")),
//	    middleware.RateLimit(100, 20),
//	)
//
// # OpenTelemetry Middleware
//
// The tracer comes from the global provider unless WithTracerProvider is
// given. Spans carry the command name, correlation id, table label and
// session id, and the span context is passed to the operation through its
// context.Context.
//
// # Prometheus Metrics
//
//   - wscomms_commands_total: Commands processed by label, name and status
//   - wscomms_command_duration_seconds: Command duration histogram
//   - wscomms_command_errors_total: Command errors by label, name and error type
//
// Expose them with promhttp, or enable ServerConfig.MetricsPath in pkg/server.
package middleware
