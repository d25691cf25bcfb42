// Package observability provides logging setup and a metrics extension for
// Conduit. NewLogger builds an slog.Logger on top of a zap core with optional
// lumberjack rotation. MetricsExtension implements lifecycle hooks to record
// system-wide counters for job submission, transitions, completion and
// failure, plus step and unit failures.
//
// For per-unit tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
