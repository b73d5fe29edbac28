// Package instrumentation provides OpenTelemetry instrumentation for the
// wiresim simulation server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, sessions, and simulator operations
//   - Distributed tracing for request flows
//   - Prometheus metrics export via /metrics endpoint on a dedicated port
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by simulator, method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_sessions: Gauge of live simulation sessions
//
// Simulator Metrics:
//   - simulator_operations_total: Counter of simulator operations by simulator, operation, status
//   - simulator_operation_duration_seconds: Histogram of simulator operation durations
//   - rate_limited_requests_total: Counter of requests rejected by the rate limiter
//
// # Tracing
//
// Distributed tracing spans are created for HTTP request handling and
// simulator operations (simulator.<name>.<operation>).
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: wiresim)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "wiresim",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordHTTPRequest(ctx, "gmail", "POST", "/v1/users/me/messages/send", 200, time.Since(start))
//	recorder.RecordSimulatorOperation(ctx, "gmail", "send", "success", time.Since(start))
package instrumentation
