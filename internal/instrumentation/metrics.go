package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrSimulator = "simulator"
)

// Metrics provides methods for recording observability metrics.
// All recording methods are safe to call on a nil or zero-value Metrics;
// they become no-ops when the underlying instruments are absent.
type Metrics struct {
	// HTTP metrics
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	activeSessions      metric.Int64UpDownCounter

	// Simulator metrics
	simulatorOperationsTotal   metric.Int64Counter
	simulatorOperationDuration metric.Float64Histogram
	rateLimitedTotal           metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	m.activeSessions, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Number of live simulation sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active_sessions gauge: %w", err)
	}

	m.simulatorOperationsTotal, err = meter.Int64Counter(
		"simulator_operations_total",
		metric.WithDescription("Total number of simulator operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator_operations_total counter: %w", err)
	}

	m.simulatorOperationDuration, err = meter.Float64Histogram(
		"simulator_operation_duration_seconds",
		metric.WithDescription("Simulator operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator_operation_duration_seconds histogram: %w", err)
	}

	m.rateLimitedTotal, err = meter.Int64Counter(
		"rate_limited_requests_total",
		metric.WithDescription("Total number of requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limited_requests_total counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request with simulator, method, path,
// status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, simulator, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrSimulator, simulator),
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSimulatorOperation records a simulator operation with simulator name,
// operation type, status, and duration.
//
// Parameters:
//   - simulator: "gmail" or "slack"
//   - operation: Operation type (list, get, send, import, modify, post, search)
//   - status: Result status ("success" or "error")
//   - duration: Time taken for the operation
func (m *Metrics) RecordSimulatorOperation(ctx context.Context, simulator, operation, status string, duration time.Duration) {
	if m == nil || m.simulatorOperationsTotal == nil || m.simulatorOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrSimulator, simulator),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.simulatorOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.simulatorOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRateLimited records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimited(ctx context.Context, simulator string) {
	if m == nil || m.rateLimitedTotal == nil {
		return
	}

	m.rateLimitedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrSimulator, simulator),
	))
}

// RecordSessionCreated increments the active sessions gauge.
func (m *Metrics) RecordSessionCreated(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}

	m.activeSessions.Add(ctx, 1)
}

// RecordSessionDeleted decrements the active sessions gauge.
func (m *Metrics) RecordSessionDeleted(ctx context.Context) {
	if m == nil || m.activeSessions == nil {
		return
	}

	m.activeSessions.Add(ctx, -1)
}
