package instrumentation

import (
	"context"
	"testing"
	"time"
)

func testProvider(t *testing.T, ctx context.Context) *Provider {
	t.Helper()
	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := testProvider(t, ctx).Metrics()
	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	// Should not panic
	metrics.RecordHTTPRequest(ctx, SimulatorGmail, "GET", "/v1/users/me/messages", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, SimulatorSlack, "POST", "/api/chat.postMessage", 429, 50*time.Millisecond)
}

func TestMetrics_RecordSimulatorOperation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := testProvider(t, ctx).Metrics()

	// Should not panic
	metrics.RecordSimulatorOperation(ctx, SimulatorGmail, OperationSend, StatusSuccess, 200*time.Millisecond)
	metrics.RecordSimulatorOperation(ctx, SimulatorGmail, OperationList, StatusError, 500*time.Millisecond)
	metrics.RecordSimulatorOperation(ctx, SimulatorSlack, OperationPost, StatusSuccess, 100*time.Millisecond)
}

func TestMetrics_RecordSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := testProvider(t, ctx).Metrics()

	metrics.RecordSessionCreated(ctx)
	metrics.RecordSessionCreated(ctx)
	metrics.RecordSessionDeleted(ctx)
	metrics.RecordRateLimited(ctx, SimulatorGmail)
}

func TestMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()

	// All recording methods must be no-ops on a nil receiver.
	var m *Metrics
	m.RecordHTTPRequest(ctx, SimulatorGmail, "GET", "/", 200, time.Millisecond)
	m.RecordSimulatorOperation(ctx, SimulatorGmail, OperationGet, StatusSuccess, time.Millisecond)
	m.RecordRateLimited(ctx, SimulatorSlack)
	m.RecordSessionCreated(ctx)
	m.RecordSessionDeleted(ctx)

	// And on a zero value with uninitialized instruments.
	zero := &Metrics{}
	zero.RecordHTTPRequest(ctx, SimulatorGmail, "GET", "/", 200, time.Millisecond)
	zero.RecordSimulatorOperation(ctx, SimulatorSlack, OperationPost, StatusError, time.Millisecond)
	zero.RecordRateLimited(ctx, SimulatorGmail)
	zero.RecordSessionCreated(ctx)
	zero.RecordSessionDeleted(ctx)
}
