package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the wiresim package.
const TracerName = "github.com/wiresim/wiresim"

// Span attribute keys for operations.
const (
	// SpanAttrSimulator is the simulator name attribute.
	SpanAttrSimulator = "sim.simulator"

	// SpanAttrOperation is the operation type attribute.
	SpanAttrOperation = "sim.operation"

	// SpanAttrSession is the session identifier attribute.
	SpanAttrSession = "sim.session_id"

	// SpanAttrStatus is the operation status attribute.
	SpanAttrStatus = "sim.status"

	// SpanAttrResourceID is the resource identifier (message id, channel id, etc.).
	SpanAttrResourceID = "sim.resource_id"
)

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartSimulatorSpan starts a span for a simulator operation.
// Automatically adds simulator and operation attributes and sets server span kind.
func StartSimulatorSpan(ctx context.Context, simulator, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrSimulator, simulator),
		attribute.String(SpanAttrOperation, operation),
	)
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "simulator."+simulator+"."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
