package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("herdmetrics")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OpenTelemetry or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartBatchSpan starts the span covering a whole calculation batch.
	StartBatchSpan(ctx context.Context, farmID, batchID string) (context.Context, trace.Span)

	// StartMetricSpan starts a child span for one definition.
	StartMetricSpan(ctx context.Context, metricName string) (context.Context, trace.Span)

	// EndSpanWithError ends span, recording err when it is non-nil.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the span in ctx, if it is recording.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager backed by the global OpenTelemetry
// tracer provider. Set the provider first:
//
//	otel.SetTracerProvider(provider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartBatchSpan(ctx context.Context, farmID, batchID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "herdmetrics.batch",
		trace.WithAttributes(
			attribute.String("farm.id", farmID),
			attribute.String("batch.id", batchID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) StartMetricSpan(ctx context.Context, metricName string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "herdmetrics.metric."+metricName,
		trace.WithAttributes(
			attribute.String("metric.name", metricName),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
