package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records calculation metrics.
// Use NewMetricsRecorder() for OpenTelemetry or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEvaluation records one definition's evaluation and whether its
	// formula failed.
	RecordEvaluation(ctx context.Context, metricName string, duration time.Duration, err error)

	// RecordBatch records a finished calculation batch.
	RecordBatch(ctx context.Context, farmID string, definitions int, success bool, duration time.Duration)

	// RecordDefinitionVersion records a stored definition version.
	RecordDefinitionVersion(ctx context.Context, metricName string, version int)
}

type otelMetrics struct {
	evaluations       metric.Int64Counter
	evaluationLatency metric.Float64Histogram
	evaluationErrors  metric.Int64Counter
	batches           metric.Int64Counter
	batchLatency      metric.Float64Histogram
	batchSize         metric.Int64Histogram
	versions          metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("herdmetrics")

	evaluations, err := meter.Int64Counter("herdmetrics.metric.evaluations",
		metric.WithDescription("Number of metric formula evaluations"),
	)
	if err != nil {
		return nil, err
	}

	evaluationLatency, err := meter.Float64Histogram("herdmetrics.metric.latency_ms",
		metric.WithDescription("Metric formula evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	evaluationErrors, err := meter.Int64Counter("herdmetrics.metric.errors",
		metric.WithDescription("Number of metric formulas that failed to evaluate"),
	)
	if err != nil {
		return nil, err
	}

	batches, err := meter.Int64Counter("herdmetrics.batch.runs",
		metric.WithDescription("Number of calculation batches"),
	)
	if err != nil {
		return nil, err
	}

	batchLatency, err := meter.Float64Histogram("herdmetrics.batch.latency_ms",
		metric.WithDescription("Calculation batch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	batchSize, err := meter.Int64Histogram("herdmetrics.batch.definitions",
		metric.WithDescription("Definitions per calculation batch"),
	)
	if err != nil {
		return nil, err
	}

	versions, err := meter.Int64Counter("herdmetrics.definition.versions",
		metric.WithDescription("Number of stored metric definition versions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		evaluations:       evaluations,
		evaluationLatency: evaluationLatency,
		evaluationErrors:  evaluationErrors,
		batches:           batches,
		batchLatency:      batchLatency,
		batchSize:         batchSize,
		versions:          versions,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global
// OpenTelemetry meter provider, or a no-op recorder if the instruments
// cannot be created. Set the provider first:
//
//	otel.SetMeterProvider(provider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordEvaluation(ctx context.Context, metricName string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("metric", metricName))

	m.evaluations.Add(ctx, 1, attrs)
	m.evaluationLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.evaluationErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordBatch(ctx context.Context, farmID string, definitions int, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("farm_id", farmID),
		attribute.Bool("success", success),
	)
	m.batches.Add(ctx, 1, attrs)
	m.batchLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	m.batchSize.Record(ctx, int64(definitions), attrs)
}

func (m *otelMetrics) RecordDefinitionVersion(ctx context.Context, metricName string, version int) {
	m.versions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("metric", metricName),
		attribute.Int("version", version),
	))
}
