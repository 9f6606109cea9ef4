// Package observability provides structured logging helpers, OpenTelemetry
// metrics and OpenTelemetry tracing for metric calculation batches.
//
// Every helper is nil-safe and every recorder has a no-op variant, so callers
// can leave observability switched off without branching.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns a logger that tags every record with the batch and
// farm being calculated.
//
//	log := EnrichLogger(logger, batchID, "farm-1")
//	log.Info("loading herd") // includes batch_id and farm_id
func EnrichLogger(logger *slog.Logger, batchID, farmID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("batch_id", batchID),
		slog.String("farm_id", farmID),
	)
}

// LogBatchStart logs the start of a calculation batch.
func LogBatchStart(logger *slog.Logger, batchID string, definitions, animals int) {
	if logger == nil {
		return
	}
	logger.Info("metric batch starting",
		slog.String("batch_id", batchID),
		slog.Int("definitions", definitions),
		slog.Int("animals", animals),
	)
}

// LogBatchComplete logs a finished batch. failed counts definitions whose
// formula did not evaluate.
func LogBatchComplete(logger *slog.Logger, batchID string, durationMs float64, evaluated, failed int) {
	if logger == nil {
		return
	}
	logger.Info("metric batch completed",
		slog.String("batch_id", batchID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("evaluated", evaluated),
		slog.Int("failed", failed),
	)
}

// LogBatchError logs a batch that stopped early.
func LogBatchError(logger *slog.Logger, batchID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("metric batch failed",
		slog.String("batch_id", batchID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogMetricStart logs the start of one definition's evaluation.
func LogMetricStart(logger *slog.Logger, metricName string) {
	if logger == nil {
		return
	}
	logger.Debug("metric evaluating",
		slog.String("metric", metricName),
	)
}

// LogMetricComplete logs a successful evaluation.
func LogMetricComplete(logger *slog.Logger, metricName string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("metric evaluated",
		slog.String("metric", metricName),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogMetricError logs a definition whose formula failed. The batch goes on.
func LogMetricError(logger *slog.Logger, metricName, formula string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("metric formula failed",
		slog.String("metric", metricName),
		slog.String("formula", formula),
		slog.String("error", err.Error()),
	)
}

// LogDefinitionVersioned logs that a formula change produced a new version.
func LogDefinitionVersioned(logger *slog.Logger, name string, version int) {
	if logger == nil {
		return
	}
	logger.Info("metric definition versioned",
		slog.String("metric", name),
		slog.Int("version", version),
	)
}

// TimedOperation starts a stopwatch. The returned function reports the
// elapsed time in milliseconds with microsecond resolution.
//
//	done := TimedOperation()
//	// ... evaluate ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
