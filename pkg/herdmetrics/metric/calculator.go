package metric

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/observability"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

// Batch is everything needed to calculate a set of definitions for one farm.
type Batch struct {
	FarmID        string
	Definitions   []Definition
	Animals       []herdmetrics.Record
	Events        []herdmetrics.Record
	Parameters    map[string]any
	ReferenceDate time.Time
}

// Result is the outcome of one definition.
type Result struct {
	DefinitionID string   `json:"definition_id"`
	Name         string   `json:"name"`
	DisplayName  string   `json:"display_name"`
	Category     Category `json:"category"`
	Unit         string   `json:"unit,omitempty"`
	Format       Format   `json:"format,omitempty"`
	Decimals     *int     `json:"decimals,omitempty"`
	// Value is set only when the formula produced a finite number.
	Value *float64 `json:"value"`
	// Raw is the formula result before the numeric check.
	Raw value.Value `json:"raw"`
	// Error is the parse error of a formula that did not evaluate.
	Error string `json:"error,omitempty"`
}

// Calculator evaluates definitions against herd data on a bounded pool of
// goroutines. It is safe for concurrent use.
type Calculator struct {
	engine  *herdmetrics.Engine
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	workers int
	timeout time.Duration
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithLogger sets the logger for batch and per-metric records.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) CalculatorOption {
	return func(c *Calculator) {
		c.logger = logger
	}
}

// WithMetrics records evaluations and batches. Default: no-op.
func WithMetrics(recorder observability.MetricsRecorder) CalculatorOption {
	return func(c *Calculator) {
		c.metrics = recorder
	}
}

// WithSpanManager traces batches and evaluations. Default: no-op.
func WithSpanManager(spans observability.SpanManager) CalculatorOption {
	return func(c *Calculator) {
		c.spans = spans
	}
}

// WithWorkers bounds how many definitions are evaluated at once.
// Default: 4. Values below 1 are ignored.
func WithWorkers(n int) CalculatorOption {
	return func(c *Calculator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithTimeout bounds a whole batch. Zero means no limit.
func WithTimeout(d time.Duration) CalculatorOption {
	return func(c *Calculator) {
		c.timeout = d
	}
}

// WithEngine sets the formula engine. Default: an engine logging through
// the calculator's logger.
func WithEngine(engine *herdmetrics.Engine) CalculatorOption {
	return func(c *Calculator) {
		c.engine = engine
	}
}

// NewCalculator creates a Calculator with the given options.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		workers: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = herdmetrics.New(herdmetrics.WithLogger(c.logger))
	}
	return c
}

// Calculate evaluates every definition of the batch. Each definition is
// evaluated on its own: a formula that fails yields a Result with Error set
// and does not affect the others. Results follow definition order.
//
// If ctx is cancelled or the timeout expires, no further definitions are
// started; the results finished so far are returned with the context error.
func (c *Calculator) Calculate(ctx context.Context, batch Batch) ([]Result, error) {
	return c.run(ctx, batch, batch.Definitions, c.environment(batch))
}

// CalculateForAnimal evaluates the animal-scoped definitions of the batch
// with bare field names resolving against animal.
func (c *Calculator) CalculateForAnimal(ctx context.Context, batch Batch, animal herdmetrics.Record) ([]Result, error) {
	env := c.environment(batch)
	env.Current = FlattenAnimals([]herdmetrics.Record{animal})[0]

	defs := make([]Definition, 0, len(batch.Definitions))
	for _, def := range batch.Definitions {
		if def.Scope == ScopeAnimal {
			defs = append(defs, def)
		}
	}
	return c.run(ctx, batch, defs, env)
}

// environment builds the shared evaluation context. TODAY is pinned for the
// whole batch.
func (c *Calculator) environment(batch Batch) herdmetrics.Context {
	ref := batch.ReferenceDate
	if ref.IsZero() {
		ref = time.Now()
	}
	return herdmetrics.Context{
		Animals:       FlattenAnimals(batch.Animals),
		Events:        FlattenEvents(batch.Events),
		Parameters:    batch.Parameters,
		ReferenceDate: ref,
	}
}

func (c *Calculator) run(ctx context.Context, batch Batch, defs []Definition, env herdmetrics.Context) ([]Result, error) {
	batchID := uuid.NewString()
	logger := observability.EnrichLogger(c.logger, batchID, batch.FarmID)
	start := time.Now()
	elapsed := observability.TimedOperation()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := c.spans.StartBatchSpan(ctx, batch.FarmID, batchID)
	observability.LogBatchStart(logger, batchID, len(defs), len(env.Animals))

	results := make([]Result, len(defs))
	finished := make([]bool, len(defs))
	sem := make(chan struct{}, c.workers)
	var wg sync.WaitGroup

schedule:
	for i := range defs {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break schedule
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = c.evaluate(ctx, defs[i], env, logger)
			finished[i] = true
		}(i)
	}
	wg.Wait()

	out := make([]Result, 0, len(defs))
	failed := 0
	for i, ok := range finished {
		if !ok {
			continue
		}
		if results[i].Error != "" {
			failed++
		}
		out = append(out, results[i])
	}

	if err := ctx.Err(); err != nil {
		observability.LogBatchError(logger, batchID, err, elapsed())
		c.metrics.RecordBatch(ctx, batch.FarmID, len(defs), false, time.Since(start))
		c.spans.EndSpanWithError(span, err)
		return out, fmt.Errorf("calculate batch %s: %w", batchID, err)
	}

	observability.LogBatchComplete(logger, batchID, elapsed(), len(out), failed)
	c.metrics.RecordBatch(ctx, batch.FarmID, len(defs), true, time.Since(start))
	c.spans.EndSpanWithError(span, nil)
	return out, nil
}

func (c *Calculator) evaluate(ctx context.Context, def Definition, env herdmetrics.Context, logger *slog.Logger) Result {
	ctx, span := c.spans.StartMetricSpan(ctx, def.Name)
	observability.LogMetricStart(logger, def.Name)

	start := time.Now()
	raw, err := c.engine.EvaluateE(def.Formula, env)
	duration := time.Since(start)

	c.metrics.RecordEvaluation(ctx, def.Name, duration, err)
	if err != nil {
		c.spans.AddSpanEvent(ctx, "formula.rejected", attribute.String("formula", def.Formula))
	}
	c.spans.EndSpanWithError(span, err)

	res := Result{
		DefinitionID: def.ID,
		Name:         def.Name,
		DisplayName:  def.DisplayName,
		Category:     def.Category,
		Unit:         def.Unit,
		Format:       def.Format,
		Decimals:     def.Decimals,
		Raw:          raw,
	}
	if err != nil {
		observability.LogMetricError(logger, def.Name, def.Formula, err)
		res.Error = err.Error()
		return res
	}

	observability.LogMetricComplete(logger, def.Name, float64(duration.Microseconds())/1000)
	if raw.Kind() == value.KindNumber && !math.IsNaN(raw.Num()) && !math.IsInf(raw.Num(), 0) {
		f := raw.Num()
		res.Value = &f
	}
	return res
}
