package metric_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/observability"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/value"
)

var reference = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func quietCalculator(opts ...metric.CalculatorOption) *metric.Calculator {
	base := []metric.CalculatorOption{metric.WithLogger(slog.New(slog.DiscardHandler))}
	return metric.NewCalculator(append(base, opts...)...)
}

func herdBatch(defs ...metric.Definition) metric.Batch {
	return metric.Batch{
		FarmID:      "farm-1",
		Definitions: defs,
		Animals: []herdmetrics.Record{
			{"id": "a1", "reproductive_status": "prenha", "current_del": 120, "last_calving_date": "2024-02-02"},
			{"id": "a2", "reproductive_status": "vazia", "current_del": 300},
			{"id": "a3", "reproductive_status": "prenha", "current_del": 180},
			{"id": "a4", "reproductive_status": "vazia", "current_del": nil},
		},
		Events: []herdmetrics.Record{
			{"event_type": "parto", "event_date": "2024-05-02"},
			{"event_type": "inseminacao", "event_date": "2024-05-20"},
			{"event_type": "parto", "event_date": "2024-05-28"},
		},
		Parameters:    map[string]any{"meta_prenhez": 85},
		ReferenceDate: reference,
	}
}

func def(name, formula string) metric.Definition {
	return metric.Definition{ID: name, Name: name, DisplayName: name, Category: metric.CategoryReproductive, Formula: formula, Scope: metric.ScopeFarm}
}

func TestCalculator_Calculate(t *testing.T) {
	batch := herdBatch(
		def("taxa_prenhez", `COUNT("animals", "status = 'prenha'") / COUNT("animals") * 100`),
		def("del_medio", `AVERAGE("animals", "del")`),
		def("partos", `COUNT("events", "type = 'parto'")`),
		def("gap_meta", `PARAM('meta_prenhez') - 50`),
		def("quebrada", "(1 +"),
		def("texto", "'abc'"),
		def("infinito", "MIN()"),
	)

	results, err := quietCalculator().Calculate(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 7)

	byName := make(map[string]metric.Result)
	for i, r := range results {
		assert.Equal(t, batch.Definitions[i].Name, r.Name, "results follow definition order")
		byName[r.Name] = r
	}

	require.NotNil(t, byName["taxa_prenhez"].Value)
	assert.Equal(t, 50.0, *byName["taxa_prenhez"].Value)
	require.NotNil(t, byName["del_medio"].Value)
	assert.Equal(t, 200.0, *byName["del_medio"].Value)
	require.NotNil(t, byName["partos"].Value)
	assert.Equal(t, 2.0, *byName["partos"].Value)
	require.NotNil(t, byName["gap_meta"].Value)
	assert.Equal(t, 35.0, *byName["gap_meta"].Value)

	broken := byName["quebrada"]
	assert.Nil(t, broken.Value)
	assert.True(t, broken.Raw.IsNull())
	assert.Contains(t, broken.Error, "unexpected token")

	assert.Nil(t, byName["texto"].Value, "non-numeric results have no value")
	assert.Equal(t, "abc", byName["texto"].Raw.Str())
	assert.Empty(t, byName["texto"].Error)

	assert.Nil(t, byName["infinito"].Value, "infinite results have no value")
	assert.Equal(t, value.KindNumber, byName["infinito"].Raw.Kind())
}

func TestCalculator_DoesNotModifyInput(t *testing.T) {
	batch := herdBatch(def("del_medio", `AVERAGE("animals", "del")`))

	_, err := quietCalculator().Calculate(context.Background(), batch)
	require.NoError(t, err)

	_, flattened := batch.Animals[0]["del"]
	assert.False(t, flattened)
}

func TestCalculator_ReferenceDatePinned(t *testing.T) {
	batch := herdBatch(def("dias", "DATEDIFF('2024-05-01', TODAY())"))

	results, err := quietCalculator().Calculate(context.Background(), batch)
	require.NoError(t, err)
	require.NotNil(t, results[0].Value)
	assert.Equal(t, 31.0, *results[0].Value)
}

func TestCalculator_ResultJSON(t *testing.T) {
	d := def("taxa", "50")
	d.Unit, d.Decimals = "%", ptr(1)

	results, err := quietCalculator().Calculate(context.Background(), herdBatch(d, def("nula", "PARAM('x')")))
	require.NoError(t, err)

	data, err := json.Marshal(results)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"definition_id":"taxa","name":"taxa","display_name":"taxa","category":"reproductive","unit":"%","decimals":1,"value":50,"raw":50},
		{"definition_id":"nula","name":"nula","display_name":"nula","category":"reproductive","value":null,"raw":null}
	]`, string(data))
}

func TestCalculator_CalculateForAnimal(t *testing.T) {
	perAnimal := def("dias_pos_parto", "DATEDIFF(last_calving_date, TODAY())")
	perAnimal.Scope = metric.ScopeAnimal
	alto := def("del_alto", "IF(del > 150, 1, 0)")
	alto.Scope = metric.ScopeAnimal
	batch := herdBatch(def("total", `COUNT("animals")`), perAnimal, alto)

	results, err := quietCalculator().CalculateForAnimal(context.Background(), batch, batch.Animals[0])
	require.NoError(t, err)
	require.Len(t, results, 2, "farm-scoped definitions are skipped")

	assert.Equal(t, "dias_pos_parto", results[0].Name)
	require.NotNil(t, results[0].Value)
	assert.Equal(t, 120.0, *results[0].Value)

	require.NotNil(t, results[1].Value)
	assert.Equal(t, 0.0, *results[1].Value, "a1 has del 120")
}

func TestCalculator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := quietCalculator().Calculate(ctx, herdBatch(def("a", "1"), def("b", "2")))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestCalculator_Timeout(t *testing.T) {
	calc := quietCalculator(metric.WithTimeout(time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, err := calc.Calculate(context.Background(), herdBatch(def("a", "1")))
	// The batch either finished before the deadline was checked or stopped
	// with it.
	if err != nil {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
}

func TestCalculator_ManyDefinitions(t *testing.T) {
	defs := make([]metric.Definition, 50)
	for i := range defs {
		defs[i] = def("m", `COUNT("animals")`)
	}

	results, err := quietCalculator(metric.WithWorkers(3)).Calculate(context.Background(), herdBatch(defs...))
	require.NoError(t, err)
	require.Len(t, results, 50)
	for _, r := range results {
		require.NotNil(t, r.Value)
		assert.Equal(t, 4.0, *r.Value)
	}
}

// recordingMetrics counts what the calculator reports.
type recordingMetrics struct {
	mu          sync.Mutex
	evaluations int
	failures    int
	batches     []bool
}

func (r *recordingMetrics) RecordEvaluation(_ context.Context, _ string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluations++
	if err != nil {
		r.failures++
	}
}

func (r *recordingMetrics) RecordBatch(_ context.Context, _ string, _ int, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, success)
}

func (r *recordingMetrics) RecordDefinitionVersion(context.Context, string, int) {}

var _ observability.MetricsRecorder = (*recordingMetrics)(nil)

func TestCalculator_Observability(t *testing.T) {
	rec := &recordingMetrics{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	calc := metric.NewCalculator(
		metric.WithLogger(logger),
		metric.WithMetrics(rec),
		metric.WithSpanManager(observability.NoopSpanManager{}),
	)
	_, err := calc.Calculate(context.Background(), herdBatch(def("ok", "1"), def("ruim", "FOO()")))
	require.NoError(t, err)

	assert.Equal(t, 2, rec.evaluations)
	assert.Equal(t, 1, rec.failures)
	assert.Equal(t, []bool{true}, rec.batches)

	logs := buf.String()
	assert.Contains(t, logs, "metric batch starting")
	assert.Contains(t, logs, "metric formula failed")
	assert.Contains(t, logs, `"failed":1`)
	assert.Contains(t, logs, `"farm_id":"farm-1"`)
}

func TestCalculator_WithEngine(t *testing.T) {
	var buf bytes.Buffer
	engine := herdmetrics.New(herdmetrics.WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))

	results, err := quietCalculator(metric.WithEngine(engine)).Calculate(context.Background(), herdBatch(def("a", "2 * 21")))
	require.NoError(t, err)
	require.NotNil(t, results[0].Value)
	assert.Equal(t, 42.0, *results[0].Value)
}

func TestCalculator_Tracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(original)
	})

	calc := quietCalculator(metric.WithSpanManager(observability.NewSpanManager()), metric.WithWorkers(1))
	_, err := calc.Calculate(context.Background(), herdBatch(def("ok", "1"), def("ruim", "(1")))
	require.NoError(t, err)

	spans := exporter.GetSpans()
	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "herdmetrics.batch")
	require.Contains(t, byName, "herdmetrics.metric.ok")
	require.Contains(t, byName, "herdmetrics.metric.ruim")

	batch := byName["herdmetrics.batch"]
	assert.Equal(t, batch.SpanContext.SpanID(), byName["herdmetrics.metric.ok"].Parent.SpanID())

	ruim := byName["herdmetrics.metric.ruim"]
	assert.Equal(t, codes.Error, ruim.Status.Code)
	var names []string
	for _, e := range ruim.Events {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "formula.rejected")
	assert.Equal(t, codes.Ok, byName["herdmetrics.metric.ok"].Status.Code)
}
