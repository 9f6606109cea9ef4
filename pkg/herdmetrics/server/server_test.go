package server_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/metric"
	"github.com/randalmurphal/herdmetrics/pkg/herdmetrics/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (http.Handler, metric.Store) {
	t.Helper()
	store := metric.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	srv := server.New(store, server.WithLogger(slog.New(slog.DiscardHandler)))
	return srv.Handler(), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestEvaluateFormula(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", map[string]any{
		"formula": `COUNT("animals", "status = 'prenha'") / COUNT("animals") * 100`,
		"context": map[string]any{
			"animals": []map[string]any{{"status": "prenha"}, {"status": "vazia"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"value":50}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", map[string]any{
		"formula": "DATEDIFF(last_calving_date, TODAY())",
		"context": map[string]any{
			"current":        map[string]any{"last_calving_date": "2024-01-01"},
			"reference_date": "2024-06-01",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"value":152}`, w.Body.String())
}

func TestEvaluateFormula_Errors(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", map[string]any{"formula": "(1 + 2"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Nil(t, body["value"])
	assert.Contains(t, body["error"], "expected PAREN )")

	w = do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", `{"formula":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "formula is required")

	w = do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", map[string]any{
		"formula": "1", "context": map[string]any{"reference_date": "amanhã"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "reference_date")
}

func TestEvaluateFormula_DeepNesting(t *testing.T) {
	h, _ := newTestServer(t)

	deep := strings.Repeat("(", 100_000) + "1"
	w := do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", map[string]any{"formula": deep})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Nil(t, body["value"])
	assert.Contains(t, body["error"], "nested too deeply")

	w = do(t, h, http.MethodPost, "/api/v1/formulas/validate", map[string]any{"formula": deep})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["valid"])
}

func TestBodyLimit(t *testing.T) {
	srv := server.New(metric.NewMemoryStore(),
		server.WithLogger(slog.New(slog.DiscardHandler)),
		server.WithMaxBodyBytes(1024),
	)
	h := srv.Handler()

	long := strings.Repeat("1 + ", 1000) + "1"
	for _, path := range []string{"/api/v1/formulas/evaluate", "/api/v1/formulas/validate", "/api/v1/metrics"} {
		w := do(t, h, http.MethodPost, path, map[string]any{"formula": long})
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, path)
		assert.Contains(t, decode(t, w)["error"], "1024 bytes", path)
	}

	w := do(t, h, http.MethodPost, "/api/v1/formulas/evaluate", map[string]any{"formula": "1 + 1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["value"])
}

func TestValidateFormula(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/formulas/validate", map[string]any{"formula": "IF(del > 100, 1, 0)"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid":true}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/formulas/validate", map[string]any{"formula": "foo(1)"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Contains(t, body["error"], "unknown function: foo")
}

func TestInspectFormula(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/formulas/inspect", map[string]any{
		"formula": "IF(del > PARAM('limite_del'), peso, 0)",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"fields":["del","peso"],"params":["limite_del"]}`, w.Body.String())
}

func TestMetricsCRUD(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/metrics", map[string]any{
		"farm_id":      "farm-1",
		"name":         "taxa_prenhez",
		"display_name": "Taxa de Prenhez",
		"category":     "reproductive",
		"formula":      `COUNT("animals", "status = 'prenha'")`,
		"decimals":     1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	id := created["id"].(string)
	assert.NotEmpty(t, id)
	assert.Equal(t, float64(1), created["version"])
	assert.Equal(t, true, created["is_current"])

	w = do(t, h, http.MethodGet, "/api/v1/metrics/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "taxa_prenhez", decode(t, w)["name"])

	w = do(t, h, http.MethodPut, "/api/v1/metrics/"+id, map[string]any{"formula": `COUNT("animals")`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v2 := decode(t, w)
	assert.NotEqual(t, id, v2["id"])
	assert.Equal(t, float64(2), v2["version"])

	w = do(t, h, http.MethodPut, "/api/v1/metrics/"+id, map[string]any{"formula": "1"})
	assert.Equal(t, http.StatusConflict, w.Code, "superseded version")

	w = do(t, h, http.MethodGet, "/api/v1/metrics/"+v2["id"].(string)+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 2)

	w = do(t, h, http.MethodGet, "/api/v1/metrics?farm_id=farm-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = do(t, h, http.MethodDelete, "/api/v1/metrics/"+v2["id"].(string), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/metrics?farm_id=farm-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["data"])
}

func TestMetrics_ErrorStatus(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/metrics", map[string]any{"name": "Nome Ruim", "formula": "SUMIF(1)"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "formula")

	w = do(t, h, http.MethodPost, "/api/v1/metrics", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/metrics/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPut, "/api/v1/metrics/missing", map[string]any{"formula": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/metrics/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/metrics", map[string]any{"id": "dup", "formula": "1"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, h, http.MethodPost, "/api/v1/metrics", map[string]any{"id": "dup", "formula": "1"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCalculateMetrics(t *testing.T) {
	h, store := newTestServer(t)

	for _, d := range []metric.Definition{
		{ID: "taxa", FarmID: "farm-1", Name: "taxa_prenhez", DisplayName: "Taxa de Prenhez", Formula: `COUNT("animals", "status = 'prenha'") / COUNT("animals") * 100`},
		{ID: "del", Name: "del_medio", DisplayName: "DEL Médio", Formula: `AVERAGE("animals", "del")`},
		{ID: "partos", FarmID: "farm-1", Name: "partos", DisplayName: "Partos", Category: metric.CategoryInventory, Formula: `COUNT("events", "type = 'parto'")`},
		{ID: "outra", FarmID: "farm-2", Name: "outra", DisplayName: "Outra", Formula: "1"},
	} {
		_, err := store.Create(d)
		require.NoError(t, err)
	}

	payload := map[string]any{
		"farm_id":        "farm-1",
		"reference_date": "2024-06-01",
		"animals": []map[string]any{
			{"reproductive_status": "prenha", "current_del": 100},
			{"reproductive_status": "vazia", "current_del": 300},
		},
		"events": []map[string]any{
			{"event_type": "parto", "event_date": "2024-05-10"},
			{"event_type": "parto", "event_date": "2024-04-10"},
			{"event_type": "secagem", "event_date": "2024-05-20"},
		},
	}

	w := do(t, h, http.MethodPost, "/api/v1/metrics/calculate", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		FarmID  string `json:"farm_id"`
		Results []struct {
			Name  string   `json:"name"`
			Value *float64 `json:"value"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "farm-1", resp.FarmID)
	require.Len(t, resp.Results, 3)

	values := make(map[string]float64)
	for _, r := range resp.Results {
		require.NotNil(t, r.Value, r.Name)
		values[r.Name] = *r.Value
	}
	assert.Equal(t, map[string]float64{"partos": 2, "del_medio": 200, "taxa_prenhez": 50}, values)

	payload["metric_ids"] = []string{"taxa"}
	w = do(t, h, http.MethodPost, "/api/v1/metrics/calculate", payload)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "taxa_prenhez", resp.Results[0].Name)

	payload["reference_date"] = "ontem"
	w = do(t, h, http.MethodPost, "/api/v1/metrics/calculate", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
