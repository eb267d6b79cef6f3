package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fundlens/screener-cli/internal/metrics"
	"github.com/fundlens/screener-cli/internal/model"
	"github.com/fundlens/screener-cli/internal/store"
)

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	return New(Config{Port: 0, Log: zap.NewNop(), Store: st})
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAnalyzeInlineMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/analyze", map[string]any{
		"symbol":    "600519",
		"framework": "value_investing",
		"metrics": map[string]float64{
			"roe": 0.20, "gross_margin": 0.45, "asset_liability_ratio": 0.30,
			"revenue_yoy": 0.18, "pe_ratio": 12,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbol string `json:"symbol"`
		Result struct {
			TotalScore     float64 `json:"total_score"`
			Recommendation string  `json:"recommendation"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "600519", resp.Symbol)
	assert.Greater(t, resp.Result.TotalScore, 0.0)
	assert.NotEmpty(t, resp.Result.Recommendation)
}

func TestAnalyzeUnknownFramework(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/analyze", map[string]any{
		"framework": "does_not_exist",
		"metrics":   map[string]float64{"roe": 0.1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeNoMetricsNoStore(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/analyze", map[string]any{
		"symbol": "600519",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeFromStoreAndSave(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertStock(ctx, model.Stock{Symbol: "600519"}))
	require.NoError(t, st.SaveSnapshot(ctx, "600519", "2024FY", metrics.Snapshot{
		"roe": 0.25, "gross_margin": 0.9, "asset_liability_ratio": 0.2,
		"revenue_yoy": 0.16, "pe_ratio": 20,
	}))

	s := newTestServer(t, st)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/analyze", map[string]any{
		"symbol": "600519",
		"save":   true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)

	// The saved run is retrievable.
	rec = doJSON(t, s.Handler(), http.MethodGet, "/v1/runs/"+resp.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run model.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, model.RunKindAnalysis, run.Kind)
	assert.Equal(t, "value_investing", run.Framework)
}

func TestScreenInlineHistory(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/screen", map[string]any{
		"symbol":   "600519",
		"screener": "quality_screener",
		"metrics":  map[string]float64{"roe": 0.08},
		"history":  []map[string]float64{{"roe": 0.08}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result struct {
			ResultType string `json:"result_type"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fail", resp.Result.ResultType)
}

func TestScreenHistoryOnlyUsesLatestSnapshot(t *testing.T) {
	s := newTestServer(t, nil)

	history := []map[string]float64{
		{"roe": 0.20, "gross_margin": 0.42, "revenue": 180},
		{"roe": 0.18, "gross_margin": 0.40, "revenue": 150},
		{"roe": 0.17, "gross_margin": 0.39, "revenue": 130},
	}

	screen := func(body map[string]any) json.RawMessage {
		rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/screen", body)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Result json.RawMessage `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp.Result
	}

	historyOnly := screen(map[string]any{
		"symbol":   "600519",
		"screener": "quality_screener",
		"history":  history,
	})
	explicit := screen(map[string]any{
		"symbol":   "600519",
		"screener": "quality_screener",
		"metrics":  history[0],
		"history":  history,
	})

	assert.JSONEq(t, string(explicit), string(historyOnly))
}

func TestScreenMissingSymbolNotFound(t *testing.T) {
	st := newTestStore(t)
	s := newTestServer(t, st)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/screen", map[string]any{
		"symbol": "UNKNOWN",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFrameworksList(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/frameworks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Frameworks []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"frameworks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	names := make([]string, 0, len(resp.Frameworks))
	for _, f := range resp.Frameworks {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "value_investing")
	assert.Contains(t, names, "quality_screener")
}

func TestGetRunNoStore(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/runs/some-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
