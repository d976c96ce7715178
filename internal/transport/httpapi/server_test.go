package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingbot/internal/backtest"
	"swingbot/internal/config"
)

func newTestServer(t *testing.T) (*Server, *backtest.ResultStore) {
	t.Helper()
	store, err := backtest.NewResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	svc := backtest.NewService(nil, store, nil, config.BacktestConfig{
		StartDate: "2024-01-02",
		EndDate:   "2024-01-31",
	}, 1)
	srv, err := NewServer(Config{Addr: ":0", Service: svc, Results: store})
	require.NoError(t, err)
	return srv, store
}

func TestNewServerRequiresDeps(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}

func TestRunListAndDetail(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, "run-1", map[string]any{}))

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backtest/runs", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listBody struct {
		Runs []backtest.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listBody))
	require.Len(t, listBody.Runs, 1)
	assert.Equal(t, "run-1", listBody.Runs[0].ID)

	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backtest/runs/run-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backtest/runs/ghost", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunStartValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/backtest/runs", strings.NewReader(`{"start_date":"bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportRequiresCompletedRun(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.CreateRun(context.Background(), "run-1", map[string]any{}))

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backtest/runs/run-1/report", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportRendersCompletedRun(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, "run-1", map[string]any{}))

	res := &backtest.Result{
		RunID: "run-1",
		Stats: backtest.Metrics{TotalTrades: 1, Wins: 1, WinRate: 1},
		EquityCurve: []backtest.EquityPoint{
			{Date: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), Equity: 100000},
			{Date: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Equity: 100500},
		},
	}
	require.NoError(t, store.SaveResult(ctx, res))

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/backtest/runs/run-1/report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "权益曲线")
}
