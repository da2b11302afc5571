package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/internal/runner"
	"github.com/plantpulse/plantpulse/internal/store"
	"github.com/plantpulse/plantpulse/pkg/types"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "plantpulse.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testRunner(t *testing.T, st *store.Store) *runner.Runner {
	t.Helper()
	cfg := &config.Config{
		Runner: config.RunnerConfig{Interval: time.Minute},
		Rules:  config.DefaultRules(),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return runner.New(cfg, st, nil, nil, nil, log)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := New(testStore(t), nil, nil, nil)

	rec := get(t, h, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status field: got %q", resp.Status)
	}
}

func TestIntervalsByDate(t *testing.T) {
	st := testStore(t)
	start := time.Date(2026, 8, 20, 8, 0, 0, 0, time.UTC)
	err := st.UpsertIntervals(context.Background(), []types.StateInterval{{
		Factory: 1, Line: 1, MachineID: "MAQ101", Shift: types.ShiftMorning,
		Status: types.StatusStopped, Date: "2026-08-20", Time: "08:00:00",
		Start: start, End: start.Add(30 * time.Minute), Minutes: 30, Reason: "Maintenance",
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := New(st, nil, nil, nil)

	rec := get(t, h, "/api/v1/intervals?date=2026-08-20")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var out []types.StateInterval
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 || out[0].Reason != "Maintenance" {
		t.Errorf("body: %+v", out)
	}

	// A date with no rows yields an empty array, not null.
	rec = get(t, h, "/api/v1/intervals?date=2026-01-01")
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("empty date body: got %q, want []", body)
	}
}

func TestIndicators_NaNRendersAsNull(t *testing.T) {
	st := testStore(t)
	err := st.UpsertIndicators(context.Background(), []types.IndicatorRecord{
		{
			Kind: types.KindEfficiency, Factory: 1, Line: 1, MachineID: "MAQ101",
			Shift: types.ShiftMorning, Date: "2026-08-20", Value: 0.957,
		},
		{
			Kind: types.KindEfficiency, Factory: 1, Line: 1, MachineID: "MAQ102",
			Shift: types.ShiftMorning, Date: "2026-08-20", Value: math.NaN(),
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h := New(st, nil, nil, nil)

	rec := get(t, h, "/api/v1/indicators/efficiency?date=2026-08-20")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	var out []IndicatorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d rows, want 2", len(out))
	}
	if out[0].Value == nil || *out[0].Value != 0.957 {
		t.Errorf("defined value: %+v", out[0].Value)
	}
	if out[1].Value != nil {
		t.Errorf("undefined value should be null, got %v", *out[1].Value)
	}
	if !strings.Contains(rec.Body.String(), `"indicator_value":null`) {
		t.Error("raw body should carry a literal null indicator_value")
	}
}

func TestIndicators_UnknownKind(t *testing.T) {
	h := New(testStore(t), nil, nil, nil)
	rec := get(t, h, "/api/v1/indicators/throughput?date=2026-08-20")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rec.Code)
	}
}

func TestBadDateParam(t *testing.T) {
	h := New(testStore(t), nil, nil, nil)
	rec := get(t, h, "/api/v1/intervals?date=20-08-2026")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(testStore(t), nil, nil, nil)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/intervals", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rec.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	st := testStore(t)
	h := New(st, testRunner(t, st), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs?date=2026-08-20", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var run RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if run.Status != "ok" || run.Date != "2026-08-20" {
		t.Errorf("run: %+v", run)
	}

	// The triggered run must appear in the history.
	rec = get(t, h, "/api/v1/runs")
	var runs []RunResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("history: got %d runs, want 1", len(runs))
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Setenv("TEST_API_KEY", "secret")
	auth := config.AuthConfig{Mode: "apikey", KeyEnv: "TEST_API_KEY"}
	st := testStore(t)
	h := APIKeyMiddleware(auth, New(st, testRunner(t, st), nil, nil))

	rec := get(t, h, "/api/v1/health")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without key: got %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("x-api-key", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with key: got %d, want 200", rec.Code)
	}

	// /metrics stays open for scrapers.
	rec = get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("metrics: got %d, want 200", rec.Code)
	}
}

func TestMetricsExposition(t *testing.T) {
	st := testStore(t)
	run := testRunner(t, st)
	if _, err := run.Run(context.Background(), "2026-08-20"); err != nil {
		t.Fatalf("run: %v", err)
	}
	h := New(st, run, nil, nil)

	rec := get(t, h, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "plantpulse_runs_total 1") {
		t.Errorf("missing runs_total:\n%s", body)
	}
	if !strings.Contains(body, "plantpulse_runs_failed_total 0") {
		t.Errorf("missing runs_failed_total:\n%s", body)
	}
}
