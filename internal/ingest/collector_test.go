package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch_DecodesRowsAndSendsAPIKey(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEY", "secret-key")

	var gotKey, gotDate string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotDate = r.URL.Query().Get("date")
		json.NewEncoder(w).Encode([]types.TelemetryRecord{
			{MachineID: "MAQ101", Line: 1, Status: "true", Date: "2026-08-20", Time: "08:00:00"},
		})
	}))
	defer srv.Close()

	cfg := config.IngestConfig{
		Sources: []config.Source{{
			ID:       "gw-telemetry",
			Feed:     "telemetry",
			Endpoint: srv.URL + "/telemetry",
			Auth:     config.AuthConfig{Mode: "apikey", KeyEnv: "TEST_GATEWAY_KEY"},
		}},
	}
	c, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	batch := c.Fetch(context.Background(), "2026-08-20")
	if len(batch.Telemetry) != 1 {
		t.Fatalf("got %d telemetry rows, want 1", len(batch.Telemetry))
	}
	if batch.Telemetry[0].MachineID != "MAQ101" {
		t.Errorf("machine_id: got %q", batch.Telemetry[0].MachineID)
	}
	if gotKey != "secret-key" {
		t.Errorf("api key header: got %q", gotKey)
	}
	if gotDate != "2026-08-20" {
		t.Errorf("date query: got %q", gotDate)
	}
}

func TestFetch_SourceFailureSkipsFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/annotations" {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode([]types.ProductionRow{
			{Line: 1, MachineID: "MAQ101", Shift: types.ShiftMorning, Date: "2026-08-20"},
		})
	}))
	defer srv.Close()

	cfg := config.IngestConfig{
		Sources: []config.Source{
			{ID: "gw-ann", Feed: "annotations", Endpoint: srv.URL + "/annotations"},
			{ID: "gw-prod", Feed: "production", Endpoint: srv.URL + "/production"},
		},
	}
	c, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	batch := c.Fetch(context.Background(), "2026-08-20")
	if len(batch.Annotations) != 0 {
		t.Errorf("annotations should be empty, got %d", len(batch.Annotations))
	}
	if len(batch.Production) != 1 {
		t.Errorf("production: got %d rows, want 1", len(batch.Production))
	}
}
