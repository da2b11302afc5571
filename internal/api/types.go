package api

import (
	"math"
	"time"

	"github.com/plantpulse/plantpulse/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status          string  `json:"status"`
	RunsTotal       int64   `json:"runs_total"`
	RunsFailed      int64   `json:"runs_failed"`
	LastRunSeconds  float64 `json:"last_run_seconds"`
	LastRunFinished string  `json:"last_run_finished,omitempty"` // RFC3339
	WSClients       int     `json:"ws_clients"`
}

// IndicatorResponse is one row in GET /api/v1/indicators/{kind}.
// Value is null when the indicator is undefined for the row.
type IndicatorResponse struct {
	Kind               types.IndicatorKind `json:"kind"`
	Factory            int                 `json:"factory"`
	Line               int                 `json:"line"`
	MachineID          string              `json:"machine_id"`
	Shift              types.Shift         `json:"shift"`
	Date               string              `json:"date"`
	Minutes            int                 `json:"time_total"`
	Discount           int                 `json:"discount_time"`
	Surplus            int                 `json:"surplus_time"`
	ExpectedMinutes    int                 `json:"expected_time"`
	TotalProduced      int                 `json:"total_produced,omitempty"`
	ExpectedProduction int                 `json:"expected_production,omitempty"`
	Value              *float64            `json:"indicator_value"`
}

// toIndicatorResponse maps an engine row to its JSON representation,
// converting a NaN value to null.
func toIndicatorResponse(r types.IndicatorRecord) IndicatorResponse {
	resp := IndicatorResponse{
		Kind:               r.Kind,
		Factory:            r.Factory,
		Line:               r.Line,
		MachineID:          r.MachineID,
		Shift:              r.Shift,
		Date:               r.Date,
		Minutes:            r.Minutes,
		Discount:           r.Discount,
		Surplus:            r.Surplus,
		ExpectedMinutes:    r.ExpectedMinutes,
		TotalProduced:      r.TotalProduced,
		ExpectedProduction: r.ExpectedProduction,
	}
	if !math.IsNaN(r.Value) {
		v := r.Value
		resp.Value = &v
	}
	return resp
}

// RunResponse is one entry in GET /api/v1/runs and the response body of
// POST /api/v1/runs.
type RunResponse struct {
	ID         int64  `json:"id"`
	Date       string `json:"date"`
	StartedAt  string `json:"started_at"`  // RFC3339
	FinishedAt string `json:"finished_at"` // RFC3339
	Intervals  int    `json:"intervals"`
	Production int    `json:"production"`
	Indicators int    `json:"indicators"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

func formatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
