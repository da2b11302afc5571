package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/plantpulse/plantpulse/internal/alerts"
	"github.com/plantpulse/plantpulse/internal/runner"
	"github.com/plantpulse/plantpulse/internal/store"
	"github.com/plantpulse/plantpulse/internal/ws"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// Handler is the HTTP handler for all /api/v1/* endpoints plus /metrics.
// It reads derived tables from the store; the runner and the alert engine
// are optional and may be nil (their endpoints then degrade gracefully).
type Handler struct {
	store  *store.Store
	runner *runner.Runner
	alerts *alerts.Engine
	hub    *ws.Hub
	mux    *http.ServeMux
	now    func() time.Time
}

// New creates a Handler wired to the given collaborators and registers all
// routes.
func New(st *store.Store, run *runner.Runner, alertEngine *alerts.Engine, hub *ws.Hub) http.Handler {
	h := &Handler{
		store:  st,
		runner: run,
		alerts: alertEngine,
		hub:    hub,
		mux:    http.NewServeMux(),
		now:    time.Now,
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/intervals", h.intervals)
	h.mux.HandleFunc("/api/v1/production", h.production)
	h.mux.HandleFunc("/api/v1/indicators/", h.indicators) // subtree - extracts {kind}
	h.mux.HandleFunc("/api/v1/runs", h.runs)
	h.mux.HandleFunc("/api/v1/alerts", h.activeAlerts)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health - process status and run counters.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{Status: "ok"}
	if h.runner != nil {
		stats := h.runner.Stats()
		resp.RunsTotal = stats.RunsTotal
		resp.RunsFailed = stats.RunsFailed
		resp.LastRunSeconds = stats.LastRunSeconds
		resp.LastRunFinished = formatRFC3339(stats.LastRunFinished)
	}
	if h.hub != nil {
		resp.WSClients = h.hub.Count()
	}
	jsonResp(w, http.StatusOK, resp)
}

// intervals returns GET /api/v1/intervals?date=YYYY-MM-DD.
func (h *Handler) intervals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	out, err := h.store.IntervalsByDate(r.Context(), date)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []types.StateInterval{}
	}
	jsonResp(w, http.StatusOK, out)
}

// production returns GET /api/v1/production?date=YYYY-MM-DD.
func (h *Handler) production(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	out, err := h.store.ProductionByDate(r.Context(), date)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if out == nil {
		out = []types.ProductionRecord{}
	}
	jsonResp(w, http.StatusOK, out)
}

// indicators returns GET /api/v1/indicators/{kind}?date=YYYY-MM-DD.
func (h *Handler) indicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	kind := types.IndicatorKind(strings.TrimPrefix(r.URL.Path, "/api/v1/indicators/"))
	switch kind {
	case types.KindEfficiency, types.KindPerformance, types.KindRepair:
	default:
		jsonErr(w, http.StatusNotFound, "unknown indicator kind")
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	records, err := h.store.IndicatorsByDate(r.Context(), kind, date)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]IndicatorResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toIndicatorResponse(rec))
	}
	jsonResp(w, http.StatusOK, out)
}

// runs serves GET (history) and POST (on-demand run) on /api/v1/runs.
func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listRuns(w, r)
	case http.MethodPost:
		h.triggerRun(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.store.RecentRuns(r.Context(), limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		jsonErr(w, http.StatusServiceUnavailable, "runner not configured")
		return
	}
	date, ok := h.dateParam(w, r)
	if !ok {
		return
	}

	run, err := h.runner.Run(r.Context(), date)
	if err != nil {
		jsonResp(w, http.StatusInternalServerError, toRunResponse(run))
		return
	}
	jsonResp(w, http.StatusOK, toRunResponse(run))
}

// activeAlerts returns GET /api/v1/alerts - currently firing alerts plus
// recently resolved ones.
func (h *Handler) activeAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []struct{}{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// --- helpers ----------------------------------------------------------------

// dateParam resolves the ?date= query parameter, defaulting to today.
// Writes a 400 and returns ok=false on a malformed value.
func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return h.now().Format("2006-01-02"), true
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		jsonErr(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func toRunResponse(run store.Run) RunResponse {
	return RunResponse{
		ID:         run.ID,
		Date:       run.Date,
		StartedAt:  formatRFC3339(run.StartedAt),
		FinishedAt: formatRFC3339(run.FinishedAt),
		Intervals:  run.Intervals,
		Production: run.Production,
		Indicators: run.Indicators,
		Status:     run.Status,
		Error:      run.Error,
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
