package api

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// metrics serves GET /metrics in the Prometheus text exposition format.
// The families are built by hand from runner and hub counters; there is no
// global registry.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var families []*dto.MetricFamily
	if h.runner != nil {
		stats := h.runner.Stats()
		families = append(families,
			counterFamily("plantpulse_runs_total",
				"Total number of analysis runs since start.", float64(stats.RunsTotal)),
			counterFamily("plantpulse_runs_failed_total",
				"Number of analysis runs that ended in error.", float64(stats.RunsFailed)),
			gaugeFamily("plantpulse_last_run_duration_seconds",
				"Wall-clock duration of the most recent analysis run.", stats.LastRunSeconds),
		)
	}
	if h.hub != nil {
		families = append(families,
			gaugeFamily("plantpulse_ws_clients",
				"Number of currently connected WebSocket clients.", float64(h.hub.Count())))
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

func counterFamily(name, help string, value float64) *dto.MetricFamily {
	t := dto.MetricType_COUNTER
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   &t,
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: &value}}},
	}
}

func gaugeFamily(name, help string, value float64) *dto.MetricFamily {
	t := dto.MetricType_GAUGE
	return &dto.MetricFamily{
		Name:   &name,
		Help:   &help,
		Type:   &t,
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: &value}}},
	}
}
