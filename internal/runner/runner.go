package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plantpulse/plantpulse/internal/alerts"
	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/internal/indicator"
	"github.com/plantpulse/plantpulse/internal/ingest"
	"github.com/plantpulse/plantpulse/internal/production"
	"github.com/plantpulse/plantpulse/internal/store"
	"github.com/plantpulse/plantpulse/internal/timeline"
	"github.com/plantpulse/plantpulse/internal/ws"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// Stats is a point-in-time snapshot of runner counters, exposed through
// the /metrics endpoint.
type Stats struct {
	RunsTotal       int64
	RunsFailed      int64
	LastRunSeconds  float64
	LastRunFinished time.Time
}

// Runner wires the analysis pipeline together and guards it with a mutex
// so at most one run executes at a time.
type Runner struct {
	log       *slog.Logger
	store     *store.Store
	collector *ingest.Collector // nil when no sources are configured
	hub       *ws.Hub           // optional
	alerts    *alerts.Engine    // optional

	reconciler *timeline.Reconciler
	merger     *production.Merger
	engine     *indicator.Engine

	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex // serializes runs
	stats struct {
		sync.Mutex
		Stats
	}
}

func New(cfg *config.Config, st *store.Store, collector *ingest.Collector, hub *ws.Hub, alertEngine *alerts.Engine, log *slog.Logger) *Runner {
	return &Runner{
		log:        log,
		store:      st,
		collector:  collector,
		hub:        hub,
		alerts:     alertEngine,
		reconciler: timeline.New(cfg.Rules),
		merger:     production.New(cfg.Rules),
		engine:     indicator.New(cfg.Rules),
		interval:   cfg.Runner.Interval,
		now:        time.Now,
	}
}

// Run executes one full analysis for the given registry date and records
// the outcome in the run history. Blocks while another run is in progress.
func (r *Runner) Run(ctx context.Context, date string) (store.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := r.now()
	run, err := r.run(ctx, date)
	run.Date = date
	run.StartedAt = started
	run.FinishedAt = r.now()
	if err != nil {
		run.Status = "error"
		run.Error = err.Error()
	} else {
		run.Status = "ok"
	}

	if id, recErr := r.store.RecordRun(ctx, run); recErr != nil {
		r.log.Error("record run failed", "error", recErr)
	} else {
		run.ID = id
	}

	r.updateStats(run, err)

	if err != nil {
		r.log.Error("analysis run failed", "date", date, "error", err)
		return run, err
	}

	r.log.Info("analysis run complete",
		"date", date,
		"intervals", run.Intervals,
		"production", run.Production,
		"indicators", run.Indicators,
		"took", run.FinishedAt.Sub(run.StartedAt),
	)
	if r.hub != nil {
		r.hub.Broadcast("run", run)
	}
	return run, nil
}

func (r *Runner) run(ctx context.Context, date string) (store.Run, error) {
	var run store.Run

	batch, err := r.gather(ctx, date)
	if err != nil {
		return run, err
	}

	intervals := r.reconciler.Reconcile(batch.Annotations, batch.Telemetry)
	if err := r.store.UpsertIntervals(ctx, intervals); err != nil {
		return run, fmt.Errorf("persist intervals: %w", err)
	}
	run.Intervals = len(intervals)

	merged := r.merger.Merge(batch.Production, batch.Quality)
	if err := r.store.UpsertProduction(ctx, merged); err != nil {
		return run, fmt.Errorf("persist production: %w", err)
	}
	run.Production = len(merged)

	var all []types.IndicatorRecord
	for _, kind := range types.Kinds {
		all = append(all, r.engine.Compute(intervals, merged, kind)...)
	}
	if err := r.store.UpsertIndicators(ctx, all); err != nil {
		return run, fmt.Errorf("persist indicators: %w", err)
	}
	run.Indicators = len(all)

	if r.alerts != nil {
		r.alerts.Evaluate(all)
	}
	return run, nil
}

// gather fetches the date's raw rows from the upstream sources and stores
// them, or falls back to previously stored rows when no collector is
// configured (or every upstream came back empty).
func (r *Runner) gather(ctx context.Context, date string) (*ingest.Batch, error) {
	if r.collector != nil {
		batch := r.collector.Fetch(ctx, date)
		if err := r.persistRaw(ctx, batch); err != nil {
			return nil, err
		}
	}

	// Re-read from the store so a run always sees the union of freshly
	// fetched rows and anything ingested earlier for the same date.
	batch := &ingest.Batch{}
	var err error
	if batch.Telemetry, err = r.store.TelemetryByDate(ctx, date); err != nil {
		return nil, fmt.Errorf("load telemetry: %w", err)
	}
	if batch.Annotations, err = r.store.AnnotationsByDate(ctx, date); err != nil {
		return nil, fmt.Errorf("load annotations: %w", err)
	}
	if batch.Production, err = r.store.ProductionRowsByDate(ctx, date); err != nil {
		return nil, fmt.Errorf("load production: %w", err)
	}
	if batch.Quality, err = r.store.QualityByDate(ctx, date); err != nil {
		return nil, fmt.Errorf("load quality: %w", err)
	}
	return batch, nil
}

func (r *Runner) persistRaw(ctx context.Context, batch *ingest.Batch) error {
	if err := r.store.SaveTelemetry(ctx, batch.Telemetry); err != nil {
		return fmt.Errorf("save telemetry: %w", err)
	}
	if err := r.store.SaveAnnotations(ctx, batch.Annotations); err != nil {
		return fmt.Errorf("save annotations: %w", err)
	}
	if err := r.store.SaveProductionRows(ctx, batch.Production); err != nil {
		return fmt.Errorf("save production: %w", err)
	}
	if err := r.store.SaveQuality(ctx, batch.Quality); err != nil {
		return fmt.Errorf("save quality: %w", err)
	}
	return nil
}

// Schedule re-analyzes the current date every interval until ctx is
// cancelled. The first run starts immediately.
func (r *Runner) Schedule(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		// Run logs its own failures; the scheduler just keeps ticking.
		r.Run(ctx, r.now().Format("2006-01-02")) //nolint:errcheck

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (r *Runner) updateStats(run store.Run, err error) {
	r.stats.Lock()
	defer r.stats.Unlock()
	r.stats.RunsTotal++
	if err != nil {
		r.stats.RunsFailed++
	}
	r.stats.LastRunSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	r.stats.LastRunFinished = run.FinishedAt
}

// Stats returns a copy of the runner counters.
func (r *Runner) Stats() Stats {
	r.stats.Lock()
	defer r.stats.Unlock()
	return r.stats.Stats
}
