package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// Batch holds one registry date's fetched rows for all four feeds.
type Batch struct {
	Telemetry   []types.TelemetryRecord
	Annotations []types.AnnotationRecord
	Production  []types.ProductionRow
	Quality     []types.QualityRecord
}

// Collector fetches raw rows from every configured source. Clients are
// built once and reused across fetch cycles.
type Collector struct {
	cfg     config.IngestConfig
	log     *slog.Logger
	clients map[string]*http.Client
}

func New(cfg config.IngestConfig, log *slog.Logger) (*Collector, error) {
	clients := make(map[string]*http.Client, len(cfg.Sources))
	for _, src := range cfg.Sources {
		client, err := buildHTTPClient(src, cfg.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("ingest %q: build http client: %w", src.ID, err)
		}
		clients[src.ID] = client
	}
	return &Collector{cfg: cfg, log: log, clients: clients}, nil
}

// Fetch pulls the rows for one registry date from every source. A source
// that fails is logged and skipped; its feed stays empty for the batch so
// one unreachable upstream cannot abort a whole run.
func (c *Collector) Fetch(ctx context.Context, date string) *Batch {
	batch := &Batch{}
	for _, src := range c.cfg.Sources {
		client := c.clients[src.ID]

		var (
			n   int
			err error
		)
		switch src.Feed {
		case "telemetry":
			var rows []types.TelemetryRecord
			if rows, err = fetchRows[types.TelemetryRecord](ctx, client, src.Endpoint, date); err == nil {
				batch.Telemetry = append(batch.Telemetry, rows...)
				n = len(rows)
			}
		case "annotations":
			var rows []types.AnnotationRecord
			if rows, err = fetchRows[types.AnnotationRecord](ctx, client, src.Endpoint, date); err == nil {
				batch.Annotations = append(batch.Annotations, rows...)
				n = len(rows)
			}
		case "production":
			var rows []types.ProductionRow
			if rows, err = fetchRows[types.ProductionRow](ctx, client, src.Endpoint, date); err == nil {
				batch.Production = append(batch.Production, rows...)
				n = len(rows)
			}
		case "quality":
			var rows []types.QualityRecord
			if rows, err = fetchRows[types.QualityRecord](ctx, client, src.Endpoint, date); err == nil {
				batch.Quality = append(batch.Quality, rows...)
				n = len(rows)
			}
		}

		if err != nil {
			c.log.Warn("ingest fetch failed", "source", src.ID, "feed", src.Feed, "error", err)
			continue
		}
		c.log.Debug("ingest fetch", "source", src.ID, "feed", src.Feed, "rows", n)
	}
	return batch
}
