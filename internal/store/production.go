package store

import (
	"context"
	"fmt"

	"github.com/plantpulse/plantpulse/pkg/types"
)

const upsertProductionSQL = `
INSERT INTO production_records (
    line, machine_id, shift, date, product, total_cycles, sensor_produced,
    empty_trays, rework_trays, total_produced,
    discard_bread, discard_bread_paste, discard_paste
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (line, machine_id, date, shift) DO UPDATE SET
    product = excluded.product,
    total_cycles = excluded.total_cycles,
    sensor_produced = excluded.sensor_produced,
    empty_trays = excluded.empty_trays,
    rework_trays = excluded.rework_trays,
    total_produced = excluded.total_produced,
    discard_bread = excluded.discard_bread,
    discard_bread_paste = excluded.discard_bread_paste,
    discard_paste = excluded.discard_paste`

// UpsertProduction writes merged production rows keyed by
// (line, machine_id, date, shift).
func (s *Store) UpsertProduction(ctx context.Context, records []types.ProductionRecord) error {
	return upsertBatch(ctx, s.db, records, upsertProductionSQL, func(p types.ProductionRecord) []any {
		return []any{
			p.Line, p.MachineID, p.Shift, p.Date, p.Product, p.TotalCycles, p.SensorProduced,
			p.EmptyTrays, p.ReworkTrays, p.TotalProduced,
			p.DiscardBread, p.DiscardBreadPaste, p.DiscardPaste,
		}
	})
}

// ProductionByDate returns the merged production rows for one registry date.
func (s *Store) ProductionByDate(ctx context.Context, date string) ([]types.ProductionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT line, machine_id, shift, date, product, total_cycles, sensor_produced,
       empty_trays, rework_trays, total_produced,
       discard_bread, discard_bread_paste, discard_paste
FROM production_records
WHERE date = ?
ORDER BY line, shift, machine_id`, date)
	if err != nil {
		return nil, fmt.Errorf("store: query production: %w", err)
	}
	defer rows.Close()

	var out []types.ProductionRecord
	for rows.Next() {
		var p types.ProductionRecord
		if err := rows.Scan(
			&p.Line, &p.MachineID, &p.Shift, &p.Date, &p.Product, &p.TotalCycles, &p.SensorProduced,
			&p.EmptyTrays, &p.ReworkTrays, &p.TotalProduced,
			&p.DiscardBread, &p.DiscardBreadPaste, &p.DiscardPaste,
		); err != nil {
			return nil, fmt.Errorf("store: scan production: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
