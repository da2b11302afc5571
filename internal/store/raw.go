package store

import (
	"context"
	"fmt"

	"github.com/plantpulse/plantpulse/pkg/types"
)

// The raw_* tables keep the day's fetched feed rows so a run can be
// repeated from stored inputs without re-contacting the upstream services.

const upsertTelemetrySQL = `
INSERT INTO raw_telemetry (machine_id, line, status, cycle_count, produced_count, shift, date, time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (machine_id, date, time) DO UPDATE SET
    line = excluded.line,
    status = excluded.status,
    cycle_count = excluded.cycle_count,
    produced_count = excluded.produced_count,
    shift = excluded.shift`

func (s *Store) SaveTelemetry(ctx context.Context, records []types.TelemetryRecord) error {
	return upsertBatch(ctx, s.db, records, upsertTelemetrySQL, func(t types.TelemetryRecord) []any {
		return []any{t.MachineID, t.Line, t.Status, t.CycleCount, t.ProducedCount, t.Shift, t.Date, t.Time}
	})
}

func (s *Store) TelemetryByDate(ctx context.Context, date string) ([]types.TelemetryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT machine_id, line, status, cycle_count, produced_count, shift, date, time
FROM raw_telemetry WHERE date = ? ORDER BY machine_id, time`, date)
	if err != nil {
		return nil, fmt.Errorf("store: query telemetry: %w", err)
	}
	defer rows.Close()

	var out []types.TelemetryRecord
	for rows.Next() {
		var t types.TelemetryRecord
		if err := rows.Scan(&t.MachineID, &t.Line, &t.Status, &t.CycleCount, &t.ProducedCount, &t.Shift, &t.Date, &t.Time); err != nil {
			return nil, fmt.Errorf("store: scan telemetry: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const upsertAnnotationSQL = `
INSERT INTO raw_annotations (line, machine_id, reason, equipment, problem, cause, work_order, operator_id, date, time, backup_flag)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (machine_id, date, time) DO UPDATE SET
    line = excluded.line,
    reason = excluded.reason,
    equipment = excluded.equipment,
    problem = excluded.problem,
    cause = excluded.cause,
    work_order = excluded.work_order,
    operator_id = excluded.operator_id,
    backup_flag = excluded.backup_flag`

func (s *Store) SaveAnnotations(ctx context.Context, records []types.AnnotationRecord) error {
	return upsertBatch(ctx, s.db, records, upsertAnnotationSQL, func(a types.AnnotationRecord) []any {
		return []any{a.Line, a.MachineID, a.Reason, a.Equipment, a.Problem, a.Cause, a.WorkOrder, a.OperatorID, a.Date, a.Time, a.Backup}
	})
}

func (s *Store) AnnotationsByDate(ctx context.Context, date string) ([]types.AnnotationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT line, machine_id, reason, equipment, problem, cause, work_order, operator_id, date, time, backup_flag
FROM raw_annotations WHERE date = ? ORDER BY machine_id, time`, date)
	if err != nil {
		return nil, fmt.Errorf("store: query annotations: %w", err)
	}
	defer rows.Close()

	var out []types.AnnotationRecord
	for rows.Next() {
		var a types.AnnotationRecord
		if err := rows.Scan(&a.Line, &a.MachineID, &a.Reason, &a.Equipment, &a.Problem, &a.Cause, &a.WorkOrder, &a.OperatorID, &a.Date, &a.Time, &a.Backup); err != nil {
			return nil, fmt.Errorf("store: scan annotation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const upsertProductionRowSQL = `
INSERT INTO raw_production (line, machine_id, shift, date, product, total_cycles, sensor_produced)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (line, machine_id, date, shift) DO UPDATE SET
    product = excluded.product,
    total_cycles = excluded.total_cycles,
    sensor_produced = excluded.sensor_produced`

func (s *Store) SaveProductionRows(ctx context.Context, rows []types.ProductionRow) error {
	return upsertBatch(ctx, s.db, rows, upsertProductionRowSQL, func(p types.ProductionRow) []any {
		return []any{p.Line, p.MachineID, p.Shift, p.Date, p.Product, p.TotalCycles, p.SensorProduced}
	})
}

func (s *Store) ProductionRowsByDate(ctx context.Context, date string) ([]types.ProductionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT line, machine_id, shift, date, product, total_cycles, sensor_produced
FROM raw_production WHERE date = ? ORDER BY line, shift, machine_id`, date)
	if err != nil {
		return nil, fmt.Errorf("store: query raw production: %w", err)
	}
	defer rows.Close()

	var out []types.ProductionRow
	for rows.Next() {
		var p types.ProductionRow
		if err := rows.Scan(&p.Line, &p.MachineID, &p.Shift, &p.Date, &p.Product, &p.TotalCycles, &p.SensorProduced); err != nil {
			return nil, fmt.Errorf("store: scan raw production: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const upsertQualitySQL = `
INSERT INTO raw_quality (line, machine_id, date, time, empty_trays, rework_trays, discard_bread, discard_bread_paste, discard_paste)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (machine_id, date, time) DO UPDATE SET
    line = excluded.line,
    empty_trays = excluded.empty_trays,
    rework_trays = excluded.rework_trays,
    discard_bread = excluded.discard_bread,
    discard_bread_paste = excluded.discard_bread_paste,
    discard_paste = excluded.discard_paste`

func (s *Store) SaveQuality(ctx context.Context, records []types.QualityRecord) error {
	return upsertBatch(ctx, s.db, records, upsertQualitySQL, func(q types.QualityRecord) []any {
		return []any{q.Line, q.MachineID, q.Date, q.Time, q.EmptyTrays, q.ReworkTrays, q.DiscardBread, q.DiscardBreadPaste, q.DiscardPaste}
	})
}

func (s *Store) QualityByDate(ctx context.Context, date string) ([]types.QualityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT line, machine_id, date, time, empty_trays, rework_trays, discard_bread, discard_bread_paste, discard_paste
FROM raw_quality WHERE date = ? ORDER BY machine_id, time`, date)
	if err != nil {
		return nil, fmt.Errorf("store: query quality: %w", err)
	}
	defer rows.Close()

	var out []types.QualityRecord
	for rows.Next() {
		var q types.QualityRecord
		if err := rows.Scan(&q.Line, &q.MachineID, &q.Date, &q.Time, &q.EmptyTrays, &q.ReworkTrays, &q.DiscardBread, &q.DiscardBreadPaste, &q.DiscardPaste); err != nil {
			return nil, fmt.Errorf("store: scan quality: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
