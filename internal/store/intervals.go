package store

import (
	"context"
	"fmt"
	"time"

	"github.com/plantpulse/plantpulse/pkg/types"
)

const upsertIntervalSQL = `
INSERT INTO state_intervals (
    factory, line, machine_id, shift, status, date, time,
    start_ts, end_ts, minutes, reason, equipment, problem, cause,
    work_order, operator_id, annotation_date, annotation_time, backup_flag
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (machine_id, date, time) DO UPDATE SET
    factory = excluded.factory,
    line = excluded.line,
    shift = excluded.shift,
    status = excluded.status,
    start_ts = excluded.start_ts,
    end_ts = excluded.end_ts,
    minutes = excluded.minutes,
    reason = excluded.reason,
    equipment = excluded.equipment,
    problem = excluded.problem,
    cause = excluded.cause,
    work_order = excluded.work_order,
    operator_id = excluded.operator_id,
    annotation_date = excluded.annotation_date,
    annotation_time = excluded.annotation_time,
    backup_flag = excluded.backup_flag`

// UpsertIntervals writes the interval table keyed by (machine_id, date,
// time); a re-run of the same day overwrites the previous rows.
func (s *Store) UpsertIntervals(ctx context.Context, intervals []types.StateInterval) error {
	return upsertBatch(ctx, s.db, intervals, upsertIntervalSQL, func(iv types.StateInterval) []any {
		return []any{
			iv.Factory, iv.Line, iv.MachineID, iv.Shift, iv.Status, iv.Date, iv.Time,
			iv.Start.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339), iv.Minutes,
			iv.Reason, iv.Equipment, iv.Problem, iv.Cause,
			iv.WorkOrder, iv.OperatorID, iv.AnnotationDate, iv.AnnotationTime, iv.Backup,
		}
	})
}

// IntervalsByDate returns every interval whose start registry date matches,
// ordered by line, start and machine.
func (s *Store) IntervalsByDate(ctx context.Context, date string) ([]types.StateInterval, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT factory, line, machine_id, shift, status, date, time,
       start_ts, end_ts, minutes, reason, equipment, problem, cause,
       work_order, operator_id, annotation_date, annotation_time, backup_flag
FROM state_intervals
WHERE date = ?
ORDER BY line, start_ts, machine_id`, date)
	if err != nil {
		return nil, fmt.Errorf("store: query intervals: %w", err)
	}
	defer rows.Close()

	var out []types.StateInterval
	for rows.Next() {
		var (
			iv             types.StateInterval
			startTS, endTS string
		)
		if err := rows.Scan(
			&iv.Factory, &iv.Line, &iv.MachineID, &iv.Shift, &iv.Status, &iv.Date, &iv.Time,
			&startTS, &endTS, &iv.Minutes, &iv.Reason, &iv.Equipment, &iv.Problem, &iv.Cause,
			&iv.WorkOrder, &iv.OperatorID, &iv.AnnotationDate, &iv.AnnotationTime, &iv.Backup,
		); err != nil {
			return nil, fmt.Errorf("store: scan interval: %w", err)
		}
		if iv.Start, err = time.Parse(time.RFC3339, startTS); err != nil {
			return nil, fmt.Errorf("store: start_ts %q: %w", startTS, err)
		}
		if iv.End, err = time.Parse(time.RFC3339, endTS); err != nil {
			return nil, fmt.Errorf("store: end_ts %q: %w", endTS, err)
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}
