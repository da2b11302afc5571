package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/plantpulse/plantpulse/pkg/types"
)

const upsertIndicatorSQL = `
INSERT INTO indicators (
    kind, factory, line, machine_id, shift, date,
    minutes, discount, surplus, expected_minutes,
    total_produced, expected_production, value
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (kind, machine_id, line, date, shift) DO UPDATE SET
    factory = excluded.factory,
    minutes = excluded.minutes,
    discount = excluded.discount,
    surplus = excluded.surplus,
    expected_minutes = excluded.expected_minutes,
    total_produced = excluded.total_produced,
    expected_production = excluded.expected_production,
    value = excluded.value`

// UpsertIndicators writes indicator rows keyed by (kind, machine_id, line,
// date, shift). NaN values are stored as NULL.
func (s *Store) UpsertIndicators(ctx context.Context, records []types.IndicatorRecord) error {
	return upsertBatch(ctx, s.db, records, upsertIndicatorSQL, func(r types.IndicatorRecord) []any {
		value := sql.NullFloat64{Float64: r.Value, Valid: !math.IsNaN(r.Value)}
		return []any{
			r.Kind, r.Factory, r.Line, r.MachineID, r.Shift, r.Date,
			r.Minutes, r.Discount, r.Surplus, r.ExpectedMinutes,
			r.TotalProduced, r.ExpectedProduction, value,
		}
	})
}

// IndicatorsByDate returns the rows of one indicator kind for one registry
// date. Rows stored with a NULL value come back as NaN.
func (s *Store) IndicatorsByDate(ctx context.Context, kind types.IndicatorKind, date string) ([]types.IndicatorRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT kind, factory, line, machine_id, shift, date,
       minutes, discount, surplus, expected_minutes,
       total_produced, expected_production, value
FROM indicators
WHERE kind = ? AND date = ?
ORDER BY line, shift, machine_id`, kind, date)
	if err != nil {
		return nil, fmt.Errorf("store: query indicators: %w", err)
	}
	defer rows.Close()

	var out []types.IndicatorRecord
	for rows.Next() {
		var (
			r     types.IndicatorRecord
			value sql.NullFloat64
		)
		if err := rows.Scan(
			&r.Kind, &r.Factory, &r.Line, &r.MachineID, &r.Shift, &r.Date,
			&r.Minutes, &r.Discount, &r.Surplus, &r.ExpectedMinutes,
			&r.TotalProduced, &r.ExpectedProduction, &value,
		); err != nil {
			return nil, fmt.Errorf("store: scan indicator: %w", err)
		}
		if value.Valid {
			r.Value = value.Float64
		} else {
			r.Value = math.NaN()
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
