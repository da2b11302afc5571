package store

import (
	"context"
	"fmt"
	"time"
)

// Run is one recorded reconciliation run.
type Run struct {
	ID         int64     `json:"id"`
	Date       string    `json:"date"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Intervals  int       `json:"intervals"`
	Production int       `json:"production"`
	Indicators int       `json:"indicators"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// RecordRun appends one run to the history and returns its id.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO runs (date, started_at, finished_at, intervals, production, indicators, status, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Date,
		run.StartedAt.UTC().Format(time.RFC3339),
		run.FinishedAt.UTC().Format(time.RFC3339),
		run.Intervals, run.Production, run.Indicators,
		run.Status, run.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("store: record run: %w", err)
	}
	return res.LastInsertId()
}

// RecentRuns returns the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, date, started_at, finished_at, intervals, production, indicators, status, error
FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                    Run
			startedAt, finishedAt string
		)
		if err := rows.Scan(&r.ID, &r.Date, &startedAt, &finishedAt, &r.Intervals, &r.Production, &r.Indicators, &r.Status, &r.Error); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("store: started_at %q: %w", startedAt, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
			return nil, fmt.Errorf("store: finished_at %q: %w", finishedAt, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
