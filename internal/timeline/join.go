package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/plantpulse/plantpulse/internal/clean"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// annotation carries the operator-entered fields attached to a joined sample.
// Absent fields are "".
type annotation struct {
	reason     string
	equipment  string
	problem    string
	cause      string
	workOrder  string
	operatorID string
	date       string
	clock      string
	backup     string
}

// row is one telemetry sample after the annotation join, the unit the
// change-detection walk operates on.
type row struct {
	factory   int
	line      int
	machineID string
	shift     types.Shift
	status    types.Status
	date      string // registry date of the sample
	clock     string // registry time-of-day of the sample
	ts        time.Time
	ann       annotation
}

// annEvent is a time-stamped annotation, sorted per machine for the join.
type annEvent struct {
	ts  time.Time
	rec types.AnnotationRecord
}

// joinStreams matches each telemetry sample to the nearest annotation of the
// same machine within the tolerance window. Both sides are walked once per
// machine (two-pointer merge); unmatched samples carry an empty annotation.
// Line and factory are backfilled from the machine→line mapping the
// annotation stream provides.
func joinStreams(tel []types.TelemetryRecord, ann []types.AnnotationRecord, tolerance time.Duration) []row {
	byMachine := make(map[string][]annEvent, 16)
	machineLine := make(map[string]int, 16)
	machineFactory := make(map[string]int, 16)
	for _, a := range ann {
		ts, err := clean.Timestamp(a.Date, a.Time)
		if err != nil {
			continue
		}
		byMachine[a.MachineID] = append(byMachine[a.MachineID], annEvent{ts: ts, rec: a})
		machineLine[a.MachineID] = a.Line
		machineFactory[a.MachineID] = a.Factory
	}
	for _, evs := range byMachine {
		sort.Slice(evs, func(i, j int) bool { return evs[i].ts.Before(evs[j].ts) })
	}

	// The nearest-neighbor walk advances a per-machine cursor, which needs
	// the telemetry side in time order. Normalized date/time strings sort
	// chronologically.
	tel = append([]types.TelemetryRecord(nil), tel...)
	sort.SliceStable(tel, func(i, j int) bool {
		if tel[i].Date != tel[j].Date {
			return tel[i].Date < tel[j].Date
		}
		return tel[i].Time < tel[j].Time
	})

	rows := make([]row, 0, len(tel))
	cursor := make(map[string]int, len(byMachine))
	for _, t := range tel {
		ts, err := clean.Timestamp(t.Date, t.Time)
		if err != nil {
			continue
		}

		r := row{
			factory:   t.Factory,
			line:      t.Line,
			machineID: t.MachineID,
			shift:     t.Shift,
			status:    normalizeStatus(t.Status),
			date:      t.Date,
			clock:     t.Time,
			ts:        ts,
		}
		if r.line == 0 {
			r.line = machineLine[t.MachineID]
			r.factory = machineFactory[t.MachineID]
		}

		if evs := byMachine[t.MachineID]; len(evs) > 0 {
			i := cursor[t.MachineID]
			for i+1 < len(evs) && absDur(evs[i+1].ts.Sub(ts)) <= absDur(evs[i].ts.Sub(ts)) {
				i++
			}
			cursor[t.MachineID] = i
			if absDur(evs[i].ts.Sub(ts)) <= tolerance {
				a := evs[i].rec
				r.ann = annotation{
					reason:     a.Reason,
					equipment:  a.Equipment,
					problem:    a.Problem,
					cause:      a.Cause,
					workOrder:  a.WorkOrder,
					operatorID: a.OperatorID,
					date:       a.Date,
					clock:      a.Time,
					backup:     a.Backup,
				}
			}
		}
		rows = append(rows, r)
	}

	// The change-detection walk expects (line, timestamp) order, matching how
	// the final tables are keyed. Machine id breaks ties for determinism.
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].line != rows[j].line {
			return rows[i].line < rows[j].line
		}
		if !rows[i].ts.Equal(rows[j].ts) {
			return rows[i].ts.Before(rows[j].ts)
		}
		return rows[i].machineID < rows[j].machineID
	})
	return rows
}

// normalizeStatus maps the raw telemetry running flag onto the two-value
// status domain: "true" means running, everything else is stopped.
func normalizeStatus(raw string) types.Status {
	if strings.EqualFold(raw, "true") {
		return types.StatusRunning
	}
	return types.StatusStopped
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
