package timeline

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/plantpulse/plantpulse/internal/clean"
	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// Reconciler merges the two raw streams into state intervals.
//
// now is injectable so tests control the clock: the shift-boundary correction
// and the open-interval repair both depend on "today" and the currently
// active shift.
type Reconciler struct {
	rules   config.Rules
	cleaner *clean.Cleaner
	now     func() time.Time
}

// New returns a Reconciler using the given rule tables.
func New(rules config.Rules) *Reconciler {
	return &Reconciler{
		rules:   rules,
		cleaner: clean.New(rules),
		now:     time.Now,
	}
}

// interval is one grouped span during derivation. The embedded row holds the
// group's first sample (its timestamp is the interval start) and the group's
// filled annotation.
type interval struct {
	row
	end     time.Time
	minutes int
}

// Reconcile cleans both streams, joins them, and derives the adjusted
// interval table. An empty telemetry stream yields no intervals - that run
// is simply skipped, not an error.
func (r *Reconciler) Reconcile(annotations []types.AnnotationRecord, telemetry []types.TelemetryRecord) []types.StateInterval {
	ann := r.cleaner.Annotations(annotations)
	tel := r.cleaner.Telemetry(telemetry)
	if len(tel) == 0 {
		return nil
	}

	rows := joinStreams(tel, ann, r.rules.JoinTolerance)
	ivs := r.derive(rows)

	// Short "running" blips between two stoppages in the same shift are
	// sensor noise, not real recoveries. Their true duration is only known
	// after the first grouping pass, so reclassify and derive again: moving
	// a blip into the stopped state shifts group boundaries, which means
	// grouping, filling and durations must all be redone.
	for i := range ivs {
		if ivs[i].status != types.StatusRunning {
			continue
		}
		if ivs[i].minutes > r.rules.MicroStopMinutes {
			continue
		}
		if i+1 >= len(ivs) || ivs[i+1].shift != ivs[i].shift {
			continue
		}
		if i > 0 && ivs[i-1].ann.reason == r.rules.ScheduledStopReason {
			continue
		}
		ivs[i].status = types.StatusStopped
	}
	rerun := make([]row, len(ivs))
	for i, iv := range ivs {
		rerun[i] = iv.row
	}
	ivs = r.derive(rerun)

	return r.finalize(ivs)
}

// derive is one full grouping pass: change detection, group filling,
// reason-change splitting, aggregation, end-timestamp resolution,
// shift-boundary correction and duration computation. It runs twice per
// reconciliation - once over the joined samples and once over the
// reclassified intervals - and must stay a single function so the second
// pass is always consistent with the first.
func (r *Reconciler) derive(rows []row) []interval {
	if len(rows) == 0 {
		return nil
	}

	// A boundary wherever status, machine or shift differs from the
	// immediately preceding row.
	change := make([]bool, len(rows))
	for i := range rows {
		change[i] = i == 0 ||
			rows[i].status != rows[i-1].status ||
			rows[i].machineID != rows[i-1].machineID ||
			rows[i].shift != rows[i-1].shift
	}
	fillSegments(rows, change)

	// A new reason or cause on a non-null annotation starts a new interval
	// even though the status did not change. Detected on the filled values.
	for i := 1; i < len(rows); i++ {
		if rows[i].ann.reason == "" {
			continue
		}
		if rows[i].ann.reason != rows[i-1].ann.reason || rows[i].ann.cause != rows[i-1].ann.cause {
			change[i] = true
		}
	}

	// Aggregate to one interval per group, keeping the first row.
	var ivs []interval
	for i := range rows {
		if change[i] {
			ivs = append(ivs, interval{row: rows[i]})
		}
	}

	// End of each interval is the start of the same machine's next interval.
	// An interval that begins at a machine-identity boundary instead ends at
	// the very next interval's start, whichever machine that is: a machine
	// swapped out mid-shift must not absorb the replacement's period, and the
	// replacement runs until the original returns. A group with no successor
	// is left open here and repaired below.
	nextStart := make(map[string]time.Time, 8)
	for i := len(ivs) - 1; i >= 0; i-- {
		machineChanged := i == 0 || ivs[i].machineID != ivs[i-1].machineID
		if machineChanged {
			if i+1 < len(ivs) {
				ivs[i].end = ivs[i+1].ts
			}
		} else if ts, ok := nextStart[ivs[i].machineID]; ok {
			ivs[i].end = ts
		}
		nextStart[ivs[i].machineID] = ivs[i].ts
	}

	now := r.now()
	today := now.Format("2006-01-02")
	active := config.ShiftFor(now.Hour())

	for i := range ivs {
		iv := &ivs[i]

		// Shift-boundary correction: when the shift changes after this
		// interval (the batch ending counts as a change) and the interval is
		// not simply today's still-active shift, force the end onto the
		// nominal end-of-shift boundary so a sampling gap cannot make the
		// interval span into the next shift's data.
		shiftChanges := i == len(ivs)-1 || ivs[i+1].shift != iv.shift
		if shiftChanges && !(iv.date == today && iv.shift == active) {
			if end, ok := r.shiftBoundary(iv.ts, iv.shift); ok {
				iv.end = end
			}
		}

		// A genuine zero-length event, never left undefined.
		if iv.end.IsZero() {
			iv.end = iv.ts.Add(time.Minute)
		}

		iv.minutes = int(math.Round(iv.end.Sub(iv.ts).Minutes()))
		if iv.minutes > r.rules.FullShiftSnapMinutes && slices.Contains(r.rules.FullShiftSnapReasons, iv.ann.reason) {
			iv.minutes = r.rules.ShiftMinutes
		}
	}
	return ivs
}

// shiftBoundary returns the nominal end-of-shift timestamp for an interval
// starting at ts. The evening shift's boundary rolls to the next calendar day.
func (r *Reconciler) shiftBoundary(ts time.Time, shift types.Shift) (time.Time, bool) {
	h, m, err := r.rules.ShiftEnd(shift)
	if err != nil {
		return time.Time{}, false
	}
	end := time.Date(ts.Year(), ts.Month(), ts.Day(), h, m, 0, 0, ts.Location())
	if shift == types.ShiftEvening {
		end = end.AddDate(0, 0, 1)
	}
	return end, true
}

// finalize applies the closing clamps and invariants and materializes the
// exported interval rows.
func (r *Reconciler) finalize(ivs []interval) []types.StateInterval {
	nowTs := r.now().Round(time.Second)
	out := make([]types.StateInterval, 0, len(ivs))
	for _, iv := range ivs {
		if iv.factory < r.rules.FactoryMin || iv.factory > r.rules.FactoryMax {
			continue
		}
		if iv.minutes < 0 {
			iv.minutes = 0
		}
		if iv.minutes > r.rules.FullShiftSnapMinutes {
			iv.minutes = r.rules.ShiftMinutes
		}
		// An interval still open at "now" can carry an end before its start
		// once the shift correction moved it backwards.
		if iv.end.Before(iv.ts) {
			iv.end = nowTs
		}
		if iv.ann.reason != r.rules.BackupReason {
			iv.ann.backup = ""
		}
		// A running interval must carry no stoppage metadata.
		if iv.status == types.StatusRunning {
			iv.ann.reason = ""
			iv.ann.equipment = ""
			iv.ann.problem = ""
			iv.ann.cause = ""
			iv.ann.operatorID = ""
		}
		annDate, annClock := iv.ann.date, iv.ann.clock
		if annDate == "" {
			annDate = iv.date
		}
		if annClock == "" {
			annClock = iv.clock
		}
		out = append(out, types.StateInterval{
			Factory:        iv.factory,
			Line:           iv.line,
			MachineID:      iv.machineID,
			Shift:          iv.shift,
			Status:         iv.status,
			Date:           iv.date,
			Time:           iv.clock,
			Start:          iv.ts,
			End:            iv.end,
			Minutes:        iv.minutes,
			Reason:         iv.ann.reason,
			Equipment:      iv.ann.equipment,
			Problem:        iv.ann.problem,
			Cause:          iv.ann.cause,
			WorkOrder:      iv.ann.workOrder,
			OperatorID:     iv.ann.operatorID,
			AnnotationDate: annDate,
			AnnotationTime: annClock,
			Backup:         iv.ann.backup,
		})
	}
	return out
}

// annFields enumerates the annotation fields the group fill operates on.
var annFields = []func(a *annotation) *string{
	func(a *annotation) *string { return &a.reason },
	func(a *annotation) *string { return &a.equipment },
	func(a *annotation) *string { return &a.problem },
	func(a *annotation) *string { return &a.cause },
	func(a *annotation) *string { return &a.workOrder },
	func(a *annotation) *string { return &a.operatorID },
	func(a *annotation) *string { return &a.date },
	func(a *annotation) *string { return &a.clock },
	func(a *annotation) *string { return &a.backup },
}

// fillSegments forward- then backward-fills the annotation fields inside each
// group so every row carries the group's annotation. A row's own non-blank
// value is never overwritten; whitespace-only values collapse to absent
// before filling.
func fillSegments(rows []row, change []bool) {
	for s := 0; s < len(rows); {
		e := s + 1
		for e < len(rows) && !change[e] {
			e++
		}
		fillRange(rows[s:e])
		s = e
	}
}

func fillRange(seg []row) {
	for _, field := range annFields {
		for i := range seg {
			p := field(&seg[i].ann)
			if strings.TrimSpace(*p) == "" {
				*p = ""
			}
		}
		carry := ""
		for i := range seg {
			p := field(&seg[i].ann)
			if *p != "" {
				carry = *p
			} else {
				*p = carry
			}
		}
		carry = ""
		for i := len(seg) - 1; i >= 0; i-- {
			p := field(&seg[i].ann)
			if *p != "" {
				carry = *p
			} else {
				*p = carry
			}
		}
	}
}
