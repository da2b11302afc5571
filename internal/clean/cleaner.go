package clean

import (
	"fmt"
	"strings"
	"time"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// Cleaner applies the raw-row normalization policy.
type Cleaner struct {
	rules config.Rules
}

// New returns a Cleaner using the given rule tables.
func New(rules config.Rules) *Cleaner {
	return &Cleaner{rules: rules}
}

// Telemetry cleans periodic machine samples. Rows missing machine id, date
// or time, or whose timestamp does not parse, are dropped. Line is left as
// reported (0 means "not known at sampling time" and is backfilled during
// reconciliation).
func (c *Cleaner) Telemetry(rows []types.TelemetryRecord) []types.TelemetryRecord {
	seen := make(map[types.TelemetryRecord]bool, len(rows))
	out := make([]types.TelemetryRecord, 0, len(rows))
	for _, r := range rows {
		if seen[r] {
			continue
		}
		seen[r] = true

		if r.MachineID == "" || r.Date == "" || r.Time == "" {
			continue
		}
		clock, ok := NormalizeClock(r.Time)
		if !ok || !validDate(r.Date) {
			continue
		}
		r.Time = clock
		if r.Line > 0 {
			r.Factory = c.rules.FactoryFor(r.Line)
		}
		out = append(out, r)
	}
	return out
}

// Annotations cleans operator stoppage annotations. Beyond the telemetry
// policy, rows with line 0 are dropped, factory is derived from the line,
// the operator id is zero-padded to six digits with the all-zero sentinel
// treated as absent, and a work-order of "0" is treated as absent.
func (c *Cleaner) Annotations(rows []types.AnnotationRecord) []types.AnnotationRecord {
	seen := make(map[types.AnnotationRecord]bool, len(rows))
	out := make([]types.AnnotationRecord, 0, len(rows))
	for _, r := range rows {
		if seen[r] {
			continue
		}
		seen[r] = true

		if r.MachineID == "" || r.Date == "" || r.Time == "" {
			continue
		}
		clock, ok := NormalizeClock(r.Time)
		if !ok || !validDate(r.Date) {
			continue
		}
		r.Time = clock
		if r.Line == 0 {
			continue
		}
		r.Factory = c.rules.FactoryFor(r.Line)

		r.OperatorID = padOperator(r.OperatorID)
		if r.WorkOrder == "0" {
			r.WorkOrder = ""
		}
		out = append(out, r)
	}
	return out
}

// Quality cleans timestamped quality events with the basic policy only.
func (c *Cleaner) Quality(rows []types.QualityRecord) []types.QualityRecord {
	seen := make(map[types.QualityRecord]bool, len(rows))
	out := make([]types.QualityRecord, 0, len(rows))
	for _, r := range rows {
		if seen[r] {
			continue
		}
		seen[r] = true

		if r.MachineID == "" || r.Date == "" || r.Time == "" {
			continue
		}
		clock, ok := NormalizeClock(r.Time)
		if !ok || !validDate(r.Date) {
			continue
		}
		r.Time = clock
		if r.Line == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// NormalizeClock strips any sub-second suffix from a time-of-day value and
// reports whether the remainder parses as HH:MM:SS.
func NormalizeClock(raw string) (string, bool) {
	s := raw
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return "", false
	}
	return t.Format(clockLayout), true
}

// Timestamp combines a date and a normalized time-of-day into one time.Time.
func Timestamp(date, clock string) (time.Time, error) {
	ts, err := time.Parse(dateLayout+" "+clockLayout, date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("clean: timestamp %q %q: %w", date, clock, err)
	}
	return ts, nil
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// padOperator zero-pads an operator id to six digits.
// Empty and all-zero ids are absent.
func padOperator(id string) string {
	if id == "" {
		return ""
	}
	for len(id) < 6 {
		id = "0" + id
	}
	if strings.Trim(id, "0") == "" {
		return ""
	}
	return id
}
