package config

import (
	"fmt"
	"time"

	"github.com/plantpulse/plantpulse/pkg/types"
)

// Rules is the immutable rule table set consumed by the analysis engines.
// Every knob the reconciliation and indicator logic depends on lives here so
// tests can substitute alternate tables without touching engine internals.
type Rules struct {
	// JoinTolerance is the maximum timestamp distance accepted when matching
	// a telemetry sample to an operator annotation (default 2m).
	JoinTolerance time.Duration `yaml:"join_tolerance"`

	// MicroStopMinutes is the maximum duration of a "running" interval that
	// is reclassified as noise when sandwiched inside the same shift.
	MicroStopMinutes int `yaml:"micro_stop_minutes"`

	// ShiftMinutes is the nominal length of one shift.
	ShiftMinutes int `yaml:"shift_minutes"`

	// FullShiftSnapMinutes is the threshold above which a duration snaps to
	// a full shift.
	FullShiftSnapMinutes int `yaml:"full_shift_snap_minutes"`

	// FactoryMin/FactoryMax bound the valid factory id range; intervals
	// resolving outside it are discarded.
	FactoryMin int `yaml:"factory_min"`
	FactoryMax int `yaml:"factory_max"`

	// FactoryOneMaxLine is the highest line number belonging to factory 1;
	// higher lines map to factory 2.
	FactoryOneMaxLine int `yaml:"factory_one_max_line"`

	// ShiftEnds maps each shift to its nominal end-of-shift clock time
	// ("HH:MM"). The evening shift's boundary rolls to the next calendar day.
	ShiftEnds map[types.Shift]string `yaml:"shift_ends"`

	// ScheduledStopReason is the reason marking a planned stoppage. A short
	// "running" blip directly after one is a genuine restart, not noise.
	ScheduledStopReason string `yaml:"scheduled_stop_reason"`

	// FullShiftSnapReasons are the reasons whose over-length intervals snap
	// to a full shift.
	FullShiftSnapReasons []string `yaml:"full_shift_snap_reasons"`

	// BackupReason is the only reason that may carry a backup flag.
	BackupReason string `yaml:"backup_reason"`

	// FullDayCauses flag a whole (date, shift, line) as a scheduled
	// non-production day when an interval with one of these causes spans the
	// full shift.
	FullDayCauses []string `yaml:"full_day_causes"`

	// Discounts maps, per indicator kind, a reason/problem/cause substring
	// to the fixed minutes credited back.
	Discounts map[types.IndicatorKind]map[string]int `yaml:"discounts"`

	// Exemptions lists, per indicator kind, the reasons/problems/causes that
	// are fully exempt from penalizing that indicator. For the repair kind
	// the list is inverted: only matching rows are kept.
	Exemptions map[types.IndicatorKind][]string `yaml:"exemptions"`

	// SensorDeviation is the relative cycle/sensor deviation under which the
	// sensor-based produced count is trusted (default 0.05).
	SensorDeviation float64 `yaml:"sensor_deviation"`

	// MinExpectedMinutes is the expected production time below which the
	// efficiency indicator is undefined.
	MinExpectedMinutes int `yaml:"min_expected_minutes"`

	// CyclesPerMinute and BulkCyclesPerMinute are the expected unit outputs
	// per minute per lane for standard and bulk products.
	CyclesPerMinute     float64 `yaml:"cycles_per_minute"`
	BulkCyclesPerMinute float64 `yaml:"bulk_cycles_per_minute"`

	// Lanes is the packing-lane multiplier applied to the per-minute rates.
	Lanes int `yaml:"lanes"`

	// BulkMarker marks bulk items by substring match on the product name.
	BulkMarker string `yaml:"bulk_marker"`
}

// DefaultRules returns the production rule tables.
func DefaultRules() Rules {
	return Rules{
		JoinTolerance:        2 * time.Minute,
		MicroStopMinutes:     5,
		ShiftMinutes:         480,
		FullShiftSnapMinutes: 478,
		FactoryMin:           1,
		FactoryMax:           14,
		FactoryOneMaxLine:    9,
		ShiftEnds: map[types.Shift]string{
			types.ShiftNight:   "08:01",
			types.ShiftMorning: "16:01",
			types.ShiftEvening: "00:01",
		},
		ScheduledStopReason:  "Scheduled Stop",
		FullShiftSnapReasons: []string{"Scheduled Stop", "Cleaning"},
		BackupReason:         "Exit for Backup",
		FullDayCauses:        []string{"No Production", "Backup"},
		Discounts: map[types.IndicatorKind]map[string]int{
			types.KindEfficiency: {
				"Flavor Change":  15,
				"Product Change": 35,
				"Meal":           60,
				"Coffee Break":   10,
				"Training":       60,
			},
			types.KindPerformance: {
				"Flavor Change":  15,
				"Product Change": 35,
				"Meal":           60,
				"Coffee Break":   10,
				"Training":       60,
			},
			types.KindRepair: {
				"Product Change": 35,
			},
		},
		Exemptions: map[types.IndicatorKind][]string{
			types.KindEfficiency: {"No Production", "Backup"},
			types.KindPerformance: {
				"No Production",
				"Backup",
				"Factory Stop Cleaning",
				"Contamination Risk",
				"Quality Parameters",
				"Maintenance",
			},
			types.KindRepair: {"Maintenance", "Product Change"},
		},
		SensorDeviation:      0.05,
		MinExpectedMinutes:   10,
		CyclesPerMinute:      11.2,
		BulkCyclesPerMinute:  7,
		Lanes:                2,
		BulkMarker:           "BOL ",
	}
}

// ShiftFor returns the shift band for an hour of day (three 8-hour bands).
func ShiftFor(hour int) types.Shift {
	switch hour / 8 {
	case 0:
		return types.ShiftNight
	case 1:
		return types.ShiftMorning
	default:
		return types.ShiftEvening
	}
}

// ShiftStartHour returns the clock hour a shift nominally starts at.
func ShiftStartHour(s types.Shift) int {
	switch s {
	case types.ShiftNight:
		return 0
	case types.ShiftMorning:
		return 8
	default:
		return 16
	}
}

// FactoryFor derives the factory id from a line number.
func (r Rules) FactoryFor(line int) int {
	if line >= 1 && line <= r.FactoryOneMaxLine {
		return 1
	}
	return 2
}

// ShiftEnd parses the nominal end-of-shift clock time for s.
// The returned values are hour and minute of day.
func (r Rules) ShiftEnd(s types.Shift) (hour, minute int, err error) {
	raw, ok := r.ShiftEnds[s]
	if !ok {
		return 0, 0, fmt.Errorf("rules: no shift end configured for %q", s)
	}
	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("rules: shift end %q for %q: %w", raw, s, err)
	}
	return hour, minute, nil
}

func (r Rules) validate() error {
	if r.JoinTolerance <= 0 {
		return fmt.Errorf("rules.join_tolerance must be positive")
	}
	if r.ShiftMinutes <= 0 {
		return fmt.Errorf("rules.shift_minutes must be positive")
	}
	if r.FullShiftSnapMinutes <= 0 || r.FullShiftSnapMinutes > r.ShiftMinutes {
		return fmt.Errorf("rules.full_shift_snap_minutes %d must be in (0, %d]", r.FullShiftSnapMinutes, r.ShiftMinutes)
	}
	if r.FactoryMin > r.FactoryMax {
		return fmt.Errorf("rules.factory_min %d exceeds factory_max %d", r.FactoryMin, r.FactoryMax)
	}
	for _, s := range []types.Shift{types.ShiftNight, types.ShiftMorning, types.ShiftEvening} {
		if _, _, err := r.ShiftEnd(s); err != nil {
			return err
		}
	}
	if r.SensorDeviation <= 0 || r.SensorDeviation >= 1 {
		return fmt.Errorf("rules.sensor_deviation %v must be in (0, 1)", r.SensorDeviation)
	}
	if r.Lanes <= 0 {
		return fmt.Errorf("rules.lanes must be positive")
	}
	return nil
}
