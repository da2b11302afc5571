package indicator

import (
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// Engine derives indicator rows from stoppage intervals and production
// records. It holds no state across invocations; re-running with the same
// inputs yields the same output.
type Engine struct {
	rules config.Rules

	// now is injectable for tests; it drives the "shift still in
	// progress today" branch of the expected-time computation.
	now func() time.Time
}

func New(rules config.Rules) *Engine {
	return &Engine{rules: rules, now: time.Now}
}

type groupKey struct {
	machineID string
	line      int
	date      string
	shift     types.Shift
}

type shiftKey struct {
	date  string
	shift types.Shift
	line  int
}

type stopAgg struct {
	minutes  int
	discount int
	surplus  int
}

// Compute builds one indicator row per production record for the given
// kind. Production is the join base: a machine with stoppages but no
// production report for the shift yields no row.
func (e *Engine) Compute(intervals []types.StateInterval, production []types.ProductionRecord, kind types.IndicatorKind) []types.IndicatorRecord {
	if len(production) == 0 {
		return nil
	}

	var stops []types.StateInterval
	for _, iv := range intervals {
		if iv.Status == types.StatusStopped {
			stops = append(stops, iv)
		}
	}

	// A full-shift "no production"/"backup" stop marks the whole
	// (date, shift, line) as a scheduled non-production day for the
	// performance and repair kinds.
	scheduled := map[shiftKey]bool{}
	if kind != types.KindEfficiency {
		for _, iv := range stops {
			if slices.Contains(e.rules.FullDayCauses, iv.Cause) && iv.Minutes >= e.rules.FullShiftSnapMinutes {
				scheduled[shiftKey{date: iv.Date, shift: iv.Shift, line: iv.Line}] = true
			}
		}
	}

	aggs := map[groupKey]*stopAgg{}
	for _, iv := range stops {
		exempt := e.exempt(iv, kind)

		var discount int
		switch kind {
		case types.KindEfficiency:
			if exempt {
				discount = iv.Minutes
			}
		case types.KindPerformance:
			if exempt {
				continue
			}
		case types.KindRepair:
			// Inverted population: repair measures time attributable
			// to maintenance-type causes, so only matching rows count.
			if !exempt {
				continue
			}
		}

		if v, ok := e.matchDiscount(iv, kind); ok {
			discount = v
		}
		if discount > iv.Minutes {
			discount = iv.Minutes
		}
		surplus := iv.Minutes - discount
		if surplus < 0 {
			surplus = 0
		}

		key := groupKey{machineID: iv.MachineID, line: iv.Line, date: iv.Date, shift: iv.Shift}
		agg, ok := aggs[key]
		if !ok {
			agg = &stopAgg{}
			aggs[key] = agg
		}
		agg.minutes += iv.Minutes
		agg.discount += discount
		agg.surplus += surplus
	}

	out := make([]types.IndicatorRecord, 0, len(production))
	for _, p := range production {
		var agg stopAgg
		if a, ok := aggs[groupKey{machineID: p.MachineID, line: p.Line, date: p.Date, shift: p.Shift}]; ok {
			agg = *a
		}

		rec := types.IndicatorRecord{
			Kind:            kind,
			Factory:         e.rules.FactoryFor(p.Line),
			Line:            p.Line,
			MachineID:       p.MachineID,
			Shift:           p.Shift,
			Date:            p.Date,
			Minutes:         agg.minutes,
			Discount:        agg.discount,
			Surplus:         agg.surplus,
			ExpectedMinutes: e.expectedMinutes(p.Date, p.Shift, agg.discount),
		}

		if kind == types.KindEfficiency {
			e.applyEfficiency(&rec, p)
		} else {
			e.applyRatio(&rec, scheduled)
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		if out[i].Shift != out[j].Shift {
			return shiftOrder(out[i].Shift) < shiftOrder(out[j].Shift)
		}
		return out[i].MachineID < out[j].MachineID
	})
	return out
}

// ComputeAll runs Compute for every kind in order.
func (e *Engine) ComputeAll(intervals []types.StateInterval, production []types.ProductionRecord) map[types.IndicatorKind][]types.IndicatorRecord {
	out := make(map[types.IndicatorKind][]types.IndicatorRecord, len(types.Kinds))
	for _, kind := range types.Kinds {
		out[kind] = e.Compute(intervals, production, kind)
	}
	return out
}

// exempt reports whether any of the interval's reason, problem, or cause
// appears verbatim in the kind's exemption list.
func (e *Engine) exempt(iv types.StateInterval, kind types.IndicatorKind) bool {
	for _, v := range e.rules.Exemptions[kind] {
		if iv.Reason == v || iv.Problem == v || iv.Cause == v {
			return true
		}
	}
	return false
}

// matchDiscount looks the interval up in the kind's discount table by
// case-insensitive substring on reason, problem, and cause. When several
// entries match, the lexically last key wins, so the result is stable.
func (e *Engine) matchDiscount(iv types.StateInterval, kind types.IndicatorKind) (int, bool) {
	table := e.rules.Discounts[kind]
	if len(table) == 0 {
		return 0, false
	}
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		value int
		found bool
	)
	for _, k := range keys {
		needle := strings.ToLower(k)
		for _, field := range []string{iv.Reason, iv.Problem, iv.Cause} {
			if field != "" && strings.Contains(strings.ToLower(field), needle) {
				value = table[k]
				found = true
				break
			}
		}
	}
	return value, found
}

// expectedMinutes is the production time available after discounts. For a
// shift still in progress today it is the elapsed time since the shift's
// nominal start; every other (date, shift) gets the full nominal shift.
// Never below one minute.
func (e *Engine) expectedMinutes(date string, shift types.Shift, discount int) int {
	now := e.now()
	expected := e.rules.ShiftMinutes - discount
	if date == now.Format("2006-01-02") && config.ShiftFor(now.Hour()) == shift {
		start := time.Date(now.Year(), now.Month(), now.Day(), config.ShiftStartHour(shift), 0, 0, 0, now.Location())
		expected = int(math.Floor(now.Sub(start).Minutes() - float64(discount)))
	}
	if expected < 1 {
		expected = 1
	}
	return expected
}

func (e *Engine) applyEfficiency(rec *types.IndicatorRecord, p types.ProductionRecord) {
	rate := e.rules.CyclesPerMinute
	if strings.Contains(p.Product, e.rules.BulkMarker) {
		rate = e.rules.BulkCyclesPerMinute
	}
	rec.TotalProduced = p.TotalProduced
	rec.ExpectedProduction = int(math.Round(float64(rec.ExpectedMinutes) * rate * float64(e.rules.Lanes)))

	value := sanitizeRatio(float64(rec.TotalProduced) / float64(rec.ExpectedProduction))
	if rec.ExpectedProduction == 0 && value == 0 {
		// Nothing expected and nothing made is "not applicable", not
		// "perfectly inefficient".
		value = math.NaN()
	}
	if value < 0 {
		value = 0
	}
	if rec.ExpectedMinutes < e.rules.MinExpectedMinutes {
		value = math.NaN()
		rec.ExpectedProduction = 0
		rec.ExpectedMinutes = 0
	}
	rec.Value = round3(value)
}

func (e *Engine) applyRatio(rec *types.IndicatorRecord, scheduled map[shiftKey]bool) {
	value := sanitizeRatio(float64(rec.Surplus) / float64(rec.ExpectedMinutes))
	if scheduled[shiftKey{date: rec.Date, shift: rec.Shift, line: rec.Line}] {
		value = math.NaN()
		rec.ExpectedMinutes = 0
	}
	rec.Value = round3(value)
}

// sanitizeRatio maps infinities and NaN from a raw division to zero.
func sanitizeRatio(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func round3(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	return math.Round(v*1000) / 1000
}

func shiftOrder(s types.Shift) int {
	switch s {
	case types.ShiftNight:
		return 0
	case types.ShiftMorning:
		return 1
	default:
		return 2
	}
}
