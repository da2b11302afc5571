package production

import (
	"math"
	"sort"
	"strconv"

	"github.com/plantpulse/plantpulse/internal/clean"
	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// Merger joins quality aggregates onto production reports.
type Merger struct {
	rules   config.Rules
	cleaner *clean.Cleaner
}

// New returns a Merger using the given rule tables.
func New(rules config.Rules) *Merger {
	return &Merger{rules: rules, cleaner: clean.New(rules)}
}

// qualityKey groups quality events per production report row.
type qualityKey struct {
	line      int
	machineID string
	date      string
	shift     types.Shift
}

type qualityAgg struct {
	emptyTrays        float64
	reworkTrays       float64
	discardBread      float64
	discardBreadPaste float64
	discardPaste      float64
}

// Merge aggregates quality events per (line, machine, date, shift) and
// left-joins them onto the production rows; rows without quality events get
// zeroes. Count fields are truncated to integers on output.
func (m *Merger) Merge(prod []types.ProductionRow, qual []types.QualityRecord) []types.ProductionRecord {
	if len(prod) == 0 {
		return nil
	}

	aggs := make(map[qualityKey]*qualityAgg, len(qual))
	for _, q := range m.cleaner.Quality(qual) {
		hour, err := strconv.Atoi(q.Time[:2])
		if err != nil {
			continue
		}
		key := qualityKey{
			line:      q.Line,
			machineID: q.MachineID,
			date:      q.Date,
			shift:     config.ShiftFor(hour),
		}
		agg, ok := aggs[key]
		if !ok {
			agg = &qualityAgg{}
			aggs[key] = agg
		}
		agg.emptyTrays += q.EmptyTrays
		agg.reworkTrays += q.ReworkTrays
		agg.discardBread += q.DiscardBread
		agg.discardBreadPaste += q.DiscardBreadPaste
		agg.discardPaste += q.DiscardPaste
	}

	seen := make(map[types.ProductionRow]bool, len(prod))
	out := make([]types.ProductionRecord, 0, len(prod))
	for _, p := range prod {
		if seen[p] {
			continue
		}
		seen[p] = true

		var agg qualityAgg
		if a, ok := aggs[qualityKey{line: p.Line, machineID: p.MachineID, date: p.Date, shift: p.Shift}]; ok {
			agg = *a
		}

		empty := round3(agg.emptyTrays)
		rework := round3(agg.reworkTrays)

		rec := types.ProductionRecord{
			Line:              p.Line,
			MachineID:         p.MachineID,
			Shift:             p.Shift,
			Date:              p.Date,
			Product:           p.Product,
			TotalCycles:       p.TotalCycles,
			SensorProduced:    p.SensorProduced,
			EmptyTrays:        int(empty),
			ReworkTrays:       int(rework),
			TotalProduced:     m.reconcileProduced(p, empty, rework),
			DiscardBread:      round3(agg.discardBread),
			DiscardBreadPaste: round3(agg.discardBreadPaste),
			DiscardPaste:      round3(agg.discardPaste),
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

// reconcileProduced chooses between the sensor-derived and cycle-derived
// produced counts. The sensor is trusted only while the relative deviation
// between total cycles and the sensor count stays under the threshold.
func (m *Merger) reconcileProduced(p types.ProductionRow, empty, rework float64) int {
	cycleBased := float64(p.TotalCycles) - empty - rework
	sensorBased := float64(p.SensorProduced) - rework

	if p.TotalCycles != 0 {
		deviation := float64(p.TotalCycles-p.SensorProduced) / float64(p.TotalCycles)
		if deviation < m.rules.SensorDeviation {
			return int(sensorBased)
		}
	} else if p.SensorProduced > 0 {
		// Zero cycles against a positive sensor count means the cycle
		// counter never reported; the sensor is the only usable estimate.
		return int(sensorBased)
	}
	return int(cycleBased)
}

func round3(v float64) float64 {
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
