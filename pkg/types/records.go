package types

import "time"

// Shift identifies one of the three fixed 8-hour production windows per day.
type Shift string

const (
	ShiftNight   Shift = "night"   // 00:00–07:59
	ShiftMorning Shift = "morning" // 08:00–15:59
	ShiftEvening Shift = "evening" // 16:00–23:59
)

// Status is the resolved two-value machine state.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// IndicatorKind selects which productivity indicator to compute.
type IndicatorKind string

const (
	KindEfficiency  IndicatorKind = "efficiency"
	KindPerformance IndicatorKind = "performance"
	KindRepair      IndicatorKind = "repair"
)

// Kinds lists every indicator kind in computation order.
var Kinds = []IndicatorKind{KindEfficiency, KindPerformance, KindRepair}

// TelemetryRecord is one periodic sample reported by a machine PLC.
// Status carries the raw running flag as reported ("true" when running);
// normalization to Status happens in the reconciler.
type TelemetryRecord struct {
	MachineID     string `json:"machine_id"`
	Line          int    `json:"line,omitempty"`
	Factory       int    `json:"factory,omitempty"`
	Status        string `json:"status"`
	CycleCount    int    `json:"cycle_count"`
	ProducedCount int    `json:"produced_count"`
	Shift         Shift  `json:"shift"`
	Date          string `json:"date"` // YYYY-MM-DD
	Time          string `json:"time"` // HH:MM:SS, possibly with sub-second suffix
}

// AnnotationRecord is one operator-entered stoppage annotation from the
// touch panel. Absent string fields are "".
type AnnotationRecord struct {
	Line       int    `json:"line"`
	Factory    int    `json:"factory,omitempty"`
	MachineID  string `json:"machine_id"`
	Reason     string `json:"reason"`
	Equipment  string `json:"equipment"`
	Problem    string `json:"problem"`
	Cause      string `json:"cause"`
	WorkOrder  string `json:"work_order"`
	OperatorID string `json:"operator_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Backup     string `json:"backup_flag"`
}

// StateInterval is one maximal contiguous span of unchanged machine state.
// Intervals for a machine are contiguous and non-overlapping; Minutes is in
// [0, 480]. Date/Time are the interval start's registry date and time-of-day
// and form the upsert key together with MachineID.
type StateInterval struct {
	Factory        int       `json:"factory"`
	Line           int       `json:"line"`
	MachineID      string    `json:"machine_id"`
	Shift          Shift     `json:"shift"`
	Status         Status    `json:"status"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Start          time.Time `json:"start_timestamp"`
	End            time.Time `json:"end_timestamp"`
	Minutes        int       `json:"duration_minutes"`
	Reason         string    `json:"reason,omitempty"`
	Equipment      string    `json:"equipment,omitempty"`
	Problem        string    `json:"problem,omitempty"`
	Cause          string    `json:"cause,omitempty"`
	WorkOrder      string    `json:"work_order,omitempty"`
	OperatorID     string    `json:"operator_id,omitempty"`
	AnnotationDate string    `json:"annotation_date,omitempty"`
	AnnotationTime string    `json:"annotation_time,omitempty"`
	Backup         string    `json:"backup_flag,omitempty"`
}

// ProductionRow is one per-shift production report as ingested.
type ProductionRow struct {
	Line           int    `json:"line"`
	MachineID      string `json:"machine_id"`
	Shift          Shift  `json:"shift"`
	Date           string `json:"date"`
	Product        string `json:"product"`
	TotalCycles    int    `json:"total_cycles"`
	SensorProduced int    `json:"sensor_produced"`
}

// QualityRecord is one timestamped quality event (tray and waste counts).
type QualityRecord struct {
	Line              int     `json:"line"`
	MachineID         string  `json:"machine_id"`
	Date              string  `json:"date"`
	Time              string  `json:"time"`
	EmptyTrays        float64 `json:"empty_trays"`
	ReworkTrays       float64 `json:"rework_trays"`
	DiscardBread      float64 `json:"discard_bread"`
	DiscardBreadPaste float64 `json:"discard_bread_paste"`
	DiscardPaste      float64 `json:"discard_paste"`
}

// ProductionRecord is the merged per-shift production + quality row.
// TotalProduced is the reconciled produced count (sensor-based when the
// cycle/sensor deviation is under the configured threshold, cycle-based
// otherwise).
type ProductionRecord struct {
	Line              int     `json:"line"`
	MachineID         string  `json:"machine_id"`
	Shift             Shift   `json:"shift"`
	Date              string  `json:"date"`
	Product           string  `json:"product"`
	TotalCycles       int     `json:"total_cycles"`
	SensorProduced    int     `json:"sensor_produced"`
	EmptyTrays        int     `json:"empty_trays"`
	ReworkTrays       int     `json:"rework_trays"`
	TotalProduced     int     `json:"total_produced"`
	DiscardBread      float64 `json:"discard_bread"`
	DiscardBreadPaste float64 `json:"discard_bread_paste"`
	DiscardPaste      float64 `json:"discard_paste"`
}

// IndicatorRecord is one per-machine, per-shift indicator row.
// Value is math.NaN() when the indicator is not meaningfully computable;
// the store and the API render that as NULL. TotalProduced and
// ExpectedProduction are populated for the efficiency kind only.
type IndicatorRecord struct {
	Kind               IndicatorKind `json:"kind"`
	Factory            int           `json:"factory"`
	Line               int           `json:"line"`
	MachineID          string        `json:"machine_id"`
	Shift              Shift         `json:"shift"`
	Date               string        `json:"date"`
	Minutes            int           `json:"time_total"`
	Discount           int           `json:"discount_time"`
	Surplus            int           `json:"surplus_time"`
	ExpectedMinutes    int           `json:"expected_time"`
	TotalProduced      int           `json:"total_produced,omitempty"`
	ExpectedProduction int           `json:"expected_production,omitempty"`
	Value              float64       `json:"indicator_value"`
}
