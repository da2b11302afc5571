package timeline

import (
	"testing"
	"time"

	"github.com/plantpulse/plantpulse/internal/config"
	"github.com/plantpulse/plantpulse/pkg/types"
)

// fixedNow is well after the test data's date, so no interval is treated as
// part of today's still-active shift.
var fixedNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func newReconciler() *Reconciler {
	r := New(config.DefaultRules())
	r.now = func() time.Time { return fixedNow }
	return r
}

func tel(machine string, line int, shift types.Shift, clock, status string) types.TelemetryRecord {
	return types.TelemetryRecord{
		MachineID: machine,
		Line:      line,
		Status:    status,
		Shift:     shift,
		Date:      "2026-08-20",
		Time:      clock,
	}
}

func ann(machine string, line int, clock, reason, cause string) types.AnnotationRecord {
	return types.AnnotationRecord{
		MachineID: machine,
		Line:      line,
		Reason:    reason,
		Cause:     cause,
		Date:      "2026-08-20",
		Time:      clock,
	}
}

func TestReconcile_BasicGrouping(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "08:05:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "08:10:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:15:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:20:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "08:25:00", "true"),
	}
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "08:11:00", "Maintenance", "Motor Failure"),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	if len(got) != 3 {
		t.Fatalf("got %d intervals, want 3", len(got))
	}

	if got[0].Status != types.StatusRunning || got[0].Minutes != 10 {
		t.Errorf("interval 0: %s %d min, want running 10", got[0].Status, got[0].Minutes)
	}
	if got[1].Status != types.StatusStopped || got[1].Minutes != 10 {
		t.Errorf("interval 1: %s %d min, want stopped 10", got[1].Status, got[1].Minutes)
	}
	if got[1].Reason != "Maintenance" || got[1].Cause != "Motor Failure" {
		t.Errorf("interval 1 annotation: reason %q cause %q", got[1].Reason, got[1].Cause)
	}
	// Last interval gets its end forced onto the shift boundary (16:01).
	if got[2].Status != types.StatusRunning || got[2].Minutes != 461 {
		t.Errorf("interval 2: %s %d min, want running 461", got[2].Status, got[2].Minutes)
	}

	// Contiguity: end[i] == start[i+1] for the same machine.
	for i := 0; i < len(got)-1; i++ {
		if !got[i].End.Equal(got[i+1].Start) {
			t.Errorf("gap between interval %d and %d: %v != %v", i, i+1, got[i].End, got[i+1].Start)
		}
	}
}

func TestReconcile_RunningCarriesNoStoppageMetadata(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "09:00:00", "false"),
	}
	// The annotation lands within tolerance of the running sample.
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "08:01:00", "Maintenance", "Motor Failure"),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	for _, iv := range got {
		if iv.Status != types.StatusRunning {
			continue
		}
		if iv.Reason != "" || iv.Equipment != "" || iv.Problem != "" || iv.Cause != "" || iv.OperatorID != "" {
			t.Errorf("running interval carries stoppage metadata: %+v", iv)
		}
	}
}

func TestReconcile_UnmatchedStoppage(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "10:00:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "10:30:00", "true"),
	}
	// Annotation far outside the tolerance window.
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "14:00:00", "Maintenance", ""),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	if len(got) != 2 {
		t.Fatalf("got %d intervals, want 2", len(got))
	}
	if got[0].Status != types.StatusStopped {
		t.Fatalf("interval 0 status: %s", got[0].Status)
	}
	// Absence of an annotation is a valid unexplained stoppage, not an error.
	if got[0].Reason != "" {
		t.Errorf("unexplained stoppage got reason %q", got[0].Reason)
	}
}

func TestReconcile_ReasonChangeSplitsInterval(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:30:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "09:00:00", "true"),
	}
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "08:00:30", "Maintenance", "Motor Failure"),
		ann("MAQ101", 1, "08:30:30", "Product Change", ""),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	if len(got) != 3 {
		t.Fatalf("got %d intervals, want 3 (stop split by new reason + running)", len(got))
	}
	if got[0].Reason != "Maintenance" || got[1].Reason != "Product Change" {
		t.Errorf("reasons: %q, %q", got[0].Reason, got[1].Reason)
	}
	if got[0].Minutes != 30 || got[1].Minutes != 30 {
		t.Errorf("minutes: %d, %d, want 30, 30", got[0].Minutes, got[1].Minutes)
	}
}

func TestReconcile_MicroBlipReclassified(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:10:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "08:13:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:20:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "08:40:00", "true"),
	}
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "08:00:30", "Maintenance", "Motor Failure"),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	if len(got) != 2 {
		t.Fatalf("got %d intervals, want 2 (blip folded into the stoppage)", len(got))
	}
	// 10 min stop + 3 min blip + 7 min unannotated stop, all one group.
	if got[0].Status != types.StatusStopped || got[0].Minutes != 20 {
		t.Errorf("interval 0: %s %d min, want stopped 20", got[0].Status, got[0].Minutes)
	}
	if got[0].Reason != "Maintenance" {
		t.Errorf("merged stoppage reason: %q", got[0].Reason)
	}
	if got[1].Status != types.StatusRunning {
		t.Errorf("interval 1 status: %s", got[1].Status)
	}
}

func TestReconcile_BlipAfterScheduledStopKept(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:10:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "08:13:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:20:00", "true"),
	}
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "08:00:30", "Scheduled Stop", ""),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	// A short restart right after a scheduled stop is genuine, not noise.
	if len(got) != 4 {
		t.Fatalf("got %d intervals, want 4", len(got))
	}
	if got[1].Status != types.StatusRunning || got[1].Minutes != 3 {
		t.Errorf("interval 1: %s %d min, want running 3", got[1].Status, got[1].Minutes)
	}
}

func TestReconcile_MachineSwapSplitsTimeline(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "false"),
		tel("MAQ102", 1, types.ShiftMorning, "09:00:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "10:00:00", "false"),
	}

	got := newReconciler().Reconcile(nil, telemetry)
	if len(got) != 3 {
		t.Fatalf("got %d intervals, want 3", len(got))
	}
	// The swapped-out machine's interval ends where the replacement starts,
	// and the replacement runs until the original returns.
	if got[0].MachineID != "MAQ101" || got[0].Minutes != 60 {
		t.Errorf("interval 0: %s %d min, want MAQ101 60", got[0].MachineID, got[0].Minutes)
	}
	if got[1].MachineID != "MAQ102" || got[1].Minutes != 60 {
		t.Errorf("interval 1: %s %d min, want MAQ102 60", got[1].MachineID, got[1].Minutes)
	}
	for i := 0; i < len(got)-1; i++ {
		if !got[i].End.Equal(got[i+1].Start) {
			t.Errorf("interval %d end %v != interval %d start %v", i, got[i].End, i+1, got[i+1].Start)
		}
	}
}

func TestReconcile_ShiftRollover(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftEvening, "23:55:00", "false"),
	}

	got := newReconciler().Reconcile(nil, telemetry)
	if len(got) != 1 {
		t.Fatalf("got %d intervals, want 1", len(got))
	}
	wantEnd := time.Date(2026, 8, 21, 0, 1, 0, 0, time.UTC)
	if !got[0].End.Equal(wantEnd) {
		t.Errorf("end: got %v, want %v", got[0].End, wantEnd)
	}
	if got[0].Minutes != 6 {
		t.Errorf("minutes: got %d, want 6", got[0].Minutes)
	}
}

func TestReconcile_ScheduledStopSnapsToFullShift(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:01:30", "false"),
		tel("MAQ101", 1, types.ShiftEvening, "16:30:00", "false"),
	}
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "08:02:00", "Scheduled Stop", ""),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	if len(got) != 2 {
		t.Fatalf("got %d intervals, want 2", len(got))
	}
	// Shift change forces the end to 16:01; 479.5 min rounds to 480 via the
	// scheduled-stop snap.
	if got[0].Minutes != 480 {
		t.Errorf("minutes: got %d, want 480", got[0].Minutes)
	}
}

func TestReconcile_FactoryRangeFilter(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "true"),
		tel("MAQ999", 0, types.ShiftMorning, "08:00:00", "true"), // no line, no mapping
	}

	got := newReconciler().Reconcile(nil, telemetry)
	for _, iv := range got {
		if iv.MachineID == "MAQ999" {
			t.Errorf("interval with unresolved factory survived: %+v", iv)
		}
	}
}

func TestReconcile_LineBackfillFromAnnotations(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 0, types.ShiftMorning, "08:00:00", "false"),
	}
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 4, "08:00:30", "Meal", ""),
	}

	got := newReconciler().Reconcile(annotations, telemetry)
	if len(got) != 1 {
		t.Fatalf("got %d intervals, want 1", len(got))
	}
	if got[0].Line != 4 || got[0].Factory != 1 {
		t.Errorf("line/factory: got %d/%d, want 4/1", got[0].Line, got[0].Factory)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "true"),
		tel("MAQ101", 1, types.ShiftMorning, "08:10:00", "false"),
		tel("MAQ102", 2, types.ShiftMorning, "08:05:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "08:30:00", "true"),
	}
	annotations := []types.AnnotationRecord{
		ann("MAQ101", 1, "08:11:00", "Maintenance", "Motor Failure"),
		ann("MAQ102", 2, "08:06:00", "Meal", ""),
	}

	r := newReconciler()
	first := r.Reconcile(annotations, telemetry)
	second := r.Reconcile(annotations, telemetry)

	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("interval %d differs between runs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestReconcile_EmptyTelemetry(t *testing.T) {
	got := newReconciler().Reconcile([]types.AnnotationRecord{ann("MAQ101", 1, "08:00:00", "Meal", "")}, nil)
	if got != nil {
		t.Errorf("empty telemetry should yield no intervals, got %d", len(got))
	}
}

func TestReconcile_BackupFlagCleared(t *testing.T) {
	telemetry := []types.TelemetryRecord{
		tel("MAQ101", 1, types.ShiftMorning, "08:00:00", "false"),
		tel("MAQ101", 1, types.ShiftMorning, "09:00:00", "false"),
	}
	a1 := ann("MAQ101", 1, "08:00:30", "Maintenance", "")
	a1.Backup = "L5"
	got := newReconciler().Reconcile([]types.AnnotationRecord{a1}, telemetry)
	if len(got) == 0 {
		t.Fatal("no intervals")
	}
	if got[0].Backup != "" {
		t.Errorf("backup flag survived non-backup reason: %q", got[0].Backup)
	}
}
