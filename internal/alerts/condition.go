package alerts

import (
	"math"
	"strconv"
	"strings"

	"github.com/plantpulse/plantpulse/pkg/types"
)

// evalCondition evaluates a rule condition string against one indicator row.
//
// Supported expressions (field operator value):
//
//	value < 0.7
//	surplus > 120
//	discount > 60
//	minutes > 300
//	expected_time == 0
//	total_produced < 1000
//	expected_production > 9000
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed, the field is
// unknown, or the field's value is undefined (NaN).
func evalCondition(cond string, rec types.IndicatorRecord) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	v, ok := numericField(field, rec)
	if !ok || math.IsNaN(v) {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the indicator row.
func numericField(field string, rec types.IndicatorRecord) (float64, bool) {
	switch field {
	case "value":
		return rec.Value, true
	case "minutes":
		return float64(rec.Minutes), true
	case "discount":
		return float64(rec.Discount), true
	case "surplus":
		return float64(rec.Surplus), true
	case "expected_time":
		return float64(rec.ExpectedMinutes), true
	case "total_produced":
		return float64(rec.TotalProduced), true
	case "expected_production":
		return float64(rec.ExpectedProduction), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	default:
		return false
	}
}
