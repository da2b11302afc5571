// Package indicator computes the per-machine, per-shift productivity
// indicators (efficiency, performance, repair) from the reconciled state
// intervals and the merged production records.
//
// Each kind carries its own exemption list and discount table, taken from
// the rule set. Stoppage minutes matching a discount rule are credited
// back; the remaining surplus is what penalizes the indicator. Indicator
// values that are not meaningfully computable are NaN and rendered as NULL
// at the store and API boundaries.
package indicator
