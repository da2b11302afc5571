// Package timeline reconciles the periodic machine-telemetry stream with the
// operator-entered stoppage annotations into a gap-free sequence of discrete
// machine-state intervals. The reconciliation is a nearest-neighbor time join
// under a tolerance window, followed by a two-pass change-detection and
// grouping derivation: the second pass folds short "running" blips back into
// their neighboring stoppages, which shifts group boundaries and requires the
// grouping, filling and duration computation to be redone.
package timeline
