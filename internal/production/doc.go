// Package production merges per-shift quality event aggregates into the
// production reports and reconciles the two competing produced-count
// estimates (cycle-derived vs. sensor-derived) so a malfunctioning sensor
// cannot silently corrupt the production count.
package production
