// Package runner orchestrates one analysis run: fetch raw rows, reconcile
// the timeline, merge production with quality, compute indicators, persist
// everything, then notify the WebSocket hub and the alert engine.
//
// Run holds an internal mutex so at most one run executes at a time; the
// periodic scheduler and the on-demand API trigger share it. Each run is
// idempotent - outputs are upserted under the keys the engines produced
// them with, so re-running a date overwrites the previous results.
package runner
