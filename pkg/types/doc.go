// Package types defines the shared row types that flow through the analysis
// pipeline. These are the canonical in-memory representations of the raw
// feeds (telemetry, annotations, production, quality) and of the derived
// tables (state intervals, production records, indicators), separate from
// how the store or the API serialize them.
package types
