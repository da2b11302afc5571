// Package clean normalizes raw ingested rows before analysis: exact-duplicate
// removal, required-field policy, timestamp normalization, line coercion with
// factory derivation, and operator/work-order sentinel handling. Cleaning is
// total - rows that violate the required-field policy are dropped, never
// errored.
package clean
