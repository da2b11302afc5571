// Package config loads and validates the plantpulse YAML configuration:
// server and scheduler settings, storage and ingest sources, alert rules,
// and the analysis rule tables (shift clock times, discount tables,
// exemption lists, thresholds) consumed by the engine packages.
package config
