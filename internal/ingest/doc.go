// Package ingest pulls raw feed rows (telemetry, annotations, production,
// quality) from the configured upstream gateway endpoints.
//
// Each source serves a JSON array of rows for one registry date. A shared
// authRoundTripper injects the source's credentials (mTLS, API key, bearer
// token, basic auth) into every outgoing request; the collector receives a
// pre-configured *http.Client per source and fans the fetched rows into a
// Batch for the runner.
package ingest
