// Package api implements the HTTP REST API for plantpulse.
//
// New(...) returns an http.Handler that serves:
//
//	GET  /api/v1/health             - process status and run counters
//	GET  /api/v1/intervals          - state intervals for ?date=YYYY-MM-DD
//	GET  /api/v1/production         - merged production rows for ?date=
//	GET  /api/v1/indicators/{kind}  - indicator rows for ?date=; kind is
//	                                  efficiency | performance | repair
//	GET  /api/v1/runs               - recent run history, newest first
//	POST /api/v1/runs               - trigger an on-demand run for ?date=
//	GET  /api/v1/alerts             - active alerts
//	GET  /metrics                   - Prometheus text exposition
//
// All /api/v1 endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for unsupported methods
//   - Render undefined indicator values as JSON null
//
// JSON types are defined in types.go. No external HTTP framework is used.
// API key authentication is applied by APIKeyMiddleware when configured.
package api
