package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/plantpulse/plantpulse/internal/config"
)

// APIKeyMiddleware enforces API key authentication on /api/v1 routes.
//
// Behaviour:
//   - If auth mode != "apikey" or the resolved key is empty, all requests
//     pass through.
//   - Otherwise the request header named by the config must match the key;
//     a missing or incorrect key returns 401.
//   - /metrics and the WebSocket upgrade path stay open - scrape targets
//     and dashboards authenticate at the reverse proxy.
func APIKeyMiddleware(auth config.AuthConfig, next http.Handler) http.Handler {
	key := auth.Key()
	if auth.Mode != "apikey" || key == "" {
		return next
	}
	header := auth.EffectiveHeader()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/ws/stream" {
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			jsonErr(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
