package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows read-only cross-origin access from origins, e.g. a dashboard polling
// /status. No origins disables it.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	})
}
