package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS permits the storefront web clients to talk to the API directly.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"Idempotency-Key",
			"X-Request-Id",
			"X-Session-Id",
		},
		ExposedHeaders: []string{
			"X-Request-Id",
			"X-Session-Id",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
