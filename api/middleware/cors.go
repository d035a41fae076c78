package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/vitrine-commerce/vitrine-backend/api/responses"
)

const corsMaxAgeSeconds = 600

// CORS lets the storefront and admin panel call the API from the browser.
// Credentials are only allowed with an explicit origin list; browsers reject
// them for the "*" wildcard.
func CORS(origins []string) func(http.Handler) http.Handler {
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, SessionHeader},
		ExposedHeaders:   []string{responses.RequestIDHeader, ReplayHeader, "Retry-After"},
		AllowCredentials: !wildcard,
		MaxAge:           corsMaxAgeSeconds,
	})
}
