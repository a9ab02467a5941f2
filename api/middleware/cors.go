package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/playfunia-backend/pkg/types"
)

// CORS allows the storefront and back-office origins. The admin event stream
// needs Last-Event-ID to resume after a reconnect.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, "Last-Event-ID"},
		ExposedHeaders:   []string{types.RequestIDHeader, replayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
