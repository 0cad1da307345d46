package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// TokenHeader carries a refreshed identity token after a role change.
const TokenHeader = "X-Boost-Token"

// CORS returns middleware that applies the API's allowed origin policy.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, "X-Requested-With", "X-Request-Id"},
		ExposedHeaders:   []string{TokenHeader, "Content-Disposition", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
