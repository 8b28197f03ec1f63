package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/halcyonretail/storefront-sync/pkg/config"
)

// CORS returns middleware that applies the storefront's allowed origin
// policy. Origins come from configuration so each deployment can list
// its own frontends.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
