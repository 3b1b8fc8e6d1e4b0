package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"websites-content-system/pkg/config"
)

// CORS lets the console frontend call the API. Explicit origins get
// credentials; a wildcard never does.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	origins, credentials := corsOrigins(cfg)
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: credentials,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "Cache-Control"},
		ExposedHeaders:   []string{"X-Request-Id"},
		MaxAge:           300,
	})
}

func corsOrigins(cfg *config.Config) ([]string, bool) {
	if len(cfg.AllowedOrigins) > 0 && cfg.AllowedOrigins[0] != "*" {
		return cfg.AllowedOrigins, true
	}
	return []string{"*"}, false
}
