package server

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS wraps h with CORS handling for the given origins. "*" allows any
// origin; credentials are only allowed for an explicit origin list.
func WithCORS(h http.Handler, origins []string) http.Handler {
	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		origins = []string{"*"}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	})
	return c.Handler(h)
}
