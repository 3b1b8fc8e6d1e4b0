package middleware

import (
	"mime"
	"net/http"

	"websites-content-system/pkg/utils"
)

// ContentTypeJSON requires mutations to send a JSON body. Reads pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		raw := r.Header.Get("Content-Type")
		if raw == "" {
			utils.WriteBadRequestResponse(w, "Content-Type header is required")
			return
		}
		if mediaType, _, err := mime.ParseMediaType(raw); err != nil || mediaType != "application/json" {
			utils.WriteBadRequestResponse(w, "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize caps request bodies at maxBytes. Decoding a larger body fails
// and the handler answers with a validation error.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
