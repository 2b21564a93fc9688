package middleware

import "net/http"

// DefaultMaxBodyBytes caps inbound request bodies. Moderation payloads and
// helpdesk webhooks are small JSON documents.
const DefaultMaxBodyBytes int64 = 1 << 20

// MaxBodySize returns middleware that limits request body size.
// Handlers reading past maxBytes get an error and the client a 413.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
