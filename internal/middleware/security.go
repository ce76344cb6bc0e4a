package middleware

import "net/http"

// ResponseHeaders marks API responses as uncacheable and echoes the caller's
// X-Request-ID so client and server logs can be joined.
func ResponseHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Cache-Control", "no-store")
			if id := r.Header.Get("X-Request-ID"); id != "" {
				w.Header().Set("X-Request-ID", id)
			}
			next.ServeHTTP(w, r)
		})
	}
}
