package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// ProxyHeaders rewrites RemoteAddr from X-Forwarded-For / X-Real-IP when the
// server runs behind a trusted proxy. Otherwise the headers are client
// controlled and RemoteAddr is left alone, so per-IP limits key on the peer.
func ProxyHeaders(trusted bool) func(http.Handler) http.Handler {
	if trusted {
		return middleware.RealIP
	}
	return func(next http.Handler) http.Handler { return next }
}

// SecurityHeaders adds security-related headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// Swagger UI needs scripts, styles, and images to render
		// Auth responses carry profile data and session cookies
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store")
		}

		if strings.HasPrefix(r.URL.Path, "/swagger/") {
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
		} else {
			w.Header().Set("Content-Security-Policy", "default-src 'none'")
		}

		next.ServeHTTP(w, r)
	})
}
