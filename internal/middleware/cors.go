// Package middleware provides HTTP middleware for the academy API.
package middleware

import (
	"net/http"
	"strings"
)

// CORSOptions configures the CORS middleware.
type CORSOptions struct {
	AllowedOrigins []string
	AllowedHeaders []string
	ExposedHeaders []string
}

// CORS returns middleware that handles CORS headers. Content-Type is always
// allowed; the Last-Event-ID header used by SSE reconnects is allowed too.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	headers := append([]string{"Content-Type", "Last-Event-ID"}, opts.AllowedHeaders...)
	allowHeaders := strings.Join(headers, ", ")
	exposeHeaders := strings.Join(opts.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed, explicit := false, false
			for _, o := range opts.AllowedOrigins {
				if o == "*" {
					allowed = true
				} else if o == origin {
					allowed, explicit = true, true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
				if exposeHeaders != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposeHeaders)
				}
				// Only allow credentials for explicit origins, not wildcard matches.
				// Setting Allow-Credentials with a wildcard-echoed origin enables CSRF.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
