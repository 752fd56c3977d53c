package middleware

import (
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
)

const (
	corsAllowMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders = "authorization, content-type, mcp-protocol-version, mcp-session-id, last-event-id"
	corsExpose       = "Mcp-Session-Id"
)

// OriginAllowed reports whether origin matches the allow-list. Entries ending
// in "*" match by prefix and a bare "*" matches everything.
func OriginAllowed(origin string, allowed []string) bool {
	for _, pattern := range allowed {
		switch {
		case pattern == "*":
			return true
		case strings.HasSuffix(pattern, "*"):
			if strings.HasPrefix(origin, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		case pattern == origin:
			return true
		}
	}
	return false
}

// CORS enforces the origin allow-list. Requests without an Origin header pass
// through untouched; preflights are answered directly with 204.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if !OriginAllowed(origin, allowed) {
				envelope := errors.NewErrorEnvelope("FORBIDDEN", "Origin is not allowed.").
					WithCorrelationID(GetRequestID(r.Context()))
				writeErrorResponse(w, envelope, http.StatusForbidden)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", corsExpose)
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
