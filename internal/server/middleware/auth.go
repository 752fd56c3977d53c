package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
)

const bearerPrefix = "Bearer "

// BearerAuth rejects requests whose Authorization header does not carry
// token. An empty token disables the check.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validBearer(r.Header.Get("Authorization"), token) {
				envelope := errors.NewErrorEnvelope("UNAUTHORIZED", "Unauthorized.").
					WithCorrelationID(GetRequestID(r.Context()))
				w.Header().Set("WWW-Authenticate", `Bearer realm="promptfill"`)
				writeErrorResponse(w, envelope, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validBearer(header, token string) bool {
	if !strings.HasPrefix(header, bearerPrefix) {
		return false
	}
	supplied := strings.TrimSpace(header[len(bearerPrefix):])
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) == 1
}
