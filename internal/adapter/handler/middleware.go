package handler

import (
	"net/http"
	"strings"

	"github.com/shopworks/fulfillment/internal/auth"
)

const bearerPrefix = "Bearer "

// RequireAuth rejects requests without a valid bearer token before any body
// processing happens.
func RequireAuth(tokens *auth.Manager, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		if _, err := tokens.Validate(strings.TrimPrefix(header, bearerPrefix)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next(w, r)
	}
}
