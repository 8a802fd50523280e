package api

import (
	"net/http"
	"strings"

	"github.com/haggle-network/haggle/internal/auth"
)

// authMiddleware validates the bearer token on trade routes. Enabled only
// when an auth secret is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		if _, err := auth.ValidateToken(s.authSecret, tokenStr); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
