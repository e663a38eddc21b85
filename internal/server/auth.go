package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/nyaya/caseflow/internal/config"
)

type contextKey string

const officerKey contextKey = "officer"

// authMiddleware resolves the bearer token to an officer and stores the
// credential in the request context. There is no session state; every
// request authenticates itself.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		officer, ok := s.config.OfficerForToken(token)
		if !ok {
			s.respondError(w, http.StatusUnauthorized, "missing or unknown bearer token")
			return
		}
		ctx := context.WithValue(r.Context(), officerKey, officer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// officerFrom returns the authenticated officer stored by authMiddleware.
func officerFrom(ctx context.Context) (config.TokenConfig, bool) {
	officer, ok := ctx.Value(officerKey).(config.TokenConfig)
	return officer, ok
}
