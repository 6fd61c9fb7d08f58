package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bookverse/platform/internal/log"
)

type contextKey struct{}

// UserFrom returns the authenticated user stored by RequireAuth, or nil.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}

// RequireAuth rejects requests without a valid principal and stores the
// user in the request context for downstream handlers.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Authenticate(r.Context(), r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope layers an OAuth scope check over RequireAuth.
func (s *Service) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFrom(r.Context())
			if user == nil || !user.HasScope(scope) {
				writeJSONError(w, http.StatusForbidden,
					fmt.Sprintf("insufficient permissions, required scope: %s", scope))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrServiceUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, ErrServiceUnavailable.Error())
	case errors.Is(err, ErrMissingToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSONError(w, http.StatusUnauthorized, ErrMissingToken.Error())
	default:
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeJSONError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		log.Error(log.CatAuth, "failed to encode error response", "error", err)
	}
}
