// ABOUTME: HTTP middleware for authentication on API endpoints
// ABOUTME: Adds the AuthContext to the request context and gates admin routes

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// HTTPAuthMiddleware creates an HTTP middleware that authenticates the
// Authorization header and adds the AuthContext to the request context.
func HTTPAuthMiddleware(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
			case errors.Is(err, ErrMissingCredentials):
				writeError(w, http.StatusUnauthorized, "missing authorization header")
			case errors.Is(err, ErrAccessDisabled):
				writeError(w, http.StatusForbidden, "assistant access disabled")
			case errors.Is(err, ErrExpiredToken):
				writeError(w, http.StatusUnauthorized, "token expired")
			default:
				writeError(w, http.StatusUnauthorized, "invalid token")
			}
		})
	}
}

// RequireAdminHTTP creates an HTTP middleware that requires the System Manager role.
// Must be used after HTTPAuthMiddleware.
func RequireAdminHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !authCtx.IsAdmin() {
				writeError(w, http.StatusForbidden, "admin role required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WhoAmIHandler reports the authenticated user's email. The bridge uses it to
// derive a stable identity from a bearer token.
func WhoAmIHandler(w http.ResponseWriter, r *http.Request) {
	authCtx := FromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": authCtx.Email,
		"user":    authCtx.Email,
	})
}
