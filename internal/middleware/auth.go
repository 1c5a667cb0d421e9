package middleware

import (
	"context"
	"net/http"
	"slices"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/auth"
	"civic-reporting-api/internal/logger"
	"civic-reporting-api/internal/models"
)

// Authenticate requires a valid bearer token and attaches its principal to
// the request context.
func Authenticate(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, apperr.Unauthorized("missing bearer token"))
				return
			}
			p, err := tokens.Verify(raw)
			if err != nil {
				writeError(w, apperr.Unauthorized("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r, p)))
		})
	}
}

// OptionalAuth attaches a principal when a valid token is present and
// otherwise lets the request through anonymously.
func OptionalAuth(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
				if p, err := tokens.Verify(raw); err == nil {
					r = r.WithContext(withPrincipal(r, p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole admits only principals holding one of roles. It must run
// after Authenticate.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, apperr.Unauthorized("authentication required"))
				return
			}
			if !slices.Contains(roles, p.Role) {
				writeError(w, apperr.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withPrincipal(r *http.Request, p auth.Principal) context.Context {
	ctx := auth.WithPrincipal(r.Context(), p)
	return logger.WithUserID(ctx, p.UserID)
}
