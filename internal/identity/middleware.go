package identity

import (
	"context"
	"errors"
	"net/http"

	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const principalContextKey contextKey = "principal"

// SessionMiddleware validates the session cookie and injects the resolved
// Principal into the context. Requests without a valid session continue
// unauthenticated; RequireAuth enforces presence where needed.
func SessionMiddleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := GetSessionCookie(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := resolver.ResolveSession(r.Context(), token)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					log.Debug().Msg("Invalid session token")
					ClearSessionCookie(w)
				} else {
					log.Error().Err(err).Msg("Failed to resolve session principal")
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAuth is middleware that requires an authenticated principal.
// Returns 401 if none is present.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p == nil || p.UserID == uuid.Nil {
			apperrors.WriteUnauthorized(w, r, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePlatformAdmin requires an authenticated principal holding a platform
// ADMIN or SUPER_ADMIN role.
func RequirePlatformAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p == nil || p.UserID == uuid.Nil {
			apperrors.WriteUnauthorized(w, r, "Authentication required")
			return
		}
		if !p.PlatformRole.IsAdmin() {
			apperrors.WriteForbidden(w, r, "Platform admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal stores the principal in the context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFrom retrieves the principal from the context, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}
