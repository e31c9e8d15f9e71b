package apikey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/apikeys"
	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/identity"
)

// RequireAPIKey is middleware that validates API key authentication.
// On success the owner's principal and the key itself are placed on the
// request context.
func RequireAPIKey(pool *pgxpool.Pool, keys *apikeys.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := ExtractAPIKey(r)
			if err != nil {
				if errors.Is(err, ErrMissingAPIKey) {
					apperrors.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
					return
				}
				apperrors.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header")
				return
			}

			key, principal, err := ValidateAPIKey(ctx, pool, keys, token)
			if err != nil {
				switch {
				case errors.Is(err, ErrInvalidAPIKey), errors.Is(err, ErrInactiveAPIKey), errors.Is(err, ErrExpiredAPIKey):
					apperrors.WriteError(w, r, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
				default:
					log.Error().Err(err).Msg("Failed to validate API key")
					apperrors.WriteInternalError(w, r, "Authentication failed")
				}
				return
			}

			// Update last_used_at timestamp (fire and forget); detached from
			// the request context so it survives request completion
			go func() {
				if err := keys.UpdateLastUsed(context.WithoutCancel(ctx), key.ID); err != nil {
					log.Error().Err(err).Str("api_key_id", key.ID.String()).Msg("Failed to update last_used_at")
				}
			}()

			ctx = WithAPIKey(ctx, key)
			ctx = identity.WithPrincipal(ctx, &principal)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitByAPIKey creates a rate limiter that limits requests per API key
// The limit is specified in requests per minute
func RateLimitByAPIKey(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			key := GetAPIKey(r.Context())
			if key == nil {
				// If no API key in context, fall back to IP (shouldn't happen after RequireAPIKey)
				return httprate.KeyByIP(r)
			}
			return fmt.Sprintf("apikey:%s", key.ID.String()), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			key := GetAPIKey(r.Context())
			if key != nil {
				log.Warn().
					Str("api_key_id", key.ID.String()).
					Str("api_key_name", key.Name).
					Str("path", r.URL.Path).
					Msg("Rate limit exceeded")
			}

			w.Header().Set("Retry-After", "60")
			apperrors.WriteError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Rate limit exceeded. Please retry after 60 seconds.")
		}),
	)
}
