package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
	"github.com/breachwatch/breachwatch/internal/validation"
)

// StartSessionRequest carries the identity asserted by the upstream identity
// provider. The provider terminates in front of this service; by the time a
// request reaches us the email has already been authenticated.
type StartSessionRequest struct {
	Email string `json:"email"`
}

// HandleStartSession handles POST /api/v1/auth/session
// Upserts the account, guarantees its personal org, and issues the session
// cookie.
func HandleStartSession(pool *pgxpool.Pool, sessionSecret string, sessionDays int, isProduction bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req StartSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		user, err := service.EnsureUser(ctx, req.Email)
		if err != nil {
			if errors.Is(err, validation.ErrInvalidEmail) {
				apperrors.WriteBadRequest(w, r, "Invalid email address")
				return
			}
			log.Error().Err(err).Msg("Failed to ensure user")
			apperrors.WriteInternalError(w, r, "Failed to start session")
			return
		}

		token, err := identity.CreateToken(user.ID, user.Email, sessionSecret, sessionDays)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create session token")
			apperrors.WriteInternalError(w, r, "Failed to start session")
			return
		}

		identity.SetSessionCookie(w, token, sessionDays, isProduction)

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": user.ToMeResponse(),
		})
	}
}

// HandleEndSession handles POST /api/v1/auth/logout
func HandleEndSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity.ClearSessionCookie(w)
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"logged_out": true,
		})
	}
}
