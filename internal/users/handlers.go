package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/audit"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
)

// SetCurrentOrgRequest switches the caller's active org context.
type SetCurrentOrgRequest struct {
	OrgID uuid.UUID `json:"org_id"`
}

// HandleMe handles GET /api/v1/me
func HandleMe(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		service := NewService(pool, orgs.NewService(pool))
		user, err := service.GetByID(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				apperrors.WriteNotFound(w, r, "User not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load user")
			apperrors.WriteInternalError(w, r, "Failed to load user")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user": user.ToMeResponse(),
		})
	}
}

// HandleSetCurrentOrg handles PUT /api/v1/me/current-org
func HandleSetCurrentOrg(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		var req SetCurrentOrgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.OrgID == uuid.Nil {
			apperrors.WriteBadRequest(w, r, "Organization ID is required")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		if err := service.SetCurrentOrg(ctx, p.UserID, req.OrgID); err != nil {
			switch {
			case errors.Is(err, orgs.ErrNotMember):
				apperrors.WriteNotFound(w, r, "Organization not found")
			case errors.Is(err, ErrUserNotFound):
				apperrors.WriteNotFound(w, r, "User not found")
			default:
				log.Error().Err(err).Msg("Failed to set current org")
				apperrors.WriteInternalError(w, r, "Failed to set current org")
			}
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"current_org_id": req.OrgID,
		})
	}
}

// HandleDeleteAccount handles DELETE /api/v1/me
func HandleDeleteAccount(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		service := NewService(pool, orgs.NewService(pool))
		email, err := service.Delete(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				apperrors.WriteNotFound(w, r, "User not found")
				return
			}
			log.Error().Err(err).Msg("Failed to delete account")
			apperrors.WriteInternalError(w, r, "Failed to delete account")
			return
		}

		if err := auditor.LogUserDeleted(ctx, p.UserID, email); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		identity.ClearSessionCookie(w)

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}
