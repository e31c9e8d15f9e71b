package orgs

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/audit"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/validation"
)

// CreateInviteRequest represents the request to invite someone to an org
type CreateInviteRequest struct {
	Email string  `json:"email"`
	Role  OrgRole `json:"role"`
}

type InviteCreatedResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      OrgRole   `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcceptInviteRequest carries the invitation token.
type AcceptInviteRequest struct {
	Token string `json:"token"`
}

// HandleCreateInvite handles POST /api/v1/orgs/{org_id}/invites
func HandleCreateInvite(pool *pgxpool.Pool, auditor *audit.Writer, inviteTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, err := orgIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req CreateInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.Role == "" {
			req.Role = RoleMember
		}

		service := NewService(pool)
		invite, created, err := service.CreateInvite(ctx, orgID, p.UserID, req.Email, req.Role, inviteTTL)
		if err != nil {
			switch {
			case errors.Is(err, validation.ErrInvalidEmail):
				apperrors.WriteBadRequest(w, r, "Invalid email address")
			case errors.Is(err, ErrInvalidOrgRole), errors.Is(err, ErrCannotInviteOwner):
				apperrors.WriteBadRequest(w, r, "Invalid invite role")
			case errors.Is(err, ErrNotMember):
				apperrors.WriteNotFound(w, r, "Organization not found")
			case errors.Is(err, ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions to invite members")
			case errors.Is(err, ErrAlreadyMember):
				apperrors.WriteConflict(w, r, "User is already a member of this organization")
			default:
				log.Error().Err(err).Msg("Failed to create invite")
				apperrors.WriteInternalError(w, r, "Failed to create invite")
			}
			return
		}

		if created {
			if err := auditor.LogOrgInviteCreated(ctx, orgID, p.UserID, invite.ID, invite.Email, string(invite.Role)); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}
		}

		status := http.StatusCreated
		if !created {
			// Re-issuing a live invitation for the same address returns the
			// existing one untouched.
			status = http.StatusOK
		}

		apperrors.WriteSuccess(w, r, status, map[string]any{
			"invite": InviteCreatedResponse{
				ID:        invite.ID,
				Email:     invite.Email,
				Role:      invite.Role,
				Token:     invite.Token,
				ExpiresAt: invite.ExpiresAt,
			},
		})
	}
}

// HandleListInvites handles GET /api/v1/orgs/{org_id}/invites
func HandleListInvites(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, err := orgIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		service := NewService(pool)
		invites, err := service.ListInvites(ctx, orgID, p.UserID)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotMember):
				apperrors.WriteNotFound(w, r, "Organization not found")
			case errors.Is(err, ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions to view invites")
			default:
				log.Error().Err(err).Msg("Failed to list invites")
				apperrors.WriteInternalError(w, r, "Failed to list invites")
			}
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invites": invites,
		})
	}
}

// HandleCancelInvite handles DELETE /api/v1/orgs/{org_id}/invites/{invite_id}
func HandleCancelInvite(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, err := orgIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}
		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invite ID")
			return
		}

		service := NewService(pool)
		if err := service.CancelInvite(ctx, orgID, inviteID, p.UserID); err != nil {
			switch {
			case errors.Is(err, ErrNotMember):
				apperrors.WriteNotFound(w, r, "Organization not found")
			case errors.Is(err, ErrInviteNotFound):
				apperrors.WriteNotFound(w, r, "Invite not found")
			case errors.Is(err, ErrInsufficientPermissions):
				apperrors.WriteForbidden(w, r, "Insufficient permissions to cancel invites")
			default:
				log.Error().Err(err).Msg("Failed to cancel invite")
				apperrors.WriteInternalError(w, r, "Failed to cancel invite")
			}
			return
		}

		if err := auditor.LogOrgInviteCanceled(ctx, orgID, p.UserID, inviteID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"canceled": true,
		})
	}
}

// HandleAcceptInvite handles POST /api/v1/invites/accept
func HandleAcceptInvite(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		var req AcceptInviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if !ValidateInviteTokenFormat(req.Token) {
			apperrors.WriteBadRequest(w, r, "Invalid invite token")
			return
		}

		service := NewService(pool)
		invite, err := service.AcceptInvite(ctx, req.Token, p.UserID)
		if err != nil {
			switch {
			case errors.Is(err, ErrInviteNotFound):
				apperrors.WriteNotFound(w, r, "Invite not found")
			case errors.Is(err, ErrInviteExpired):
				apperrors.WriteError(w, r, http.StatusGone, "invite_expired", "This invitation has expired")
			case errors.Is(err, ErrInviteNotActive):
				apperrors.WriteConflict(w, r, "This invitation is no longer active")
			case errors.Is(err, ErrInviteEmailMismatch):
				apperrors.WriteForbidden(w, r, "This invitation was issued to a different email address")
			default:
				log.Error().Err(err).Msg("Failed to accept invite")
				apperrors.WriteInternalError(w, r, "Failed to accept invite")
			}
			return
		}

		if err := auditor.LogOrgInviteAccepted(ctx, invite.OrgID, p.UserID, invite.ID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"org_id": invite.OrgID,
			"role":   invite.Role,
		})
	}
}
