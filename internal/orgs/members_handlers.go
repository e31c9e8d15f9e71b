package orgs

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/audit"
	"github.com/breachwatch/breachwatch/internal/identity"
)

// UpdateMemberRoleRequest represents the request to change a member's role
type UpdateMemberRoleRequest struct {
	Role OrgRole `json:"role"`
}

func memberTargetParams(r *http.Request) (orgID, targetUserID uuid.UUID, err error) {
	orgID, err = uuid.Parse(chi.URLParam(r, "org_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	targetUserID, err = uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orgID, targetUserID, nil
}

func writeMemberError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, ErrNotMember):
		apperrors.WriteNotFound(w, r, "Organization not found")
	case errors.Is(err, ErrMemberNotFound):
		apperrors.WriteNotFound(w, r, "Member not found")
	case errors.Is(err, ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrLastOwnerViolation):
		apperrors.WriteConflict(w, r, "An organization must keep at least one active owner")
	case errors.Is(err, ErrInvalidStatusTransition):
		apperrors.WriteConflict(w, r, "Invalid member status transition")
	default:
		log.Error().Err(err).Str("action", action).Msg("Member operation failed")
		apperrors.WriteInternalError(w, r, "Failed to "+action)
	}
}

// HandleUpdateMemberRole handles PUT /api/v1/orgs/{org_id}/members/{user_id}/role
func HandleUpdateMemberRole(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, targetUserID, err := memberTargetParams(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization or user ID")
			return
		}

		var req UpdateMemberRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if !req.Role.IsValid() {
			apperrors.WriteBadRequest(w, r, "Invalid role")
			return
		}

		service := NewService(pool)
		previousRole, err := service.UpdateMemberRole(ctx, orgID, p.UserID, targetUserID, req.Role)
		if err != nil {
			writeMemberError(w, r, err, "update member role")
			return
		}

		if err := auditor.LogOrgMemberRoleUpdated(ctx, orgID, p.UserID, targetUserID, string(previousRole), string(req.Role)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id":       targetUserID,
			"previous_role": previousRole,
			"role":          req.Role,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/orgs/{org_id}/members/{user_id}
func HandleRemoveMember(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, targetUserID, err := memberTargetParams(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization or user ID")
			return
		}

		service := NewService(pool)
		removedRole, err := service.RemoveMember(ctx, orgID, p.UserID, targetUserID)
		if err != nil {
			writeMemberError(w, r, err, "remove member")
			return
		}

		if err := auditor.LogOrgMemberRemoved(ctx, orgID, p.UserID, targetUserID, string(removedRole)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"removed": true,
		})
	}
}

// HandleSuspendMember handles POST /api/v1/orgs/{org_id}/members/{user_id}/suspend
func HandleSuspendMember(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, targetUserID, err := memberTargetParams(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization or user ID")
			return
		}

		service := NewService(pool)
		if err := service.SuspendMember(ctx, orgID, p.UserID, targetUserID); err != nil {
			writeMemberError(w, r, err, "suspend member")
			return
		}

		if err := auditor.LogOrgMemberSuspended(ctx, orgID, p.UserID, targetUserID); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"suspended": true,
		})
	}
}
