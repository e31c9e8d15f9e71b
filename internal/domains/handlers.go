package domains

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
	"github.com/breachwatch/breachwatch/internal/orgs"
)

// AddDomainRequest represents the request to register a domain
type AddDomainRequest struct {
	Value      string     `json:"value"`
	Kind       Kind       `json:"kind"`
	Visibility Visibility `json:"visibility,omitempty"`
}

// SetVisibilityRequest represents the request to change a domain's visibility
type SetVisibilityRequest struct {
	Visibility Visibility `json:"visibility"`
}

type DomainResponse struct {
	ID         uuid.UUID  `json:"id"`
	Value      string     `json:"value"`
	Kind       Kind       `json:"kind"`
	OrgID      *uuid.UUID `json:"org_id,omitempty"`
	Visibility Visibility `json:"visibility"`
	Verified   bool       `json:"verified"`
	CreatedAt  string     `json:"created_at"`
}

func toDomainResponse(d *Domain) DomainResponse {
	resp := DomainResponse{
		ID:         d.ID,
		Value:      d.Value,
		Kind:       d.Kind,
		Visibility: d.Visibility,
		Verified:   d.IsVerified,
		CreatedAt:  d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if d.OrgID.Valid {
		resp.OrgID = &d.OrgID.UUID
	}
	return resp
}

func domainIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "domain_id"))
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, ErrInvalidDomain):
		apperrors.WriteBadRequest(w, r, "Invalid domain value")
	case errors.Is(err, ErrInvalidKind):
		apperrors.WriteBadRequest(w, r, "Invalid domain kind")
	case errors.Is(err, ErrDuplicateDomain):
		apperrors.WriteConflict(w, r, "Domain is already registered")
	case errors.Is(err, ErrQuotaExceeded):
		apperrors.WriteError(w, r, http.StatusUnprocessableEntity, "quota_exceeded", "Organization domain quota exceeded")
	case errors.Is(err, ErrDomainNotFound), errors.Is(err, orgs.ErrNotMember), errors.Is(err, orgs.ErrOrgNotFound):
		apperrors.WriteNotFound(w, r, "Domain not found")
	case errors.Is(err, orgs.ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrAdminRequired):
		apperrors.WriteForbidden(w, r, "Platform admin role required")
	default:
		log.Error().Err(err).Str("action", action).Msg("Domain operation failed")
		apperrors.WriteInternalError(w, r, "Failed to "+action)
	}
}

// HandleAddDirect handles POST /api/v1/domains
func HandleAddDirect(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		var req AddDomainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		domain, err := service.AddDirect(ctx, p.UserID, req.Value, req.Kind)
		if err != nil {
			writeDomainError(w, r, err, "register domain")
			return
		}

		if err := auditor.LogDomainRegistered(ctx, nil, domain.ID, p.UserID, domain.Value, string(domain.Kind)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"domain": toDomainResponse(domain),
		})
	}
}

// HandleAddToOrg handles POST /api/v1/orgs/{org_id}/domains
func HandleAddToOrg(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		var req AddDomainRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		domain, err := service.AddToOrg(ctx, orgID, p.UserID, req.Value, req.Kind, req.Visibility)
		if err != nil {
			writeDomainError(w, r, err, "register domain")
			return
		}

		if err := auditor.LogDomainRegistered(ctx, &orgID, domain.ID, p.UserID, domain.Value, string(domain.Kind)); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"domain": toDomainResponse(domain),
		})
	}
}

// HandleListAccessible handles GET /api/v1/domains
func HandleListAccessible(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		service := NewService(pool, orgs.NewService(pool))
		list, err := service.ListAccessible(ctx, p.UserID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list domains")
			apperrors.WriteInternalError(w, r, "Failed to list domains")
			return
		}

		resp := make([]DomainResponse, len(list))
		for i := range list {
			resp[i] = toDomainResponse(&list[i])
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domains": resp,
		})
	}
}

// HandleListOrgDomains handles GET /api/v1/orgs/{org_id}/domains
func HandleListOrgDomains(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		orgID, err := uuid.Parse(chi.URLParam(r, "org_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid organization ID")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		list, err := service.ListByOrg(ctx, orgID, p.UserID)
		if err != nil {
			writeDomainError(w, r, err, "list domains")
			return
		}

		resp := make([]DomainResponse, len(list))
		for i := range list {
			resp[i] = toDomainResponse(&list[i])
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domains": resp,
		})
	}
}

// HandleSetVisibility handles PUT /api/v1/domains/{domain_id}/visibility
func HandleSetVisibility(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		domainID, err := domainIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid domain ID")
			return
		}

		var req SetVisibilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if !req.Visibility.IsValid() {
			apperrors.WriteBadRequest(w, r, "Invalid visibility")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		domain, err := service.SetVisibility(ctx, domainID, p.UserID, req.Visibility)
		if err != nil {
			writeDomainError(w, r, err, "update visibility")
			return
		}

		if domain.OrgID.Valid {
			if err := auditor.LogDomainVisibilitySet(ctx, domain.OrgID.UUID, domain.ID, p.UserID, string(domain.Visibility)); err != nil {
				log.Error().Err(err).Msg("Failed to log audit event")
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domain": toDomainResponse(domain),
		})
	}
}

// HandleDelete handles DELETE /api/v1/domains/{domain_id}
func HandleDelete(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		domainID, err := domainIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid domain ID")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		domain, err := service.GetByID(ctx, domainID)
		if err != nil {
			writeDomainError(w, r, err, "remove domain")
			return
		}

		if err := service.Delete(ctx, domainID, p.UserID); err != nil {
			writeDomainError(w, r, err, "remove domain")
			return
		}

		var orgID *uuid.UUID
		if domain.OrgID.Valid {
			orgID = &domain.OrgID.UUID
		}
		if err := auditor.LogDomainRemoved(ctx, orgID, domainID, p.UserID, domain.Value); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}
