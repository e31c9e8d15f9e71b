package domains

import (
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/audit"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
)

type AdminDomainResponse struct {
	DomainResponse
	OwnerUserID *string `json:"owner_user_id,omitempty"`
	AddedBy     *string `json:"added_by_user_id,omitempty"`
	VerifiedAt  *string `json:"verified_at,omitempty"`
}

func toAdminDomainResponse(d *Domain) AdminDomainResponse {
	resp := AdminDomainResponse{DomainResponse: toDomainResponse(d)}
	if d.OwnerUserID.Valid {
		v := d.OwnerUserID.UUID.String()
		resp.OwnerUserID = &v
	}
	if d.AddedByUserID.Valid {
		v := d.AddedByUserID.UUID.String()
		resp.AddedBy = &v
	}
	if d.VerifiedAt != nil {
		v := d.VerifiedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.VerifiedAt = &v
	}
	return resp
}

// HandleAdminList handles GET /api/v1/admin/domains
func HandleAdminList(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		unverifiedOnly := r.URL.Query().Get("unverified") == "true"
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		service := NewService(pool, orgs.NewService(pool))
		list, err := service.ListAll(ctx, *p, unverifiedOnly, limit, offset)
		if err != nil {
			writeDomainError(w, r, err, "list domains")
			return
		}

		resp := make([]AdminDomainResponse, len(list))
		for i := range list {
			resp[i] = toAdminDomainResponse(&list[i])
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domains": resp,
		})
	}
}

// HandleAdminVerify handles POST /api/v1/admin/domains/{domain_id}/verify
func HandleAdminVerify(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		domainID, err := domainIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid domain ID")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		domain, err := service.Verify(ctx, domainID, *p)
		if err != nil {
			writeDomainError(w, r, err, "verify domain")
			return
		}

		if err := auditor.LogDomainVerified(ctx, domain.ID, p.UserID, domain.Value); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domain": toAdminDomainResponse(domain),
		})
	}
}

// HandleAdminUnverify handles POST /api/v1/admin/domains/{domain_id}/unverify
func HandleAdminUnverify(pool *pgxpool.Pool, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		domainID, err := domainIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid domain ID")
			return
		}

		service := NewService(pool, orgs.NewService(pool))
		domain, err := service.Unverify(ctx, domainID, *p)
		if err != nil {
			writeDomainError(w, r, err, "unverify domain")
			return
		}

		if err := auditor.LogDomainUnverified(ctx, domain.ID, p.UserID, domain.Value); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domain": toAdminDomainResponse(domain),
		})
	}
}
