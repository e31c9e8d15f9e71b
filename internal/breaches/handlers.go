package breaches

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/analytics"
	"github.com/breachwatch/breachwatch/internal/apikey"
	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/authz"
	"github.com/breachwatch/breachwatch/internal/domains"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
	"github.com/breachwatch/breachwatch/internal/usage"
	"github.com/go-chi/chi/v5"
)

const maxPageSize = 100

func newEngine(pool *pgxpool.Pool, previewCap int) *authz.Engine {
	return authz.NewEngine(authz.OrgMemberships{Orgs: orgs.NewService(pool)}, previewCap)
}

func writeVerdictDenial(w http.ResponseWriter, r *http.Request, reason authz.DenyReason) {
	switch reason {
	case authz.ReasonNotOwner:
		// The domain's existence is not disclosed to non-owners.
		apperrors.WriteNotFound(w, r, "Domain not found")
	case authz.ReasonInsufficientVisibility:
		apperrors.WriteForbidden(w, r, "You do not have access to this domain")
	case authz.ReasonDomainNotVerified:
		apperrors.WriteError(w, r, http.StatusForbidden, "domain_not_verified", "Domain ownership has not been verified")
	default:
		apperrors.WriteForbidden(w, r, "Access denied")
	}
}

// HandlePreview handles GET /api/v1/domains/{domain_id}/breaches
// Session-authenticated dashboard view. Unverified domains return a capped
// preview with search disabled; previews are never metered.
func HandlePreview(pool *pgxpool.Pool, client analytics.Client, previewCap int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		domainID, err := uuid.Parse(chi.URLParam(r, "domain_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid domain ID")
			return
		}

		domainService := domains.NewService(pool, orgs.NewService(pool))
		domain, err := domainService.GetByID(ctx, domainID)
		if err != nil {
			if errors.Is(err, domains.ErrDomainNotFound) {
				apperrors.WriteNotFound(w, r, "Domain not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load domain")
			apperrors.WriteInternalError(w, r, "Failed to load domain")
			return
		}

		verdict, err := newEngine(pool, previewCap).Authorize(ctx, *p, domain, authz.ActionDashboardPreview)
		if err != nil {
			log.Error().Err(err).Msg("Authorization check failed")
			apperrors.WriteInternalError(w, r, "Authorization check failed")
			return
		}
		if !verdict.Allowed {
			writeVerdictDenial(w, r, verdict.Reason)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > maxPageSize {
			limit = maxPageSize
		}
		search := r.URL.Query().Get("search")

		restricted := verdict.Restriction != nil
		if restricted {
			if limit > verdict.Restriction.MaxRecords {
				limit = verdict.Restriction.MaxRecords
			}
			if verdict.Restriction.SearchDisabled {
				search = ""
			}
		}

		result, err := client.FetchBreaches(ctx, analytics.Query{
			DomainValue: domain.Value,
			Kind:        string(domain.Kind),
			Limit:       limit,
			Search:      search,
		})
		if err != nil {
			if errors.Is(err, analytics.ErrUnavailable) {
				apperrors.WriteServiceUnavailable(w, r, "Breach data is temporarily unavailable")
				return
			}
			log.Error().Err(err).Msg("Failed to fetch breach data")
			apperrors.WriteInternalError(w, r, "Failed to fetch breach data")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domain_id":  domain.ID,
			"records":    result.Records,
			"total":      result.Total,
			"restricted": restricted,
		})
	}
}

// HandleDataAccess handles GET /api/v1/breaches
// API-key-authenticated programmatic retrieval. Only verified domains are
// served; every successful request is metered against the key.
func HandleDataAccess(pool *pgxpool.Pool, client analytics.Client, usageService *usage.Service, previewCap int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)
		key := apikey.GetAPIKey(ctx)
		if key == nil {
			apperrors.WriteUnauthorized(w, r, "API key required")
			return
		}

		domainID, err := uuid.Parse(r.URL.Query().Get("domain_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "A valid domain_id query parameter is required")
			return
		}

		domainService := domains.NewService(pool, orgs.NewService(pool))
		domain, err := domainService.GetByID(ctx, domainID)
		if err != nil {
			if errors.Is(err, domains.ErrDomainNotFound) {
				apperrors.WriteNotFound(w, r, "Domain not found")
				return
			}
			log.Error().Err(err).Msg("Failed to load domain")
			apperrors.WriteInternalError(w, r, "Failed to load domain")
			return
		}

		verdict, err := newEngine(pool, previewCap).Authorize(ctx, *p, domain, authz.ActionDataAccess)
		if err != nil {
			log.Error().Err(err).Msg("Authorization check failed")
			apperrors.WriteInternalError(w, r, "Authorization check failed")
			return
		}
		if !verdict.Allowed {
			writeVerdictDenial(w, r, verdict.Reason)
			return
		}

		over, snap, err := usageService.OverQuota(ctx, key.ID, domain)
		if err != nil {
			log.Error().Err(err).Msg("Failed to check usage quota")
			apperrors.WriteInternalError(w, r, "Failed to check usage quota")
			return
		}
		writeUsageHeaders(w, snap)
		if over {
			apperrors.WriteTooManyRequests(w, r, "Monthly search quota exhausted for this domain")
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 || limit > maxPageSize {
			limit = maxPageSize
		}

		result, err := client.FetchBreaches(ctx, analytics.Query{
			DomainValue: domain.Value,
			Kind:        string(domain.Kind),
			Limit:       limit,
			Search:      r.URL.Query().Get("search"),
		})
		if err != nil {
			if errors.Is(err, analytics.ErrUnavailable) {
				apperrors.WriteServiceUnavailable(w, r, "Breach data is temporarily unavailable")
				return
			}
			log.Error().Err(err).Msg("Failed to fetch breach data")
			apperrors.WriteInternalError(w, r, "Failed to fetch breach data")
			return
		}

		usageService.Record(ctx, key.ID, domain.ID, len(result.Records))

		// Refresh headers so the response reflects this request.
		if snap, err := usageService.SnapshotFor(ctx, key.ID, domain); err == nil {
			writeUsageHeaders(w, snap)
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"domain_id": domain.ID,
			"records":   result.Records,
			"total":     result.Total,
		})
	}
}

func writeUsageHeaders(w http.ResponseWriter, snap usage.Snapshot) {
	w.Header().Set("X-Usage-Day", strconv.FormatInt(snap.DayRequests, 10))
	w.Header().Set("X-Usage-Month", strconv.FormatInt(snap.MonthRequests, 10))
	w.Header().Set("X-Usage-Limit", strconv.Itoa(snap.MonthLimit))
	w.Header().Set("X-Usage-Remaining", strconv.FormatInt(snap.Remaining, 10))
}
