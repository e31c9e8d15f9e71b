package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breachwatch/breachwatch/internal/analytics"
	"github.com/breachwatch/breachwatch/internal/apikey"
	"github.com/breachwatch/breachwatch/internal/apikeys"
	"github.com/breachwatch/breachwatch/internal/apperrors"
	"github.com/breachwatch/breachwatch/internal/audit"
	"github.com/breachwatch/breachwatch/internal/breaches"
	"github.com/breachwatch/breachwatch/internal/config"
	"github.com/breachwatch/breachwatch/internal/db"
	"github.com/breachwatch/breachwatch/internal/domains"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
	"github.com/breachwatch/breachwatch/internal/usage"
	"github.com/breachwatch/breachwatch/internal/users"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, analyticsClient analytics.Client) *chi.Mux {
	r := chi.NewRouter()

	isProduction := !cfg.IsDev()
	inviteTTL := time.Duration(cfg.InviteTTLDays) * 24 * time.Hour

	resolver := identity.NewResolver(pool, identity.NewJWTValidator(cfg.SessionSecret))
	keyService := apikeys.NewService(pool, cfg.APIKeyEncKey)
	usageService := usage.NewService(pool, cfg.DefaultMaxSearches)

	// Middleware stack
	r.Use(middleware.RealIP)         // Set RemoteAddr to real IP
	r.Use(RequestIDMiddleware)       // Add request ID to context
	r.Use(LoggingMiddleware)         // Structured request logging
	r.Use(RecoveryMiddleware)        // Recover from panics
	r.Use(cors.Handler(cors.Options{ // CORS (pinned dep)
		AllowedOrigins:   []string{cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(identity.SessionMiddleware(resolver)) // Resolve session cookies

	// Audit writer (shared across API routes)
	auditor := audit.NewWriter(pool)

	// Health check routes (no authentication required)
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// API routes - Session lifecycle
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.With(SessionRateLimitMiddleware()).Post("/session", users.HandleStartSession(pool, cfg.SessionSecret, cfg.SessionDays, isProduction))
		r.With(identity.RequireAuth).Post("/logout", users.HandleEndSession())
	})

	// API routes - Current user
	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(identity.RequireAuth)

		r.Get("/", users.HandleMe(pool))
		r.Put("/current-org", users.HandleSetCurrentOrg(pool))
		r.Delete("/", users.HandleDeleteAccount(pool, auditor))
	})

	// API routes - Organizations
	r.Route("/api/v1/orgs", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(identity.RequireAuth)

		// Organization CRUD
		r.Post("/", orgs.HandleCreate(pool, auditor))
		r.Get("/", orgs.HandleList(pool))
		r.Delete("/{org_id}", orgs.HandleDelete(pool, auditor))

		// Organization members
		r.Get("/{org_id}/members", orgs.HandleListMembers(pool))
		r.Put("/{org_id}/members/{user_id}/role", orgs.HandleUpdateMemberRole(pool, auditor))
		r.Delete("/{org_id}/members/{user_id}", orgs.HandleRemoveMember(pool, auditor))
		r.Post("/{org_id}/members/{user_id}/suspend", orgs.HandleSuspendMember(pool, auditor))

		// Invitations
		r.Post("/{org_id}/invites", orgs.HandleCreateInvite(pool, auditor, inviteTTL))
		r.Get("/{org_id}/invites", orgs.HandleListInvites(pool))
		r.Delete("/{org_id}/invites/{invite_id}", orgs.HandleCancelInvite(pool, auditor))

		// Domains under organization
		r.Post("/{org_id}/domains", domains.HandleAddToOrg(pool, auditor))
		r.Get("/{org_id}/domains", domains.HandleListOrgDomains(pool))

		// Audit log
		r.Get("/{org_id}/audit", orgs.HandleListAuditLog(pool))
	})

	// API routes - Invitation acceptance (any authenticated user)
	r.Route("/api/v1/invites", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(identity.RequireAuth)

		r.Post("/accept", orgs.HandleAcceptInvite(pool, auditor))
	})

	// API routes - Domains
	r.Route("/api/v1/domains", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(identity.RequireAuth)

		r.Post("/", domains.HandleAddDirect(pool, auditor))
		r.Get("/", domains.HandleListAccessible(pool))
		r.Put("/{domain_id}/visibility", domains.HandleSetVisibility(pool, auditor))
		r.Delete("/{domain_id}", domains.HandleDelete(pool, auditor))

		// Dashboard breach preview
		r.Get("/{domain_id}/breaches", breaches.HandlePreview(pool, analyticsClient, cfg.PreviewRecordCap))
	})

	// API routes - API keys
	r.Route("/api/v1/api-keys", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(identity.RequireAuth)

		r.Post("/", apikeys.HandleCreate(pool, auditor, cfg.APIKeyEncKey))
		r.Get("/", apikeys.HandleList(pool, cfg.APIKeyEncKey))
		r.Get("/{key_id}/token", apikeys.HandleReveal(pool, cfg.APIKeyEncKey))
		r.Put("/{key_id}/active", apikeys.HandleSetActive(pool, auditor, cfg.APIKeyEncKey))
		r.Delete("/{key_id}", apikeys.HandleDelete(pool, auditor, cfg.APIKeyEncKey))
	})

	// API routes - Programmatic breach data (require API key authentication)
	r.Route("/api/v1/breaches", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(apikey.RequireAPIKey(pool, keyService))
		r.Use(apikey.RateLimitByAPIKey(cfg.RateLimitRPM))

		r.Get("/", breaches.HandleDataAccess(pool, analyticsClient, usageService, cfg.PreviewRecordCap))
	})

	// API routes - Platform admin registry
	r.Route("/api/v1/admin/domains", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(identity.RequirePlatformAdmin)

		r.Get("/", domains.HandleAdminList(pool))
		r.Post("/{domain_id}/verify", domains.HandleAdminVerify(pool, auditor))
		r.Post("/{domain_id}/unverify", domains.HandleAdminUnverify(pool, auditor))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check database connectivity, riding out transient hiccups
		_, err := db.Retry(r.Context(), func() (struct{}, error) {
			return struct{}{}, pool.Ping(r.Context())
		})
		if err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
