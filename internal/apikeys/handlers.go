package apikeys

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
)

// CreateKeyRequest represents the request to create an API key
type CreateKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// SetActiveRequest toggles a key on or off.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

func keyIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "key_id"))
}

// HandleCreate handles POST /api/v1/api-keys
func HandleCreate(pool *pgxpool.Pool, auditor *audit.Writer, encKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		var req CreateKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if req.Name == "" {
			apperrors.WriteBadRequest(w, r, "Key name is required")
			return
		}
		if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
			apperrors.WriteBadRequest(w, r, "Expiry must be in the future")
			return
		}

		service := NewService(pool, encKey)
		key, token, err := service.Create(ctx, p.UserID, req.Name, req.ExpiresAt)
		if err != nil {
			if errors.Is(err, ErrNameConflict) {
				apperrors.WriteConflict(w, r, "An API key with that name already exists")
				return
			}
			log.Error().Err(err).Msg("Failed to create API key")
			apperrors.WriteInternalError(w, r, "Failed to create API key")
			return
		}

		if err := auditor.LogAPIKeyCreated(ctx, key.ID, p.UserID, key.Name); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"api_key": key.ToCreatedResponse(token),
		})
	}
}

// HandleList handles GET /api/v1/api-keys
func HandleList(pool *pgxpool.Pool, encKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		service := NewService(pool, encKey)
		keys, err := service.ListByUser(ctx, p.UserID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list API keys")
			apperrors.WriteInternalError(w, r, "Failed to list API keys")
			return
		}

		resp := make([]ApiKeyListItemResponse, len(keys))
		for i := range keys {
			resp[i] = keys[i].ToListItemResponse()
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"api_keys": resp,
		})
	}
}

// HandleReveal handles GET /api/v1/api-keys/{key_id}/token
func HandleReveal(pool *pgxpool.Pool, encKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		keyID, err := keyIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid API key ID")
			return
		}

		service := NewService(pool, encKey)
		token, err := service.Reveal(ctx, keyID, p.UserID)
		if err != nil {
			if errors.Is(err, ErrAPIKeyNotFound) {
				apperrors.WriteNotFound(w, r, "API key not found")
				return
			}
			log.Error().Err(err).Msg("Failed to reveal API key")
			apperrors.WriteInternalError(w, r, "Failed to reveal API key")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"token": token,
		})
	}
}

// HandleSetActive handles PUT /api/v1/api-keys/{key_id}/active
func HandleSetActive(pool *pgxpool.Pool, auditor *audit.Writer, encKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		keyID, err := keyIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid API key ID")
			return
		}

		var req SetActiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		service := NewService(pool, encKey)
		if err := service.SetActive(ctx, keyID, p.UserID, req.Active); err != nil {
			if errors.Is(err, ErrAPIKeyNotFound) {
				apperrors.WriteNotFound(w, r, "API key not found")
				return
			}
			log.Error().Err(err).Msg("Failed to update API key")
			apperrors.WriteInternalError(w, r, "Failed to update API key")
			return
		}

		if err := auditor.LogAPIKeyActiveToggled(ctx, keyID, p.UserID, req.Active); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"id":     keyID,
			"active": req.Active,
		})
	}
}

// HandleDelete handles DELETE /api/v1/api-keys/{key_id}
func HandleDelete(pool *pgxpool.Pool, auditor *audit.Writer, encKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := identity.PrincipalFrom(ctx)

		keyID, err := keyIDParam(r)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid API key ID")
			return
		}

		service := NewService(pool, encKey)
		key, err := service.GetByID(ctx, keyID)
		if err != nil || key.UserID != p.UserID {
			apperrors.WriteNotFound(w, r, "API key not found")
			return
		}

		if err := service.Delete(ctx, keyID, p.UserID); err != nil {
			if errors.Is(err, ErrAPIKeyNotFound) {
				apperrors.WriteNotFound(w, r, "API key not found")
				return
			}
			log.Error().Err(err).Msg("Failed to delete API key")
			apperrors.WriteInternalError(w, r, "Failed to delete API key")
			return
		}

		if err := auditor.LogAPIKeyDeleted(ctx, keyID, p.UserID, key.Name); err != nil {
			log.Error().Err(err).Msg("Failed to log audit event")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"deleted": true,
		})
	}
}
