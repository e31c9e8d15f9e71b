package apikey

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breachwatch/breachwatch/internal/apikeys"
	"github.com/breachwatch/breachwatch/internal/identity"
)

var (
	// ErrMissingAPIKey is returned when no API key is provided
	ErrMissingAPIKey = errors.New("missing API key in Authorization header")

	// ErrInvalidAPIKey is returned when the API key is invalid
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInactiveAPIKey is returned when the API key has been deactivated
	ErrInactiveAPIKey = errors.New("API key is inactive")

	// ErrExpiredAPIKey is returned when the API key has expired
	ErrExpiredAPIKey = errors.New("API key has expired")
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// contextKeyAPIKey is the context key for storing the authenticated API key
const contextKeyAPIKey contextKey = "apikey"

// ExtractAPIKey extracts the API key token from the Authorization header
// Expected format: "Authorization: Bearer <token>"
func ExtractAPIKey(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAPIKey
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format, expected 'Bearer <token>'")
	}

	token := parts[1]
	if token == "" {
		return "", ErrMissingAPIKey
	}

	return token, nil
}

// ValidateAPIKey validates an API key token and returns the API key plus the
// principal of its owner.
func ValidateAPIKey(ctx context.Context, pool *pgxpool.Pool, keys *apikeys.Service, token string) (*apikeys.ApiKey, identity.Principal, error) {
	if !apikeys.ValidateTokenFormat(token) {
		return nil, identity.Principal{}, ErrInvalidAPIKey
	}

	key, err := keys.GetByTokenHash(ctx, apikeys.HashToken(token))
	if err != nil {
		if errors.Is(err, apikeys.ErrAPIKeyNotFound) {
			return nil, identity.Principal{}, ErrInvalidAPIKey
		}
		return nil, identity.Principal{}, fmt.Errorf("failed to validate API key: %w", err)
	}

	if !key.Active {
		return nil, identity.Principal{}, ErrInactiveAPIKey
	}
	if key.IsExpired() {
		return nil, identity.Principal{}, ErrExpiredAPIKey
	}

	var email string
	var platformRole identity.PlatformRole
	err = pool.QueryRow(ctx, `SELECT email, platform_role FROM users WHERE id = $1`, key.UserID).
		Scan(&email, &platformRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.Principal{}, ErrInvalidAPIKey
		}
		return nil, identity.Principal{}, fmt.Errorf("failed to load key owner: %w", err)
	}

	principal := identity.Principal{
		UserID:       key.UserID,
		Email:        email,
		Method:       identity.MethodAPIKey,
		PlatformRole: platformRole,
		APIKeyID:     key.ID,
	}

	return key, principal, nil
}

// WithAPIKey adds the API key to the request context
func WithAPIKey(ctx context.Context, key *apikeys.ApiKey) context.Context {
	return context.WithValue(ctx, contextKeyAPIKey, key)
}

// GetAPIKey retrieves the API key from the request context
func GetAPIKey(ctx context.Context) *apikeys.ApiKey {
	key, ok := ctx.Value(contextKeyAPIKey).(*apikeys.ApiKey)
	if !ok {
		return nil
	}
	return key
}
