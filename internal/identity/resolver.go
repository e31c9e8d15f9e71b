package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolver turns a session credential into a Principal. API-key credentials
// are resolved by the apikey middleware, which builds the Principal itself.
type Resolver struct {
	pool     *pgxpool.Pool
	sessions SessionValidator
}

// NewResolver creates a new principal resolver.
func NewResolver(pool *pgxpool.Pool, sessions SessionValidator) *Resolver {
	return &Resolver{pool: pool, sessions: sessions}
}

// ResolveSession validates a session token and loads the user's platform role.
// A missing profile row defaults the role to USER instead of failing: the row
// is provisioned lazily on first dashboard use, and login must not break
// before that happens.
func (r *Resolver) ResolveSession(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	userID, email, err := r.sessions.ValidateSession(ctx, token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	principal := &Principal{
		UserID:       userID,
		Email:        email,
		Method:       MethodSession,
		PlatformRole: PlatformUser,
	}

	var role PlatformRole
	var storedEmail string
	err = r.pool.QueryRow(ctx, `
		SELECT platform_role, email
		FROM users
		WHERE id = $1
	`, userID).Scan(&role, &storedEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return principal, nil
		}
		return nil, fmt.Errorf("failed to load platform role: %w", err)
	}

	principal.PlatformRole = role
	if storedEmail != "" {
		principal.Email = storedEmail
	}

	return principal, nil
}
