package domains

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/identity"
)

// ErrAdminRequired is returned when a non-admin principal attempts to change
// a domain's verification state.
var ErrAdminRequired = errors.New("platform admin required")

// Verify marks a domain as verified. Only platform admins may do this; the
// operation is idempotent and keeps the original verified_at on repeat calls.
func (s *Service) Verify(ctx context.Context, domainID uuid.UUID, actor identity.Principal) (*Domain, error) {
	if !actor.PlatformRole.IsAdmin() {
		return nil, ErrAdminRequired
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE domains
		SET is_verified = TRUE,
		    verified_at = COALESCE(verified_at, NOW()),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+domainColumns,
		domainID,
	)

	domain, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("verify domain: %w", err)
	}

	log.Info().
		Str("domain_id", domainID.String()).
		Str("value", domain.Value).
		Str("actor_user_id", actor.UserID.String()).
		Msg("domain verified")

	return domain, nil
}

// Unverify reverts a domain to the unverified state, clearing verified_at so
// a later Verify stamps a fresh timestamp. Platform admins only.
func (s *Service) Unverify(ctx context.Context, domainID uuid.UUID, actor identity.Principal) (*Domain, error) {
	if !actor.PlatformRole.IsAdmin() {
		return nil, ErrAdminRequired
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE domains
		SET is_verified = FALSE,
		    verified_at = NULL,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+domainColumns,
		domainID,
	)

	domain, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("unverify domain: %w", err)
	}

	log.Info().
		Str("domain_id", domainID.String()).
		Str("value", domain.Value).
		Str("actor_user_id", actor.UserID.String()).
		Msg("domain unverified")

	return domain, nil
}

// ListAll returns the full registry page for platform admins, optionally
// filtered to unverified domains only.
func (s *Service) ListAll(ctx context.Context, actor identity.Principal, unverifiedOnly bool, limit, offset int) ([]Domain, error) {
	if !actor.PlatformRole.IsAdmin() {
		return nil, ErrAdminRequired
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + domainColumns + ` FROM domains ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if unverifiedOnly {
		query = `SELECT ` + domainColumns + ` FROM domains WHERE is_verified = FALSE ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	}

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var result []Domain
	for rows.Next() {
		var d Domain
		err := rows.Scan(
			&d.ID, &d.Value, &d.Kind, &d.OwnerUserID, &d.OrgID, &d.AddedByUserID,
			&d.Visibility, &d.IsVerified, &d.VerifiedAt, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
