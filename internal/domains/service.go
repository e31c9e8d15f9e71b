package domains

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/db"
	"github.com/breachwatch/breachwatch/internal/orgs"
)

var (
	ErrDomainNotFound  = errors.New("domain not found")
	ErrDuplicateDomain = errors.New("domain already registered")
	ErrInvalidKind     = errors.New("invalid domain kind")
	ErrQuotaExceeded   = errors.New("domain quota exceeded")
)

const domainColumns = `id, value, kind, owner_user_id, org_id, added_by_user_id,
	visibility, is_verified, verified_at, created_at, updated_at`

// Partial unique index names from the schema; postgres reports them as the
// constraint name on duplicate inserts.
const (
	userOwnerConstraint = "uniq_domains_user_owner"
	orgOwnerConstraint  = "uniq_domains_org_owner"
)

func scanDomain(row pgx.Row) (*Domain, error) {
	var d Domain
	err := row.Scan(
		&d.ID, &d.Value, &d.Kind, &d.OwnerUserID, &d.OrgID, &d.AddedByUserID,
		&d.Visibility, &d.IsVerified, &d.VerifiedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Service manages the domain registry.
type Service struct {
	pool *pgxpool.Pool
	orgs *orgs.Service
}

// NewService creates a domain service.
func NewService(pool *pgxpool.Pool, orgService *orgs.Service) *Service {
	return &Service{pool: pool, orgs: orgService}
}

// AddDirect registers a domain owned by a single user. The same (value, kind)
// pair may exist at most once per owner.
func (s *Service) AddDirect(ctx context.Context, userID uuid.UUID, rawValue string, kind Kind) (*Domain, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidKind
	}
	value, err := Normalize(rawValue)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO domains (value, kind, owner_user_id, added_by_user_id, visibility)
		VALUES ($1, $2, $3, $3, 'DIRECT')
		RETURNING `+domainColumns,
		value, kind, userID,
	)

	domain, err := scanDomain(row)
	if err != nil {
		if db.IsUniqueViolation(err, userOwnerConstraint) {
			return nil, ErrDuplicateDomain
		}
		return nil, fmt.Errorf("insert domain: %w", err)
	}

	log.Info().
		Str("domain_id", domain.ID.String()).
		Str("value", domain.Value).
		Str("kind", string(domain.Kind)).
		Str("user_id", userID.String()).
		Msg("domain registered")

	return domain, nil
}

// AddToOrg registers a domain under an organization. The actor must hold the
// manage-domains permission, and the org's domain quota is enforced under a
// row lock so concurrent adds cannot overshoot it.
func (s *Service) AddToOrg(ctx context.Context, orgID, actorUserID uuid.UUID, rawValue string, kind Kind, visibility Visibility) (*Domain, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if visibility == "" {
		visibility = VisibilityOrganization
	}
	if !visibility.IsValid() {
		return nil, fmt.Errorf("invalid visibility %q", visibility)
	}
	value, err := Normalize(rawValue)
	if err != nil {
		return nil, err
	}

	if _, err := s.orgs.RequirePermission(ctx, orgID, actorUserID, orgs.PermManageDomains); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxDomains int
	err = tx.QueryRow(ctx, `SELECT max_domains FROM orgs WHERE id = $1 FOR UPDATE`, orgID).Scan(&maxDomains)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, orgs.ErrOrgNotFound
		}
		return nil, fmt.Errorf("lock org row: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM domains WHERE org_id = $1`, orgID).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count org domains: %w", err)
	}
	if count >= maxDomains {
		return nil, ErrQuotaExceeded
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO domains (value, kind, org_id, added_by_user_id, visibility)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+domainColumns,
		value, kind, orgID, actorUserID, visibility,
	)

	domain, err := scanDomain(row)
	if err != nil {
		if db.IsUniqueViolation(err, orgOwnerConstraint) {
			return nil, ErrDuplicateDomain
		}
		return nil, fmt.Errorf("insert org domain: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	log.Info().
		Str("domain_id", domain.ID.String()).
		Str("value", domain.Value).
		Str("kind", string(domain.Kind)).
		Str("org_id", orgID.String()).
		Str("actor_user_id", actorUserID.String()).
		Msg("org domain registered")

	return domain, nil
}

// GetByID loads a single domain.
func (s *Service) GetByID(ctx context.Context, domainID uuid.UUID) (*Domain, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+domainColumns+` FROM domains WHERE id = $1`, domainID)
	domain, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return domain, nil
}

// GetByValueKind looks a domain up by its normalized value and kind within a
// single owner scope: pass exactly one of userID / orgID.
func (s *Service) GetByValueKind(ctx context.Context, rawValue string, kind Kind, userID, orgID uuid.NullUUID) (*Domain, error) {
	value, err := Normalize(rawValue)
	if err != nil {
		return nil, err
	}

	var row pgx.Row
	switch {
	case userID.Valid:
		row = s.pool.QueryRow(ctx,
			`SELECT `+domainColumns+` FROM domains WHERE value = $1 AND kind = $2 AND owner_user_id = $3`,
			value, kind, userID.UUID)
	case orgID.Valid:
		row = s.pool.QueryRow(ctx,
			`SELECT `+domainColumns+` FROM domains WHERE value = $1 AND kind = $2 AND org_id = $3`,
			value, kind, orgID.UUID)
	default:
		return nil, ErrDomainNotFound
	}

	domain, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("get domain by value: %w", err)
	}
	return domain, nil
}

// ListAccessible returns every domain the user can see on their dashboard:
// directly owned domains, org-visible domains in orgs where they are an
// active member, and direct-visibility org domains they added themselves or
// administer.
func (s *Service) ListAccessible(ctx context.Context, userID uuid.UUID) ([]Domain, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+domainColumns+`
		FROM domains d
		WHERE d.owner_user_id = $1
		   OR EXISTS (
			SELECT 1 FROM org_memberships m
			WHERE m.org_id = d.org_id
			  AND m.user_id = $1
			  AND m.status = 'ACTIVE'
			  AND (
				d.visibility = 'ORGANIZATION'
				OR d.added_by_user_id = $1
				OR m.role IN ('OWNER', 'ADMIN')
			  )
		   )
		ORDER BY d.value, d.kind`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list accessible domains: %w", err)
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

// ListByOrg returns an organization's domains. The caller must be an active
// member; members without the manage-domains permission still see the
// org-visible subset plus anything they added themselves.
func (s *Service) ListByOrg(ctx context.Context, orgID, userID uuid.UUID) ([]Domain, error) {
	role, _, err := s.orgs.RoleOf(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + domainColumns + ` FROM domains WHERE org_id = $1 ORDER BY value, kind`
	args := []any{orgID}
	if role != orgs.RoleOwner && role != orgs.RoleAdmin {
		query = `SELECT ` + domainColumns + ` FROM domains
			WHERE org_id = $1 AND (visibility = 'ORGANIZATION' OR added_by_user_id = $2)
			ORDER BY value, kind`
		args = append(args, userID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list org domains: %w", err)
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

// SetVisibility switches an org domain between DIRECT and ORGANIZATION. Only
// holders of the manage-domains permission may change it; directly owned
// domains are always DIRECT.
func (s *Service) SetVisibility(ctx context.Context, domainID, actorUserID uuid.UUID, visibility Visibility) (*Domain, error) {
	if !visibility.IsValid() {
		return nil, fmt.Errorf("invalid visibility %q", visibility)
	}

	domain, err := s.GetByID(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if !domain.OrgID.Valid {
		return nil, fmt.Errorf("visibility is fixed for directly owned domains")
	}
	if _, err := s.orgs.RequirePermission(ctx, domain.OrgID.UUID, actorUserID, orgs.PermManageDomains); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE domains SET visibility = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+domainColumns,
		domainID, visibility,
	)
	return scanDomain(row)
}

// Delete removes a domain. Direct owners delete their own; org domains
// require the manage-domains permission. Usage counters cascade away with it.
func (s *Service) Delete(ctx context.Context, domainID, actorUserID uuid.UUID) error {
	domain, err := s.GetByID(ctx, domainID)
	if err != nil {
		return err
	}

	if domain.OrgID.Valid {
		if _, err := s.orgs.RequirePermission(ctx, domain.OrgID.UUID, actorUserID, orgs.PermManageDomains); err != nil {
			return err
		}
	} else if domain.OwnerUserID.UUID != actorUserID {
		return orgs.ErrInsufficientPermissions
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM domains WHERE id = $1`, domainID)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDomainNotFound
	}

	log.Info().
		Str("domain_id", domainID.String()).
		Str("actor_user_id", actorUserID.String()).
		Msg("domain removed")

	return nil
}
