package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/breachwatch/breachwatch/internal/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	// ErrOrgNotFound is returned when an organization is not found
	ErrOrgNotFound = errors.New("organization not found")

	// ErrSlugConflict is returned when an organization slug already exists
	ErrSlugConflict = errors.New("organization slug already exists")

	// ErrNotMember is returned when a user is not a member of an organization
	ErrNotMember = errors.New("user is not a member of this organization")

	// ErrInsufficientPermissions is returned when a user lacks required permissions
	ErrInsufficientPermissions = errors.New("insufficient permissions")

	// ErrPersonalOrg is returned when attempting to delete a personal organization
	ErrPersonalOrg = errors.New("personal organization cannot be deleted")
)

const orgColumns = `id, name, slug, created_by_user_id, is_personal, subscription_plan,
	       max_members, max_domains, max_monthly_searches, created_at, updated_at`

// Service provides organization-related operations
type Service struct {
	pool *pgxpool.Pool
}

// NewService creates a new organization service
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func scanOrg(row pgx.Row, org *Org) error {
	return row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.CreatedByUserID,
		&org.IsPersonal,
		&org.SubscriptionPlan,
		&org.MaxMembers,
		&org.MaxDomains,
		&org.MaxMonthlySearches,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
}

// GetByID retrieves an organization by ID
func (s *Service) GetByID(ctx context.Context, orgID uuid.UUID) (*Org, error) {
	var org Org

	query := `SELECT ` + orgColumns + ` FROM orgs WHERE id = $1`

	err := scanOrg(s.pool.QueryRow(ctx, query, orgID), &org)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// GetBySlug retrieves an organization by slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Org, error) {
	var org Org

	query := `SELECT ` + orgColumns + ` FROM orgs WHERE slug = $1`

	err := scanOrg(s.pool.QueryRow(ctx, query, slug), &org)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// ListUserOrgs retrieves all organizations for a user with their roles
func (s *Service) ListUserOrgs(ctx context.Context, userID uuid.UUID) ([]OrgWithRole, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.created_by_user_id, o.is_personal, o.subscription_plan,
		       o.max_members, o.max_domains, o.max_monthly_searches, o.created_at, o.updated_at,
		       m.role, m.status
		FROM orgs o
		INNER JOIN org_memberships m ON o.id = m.org_id
		WHERE m.user_id = $1
		ORDER BY o.created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user orgs: %w", err)
	}
	defer rows.Close()

	var orgs []OrgWithRole
	for rows.Next() {
		var org OrgWithRole
		err := rows.Scan(
			&org.ID,
			&org.Name,
			&org.Slug,
			&org.CreatedByUserID,
			&org.IsPersonal,
			&org.SubscriptionPlan,
			&org.MaxMembers,
			&org.MaxDomains,
			&org.MaxMonthlySearches,
			&org.CreatedAt,
			&org.UpdatedAt,
			&org.Role,
			&org.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan org: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating org rows: %w", err)
	}

	return orgs, nil
}

// CreateWithOwner creates a new organization and makes the user its OWNER.
// Both writes commit together; a failed membership insert rolls the
// organization back so no org is ever left ownerless.
func (s *Service) CreateWithOwner(ctx context.Context, name, slug string, userID uuid.UUID) (*Org, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var org Org
	query := `
		INSERT INTO orgs (name, slug, created_by_user_id)
		VALUES ($1, $2, $3)
		RETURNING ` + orgColumns + `
	`

	err = scanOrg(tx.QueryRow(ctx, query, name, slug, userID), &org)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	memberQuery := `
		INSERT INTO org_memberships (org_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
	`

	_, err = tx.Exec(ctx, memberQuery, org.ID, userID, RoleOwner, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &org, nil
}

// EnsurePersonalOrg returns the user's personal organization, creating it on
// first use. Safe under concurrent calls: the slug is unique and both inserts
// are conflict-tolerant.
func (s *Service) EnsurePersonalOrg(ctx context.Context, userID uuid.UUID) (*Org, error) {
	slug := PersonalSlug(userID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO orgs (name, slug, created_by_user_id, is_personal)
		VALUES ('Personal', $1, $2, TRUE)
		ON CONFLICT (slug) DO NOTHING
	`, slug, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure personal org: %w", err)
	}

	var org Org
	err = scanOrg(tx.QueryRow(ctx, `SELECT `+orgColumns+` FROM orgs WHERE slug = $1`, slug), &org)
	if err != nil {
		return nil, fmt.Errorf("failed to load personal org: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO org_memberships (org_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, user_id) DO NOTHING
	`, org.ID, userID, RoleOwner, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure personal membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &org, nil
}

// ListMembers retrieves all members of an organization
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]MemberInfo, error) {
	query := `
		SELECT m.user_id, u.email, m.role, m.status, m.created_at
		FROM org_memberships m
		INNER JOIN users u ON m.user_id = u.id
		WHERE m.org_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []MemberInfo
	for rows.Next() {
		var member MemberInfo
		err := rows.Scan(
			&member.UserID,
			&member.Email,
			&member.Role,
			&member.Status,
			&member.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}

	return members, nil
}

// RoleOf retrieves a user's role and status in an organization.
// Returns ErrNotMember if the user has no membership row.
func (s *Service) RoleOf(ctx context.Context, orgID, userID uuid.UUID) (OrgRole, MemberStatus, error) {
	var role OrgRole
	var status MemberStatus

	err := s.pool.QueryRow(ctx, `
		SELECT role, status FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
	`, orgID, userID).Scan(&role, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrNotMember
		}
		return "", "", fmt.Errorf("failed to get org role: %w", err)
	}

	return role, status, nil
}

// IsActiveMember reports whether the user holds an ACTIVE membership.
func (s *Service) IsActiveMember(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	_, status, err := s.RoleOf(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, ErrNotMember) {
			return false, nil
		}
		return false, err
	}
	return status == StatusActive, nil
}

// RequirePermission verifies the actor is an active member whose role grants
// the given permission. Returns the actor's role on success.
func (s *Service) RequirePermission(ctx context.Context, orgID, userID uuid.UUID, perm Permission) (OrgRole, error) {
	role, status, err := s.RoleOf(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if status != StatusActive {
		return "", ErrNotMember
	}
	if !Permits(role, perm) {
		log.Warn().
			Str("user_id", userID.String()).
			Str("org_id", orgID.String()).
			Str("role", string(role)).
			Str("permission", string(perm)).
			Msg("RBAC: insufficient permissions")
		return role, ErrInsufficientPermissions
	}
	return role, nil
}

// Delete removes an organization and everything scoped to it (memberships,
// domains, invitations, audit log) via foreign-key cascade in one statement.
// Only an OWNER may delete, and personal organizations are not deletable.
func (s *Service) Delete(ctx context.Context, orgID, actorUserID uuid.UUID) error {
	if _, err := s.RequirePermission(ctx, orgID, actorUserID, PermDeleteOrg); err != nil {
		return err
	}

	org, err := s.GetByID(ctx, orgID)
	if err != nil {
		return err
	}
	if org.IsPersonal {
		return ErrPersonalOrg
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM orgs WHERE id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrgNotFound
	}

	return nil
}
