package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/orgs"
	"github.com/breachwatch/breachwatch/internal/validation"
)

var (
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, email, platform_role, current_org_id, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PlatformRole, &u.CurrentOrgID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Service provides user account operations.
type Service struct {
	pool *pgxpool.Pool
	orgs *orgs.Service
}

// NewService creates a user service.
func NewService(pool *pgxpool.Pool, orgService *orgs.Service) *Service {
	return &Service{pool: pool, orgs: orgService}
}

// EnsureUser upserts the account for an email and guarantees its personal org
// exists. Called on first authenticated contact with an identity.
func (s *Service) EnsureUser(ctx context.Context, rawEmail string) (*User, error) {
	email, err := validation.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING `+userColumns,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	if _, err := s.orgs.EnsurePersonalOrg(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("ensure personal org: %w", err)
	}

	return user, nil
}

// GetByID loads a user.
func (s *Service) GetByID(ctx context.Context, userID uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// SetCurrentOrg switches the user's active organization context. The user
// must be an active member of the target org.
func (s *Service) SetCurrentOrg(ctx context.Context, userID, orgID uuid.UUID) error {
	ok, err := s.orgs.IsActiveMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return orgs.ErrNotMember
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET current_org_id = $2, updated_at = NOW() WHERE id = $1`,
		userID, orgID,
	)
	if err != nil {
		return fmt.Errorf("set current org: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user account in a single transaction. For every org where
// the user is the last active owner, ownership passes to the earliest active
// admin, then the earliest active member; an org with no other active members
// is deleted outright. Memberships, domains, API keys and usage cascade.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var email string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	// Orgs where the departing user holds an active OWNER seat.
	rows, err := tx.Query(ctx, `
		SELECT org_id FROM org_memberships
		WHERE user_id = $1 AND role = 'OWNER' AND status = 'ACTIVE'
		FOR UPDATE`,
		userID,
	)
	if err != nil {
		return "", fmt.Errorf("load owned orgs: %w", err)
	}
	var ownedOrgIDs []uuid.UUID
	for rows.Next() {
		var orgID uuid.UUID
		if err := rows.Scan(&orgID); err != nil {
			rows.Close()
			return "", fmt.Errorf("scan org id: %w", err)
		}
		ownedOrgIDs = append(ownedOrgIDs, orgID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate owned orgs: %w", err)
	}

	for _, orgID := range ownedOrgIDs {
		if err := s.settleOwnership(ctx, tx, orgID, userID); err != nil {
			return "", err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return "", fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("email", email).
		Msg("user account deleted")

	return email, nil
}

// settleOwnership hands an org to a successor before the departing owner's
// membership row cascades away, or deletes the org when nobody is left.
func (s *Service) settleOwnership(ctx context.Context, tx pgx.Tx, orgID, departingUserID uuid.UUID) error {
	var otherOwners int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM org_memberships
		WHERE org_id = $1 AND role = 'OWNER' AND status = 'ACTIVE' AND user_id <> $2`,
		orgID, departingUserID,
	).Scan(&otherOwners)
	if err != nil {
		return fmt.Errorf("count remaining owners: %w", err)
	}
	if otherOwners > 0 {
		return nil
	}

	var successorID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM org_memberships
		WHERE org_id = $1 AND status = 'ACTIVE' AND user_id <> $2
		ORDER BY
			CASE role WHEN 'ADMIN' THEN 0 WHEN 'MEMBER' THEN 1 ELSE 2 END,
			created_at
		LIMIT 1`,
		orgID, departingUserID,
	).Scan(&successorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Last soul in the org; the org goes with them.
			if _, err := tx.Exec(ctx, `DELETE FROM orgs WHERE id = $1`, orgID); err != nil {
				return fmt.Errorf("delete emptied org: %w", err)
			}
			return nil
		}
		return fmt.Errorf("find successor: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE org_memberships
		SET role = 'OWNER', updated_at = NOW()
		WHERE org_id = $1 AND user_id = $2`,
		orgID, successorID,
	)
	if err != nil {
		return fmt.Errorf("promote successor: %w", err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("successor_user_id", successorID.String()).
		Msg("org ownership transferred")

	return nil
}
