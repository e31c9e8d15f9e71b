package orgs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/breachwatch/breachwatch/internal/validation"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const inviteColumns = `id, org_id, email, role, token, status, invited_by_user_id, created_at, expires_at`

func scanInvite(row pgx.Row, inv *Invite) error {
	return row.Scan(
		&inv.ID,
		&inv.OrgID,
		&inv.Email,
		&inv.Role,
		&inv.Token,
		&inv.Status,
		&inv.InvitedBy,
		&inv.CreatedAt,
		&inv.ExpiresAt,
	)
}

// CreateInvite creates a pending invitation for an email address. If a
// pending invitation already exists for the same (org, email) the existing
// row is returned unchanged: duplicate invites are idempotent reads, and two
// concurrent creates converge on a single row via the partial unique index.
// The returned bool reports whether a new row was inserted.
func (s *Service) CreateInvite(ctx context.Context, orgID, actorUserID uuid.UUID, email string, role OrgRole, ttl time.Duration) (*Invite, bool, error) {
	email, err := validation.NormalizeEmail(email)
	if err != nil {
		return nil, false, err
	}

	if !role.IsValid() {
		return nil, false, ErrInvalidOrgRole
	}
	if role == RoleOwner {
		// Exactly one owner per org; ownership changes hands explicitly,
		// never through an invitation.
		return nil, false, ErrCannotInviteOwner
	}

	actorRole, err := s.RequirePermission(ctx, orgID, actorUserID, PermInviteMembers)
	if err != nil {
		return nil, false, err
	}
	if role == RoleAdmin && !Permits(actorRole, PermManageAdmins) {
		return nil, false, ErrInsufficientPermissions
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lazy expiry: an overdue pending invite must not satisfy the
	// insert-or-fetch below.
	_, err = tx.Exec(ctx, `
		UPDATE org_invites
		SET status = $3
		WHERE org_id = $1 AND email = $2 AND status = $4 AND expires_at <= NOW()
	`, orgID, email, InviteExpired, InvitePending)
	if err != nil {
		return nil, false, fmt.Errorf("failed to expire stale invites: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM org_memberships m
			INNER JOIN users u ON u.id = m.user_id
			WHERE m.org_id = $1 AND lower(u.email) = $2 AND m.status = $3
		)
	`, orgID, email, StatusActive).Scan(&exists)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check membership: %w", err)
	}
	if exists {
		return nil, false, ErrAlreadyMember
	}

	token, err := GenerateInviteToken()
	if err != nil {
		return nil, false, err
	}

	expiresAt := time.Now().UTC().Add(ttl)

	var invite Invite
	err = scanInvite(tx.QueryRow(ctx, `
		INSERT INTO org_invites (org_id, email, role, token, invited_by_user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (org_id, email) WHERE status = 'PENDING' DO NOTHING
		RETURNING `+inviteColumns+`
	`, orgID, email, role, token, actorUserID, expiresAt), &invite)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &invite, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create invite: %w", err)
	}

	// A pending invite already exists; hand it back as-is.
	err = scanInvite(tx.QueryRow(ctx, `
		SELECT `+inviteColumns+`
		FROM org_invites
		WHERE org_id = $1 AND email = $2 AND status = $3
	`, orgID, email, InvitePending), &invite)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing invite: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &invite, false, nil
}

// ListInvites returns the organization's pending invitations. Overdue pending
// rows are flipped to EXPIRED on the way through (there is no background
// sweep).
func (s *Service) ListInvites(ctx context.Context, orgID, actorUserID uuid.UUID) ([]InviteListItem, error) {
	if _, err := s.RequirePermission(ctx, orgID, actorUserID, PermInviteMembers); err != nil {
		return nil, err
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE org_invites
		SET status = $2
		WHERE org_id = $1 AND status = $3 AND expires_at <= NOW()
	`, orgID, InviteExpired, InvitePending)
	if err != nil {
		return nil, fmt.Errorf("failed to expire stale invites: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id,
		  i.email,
		  i.role,
		  i.status,
		  i.created_at,
		  i.expires_at,
		  COALESCE(u.email, '') AS created_by_email
		FROM org_invites i
		LEFT JOIN users u ON u.id = i.invited_by_user_id
		WHERE i.org_id = $1 AND i.status = $2
		ORDER BY i.created_at DESC
	`, orgID, InvitePending)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []InviteListItem
	for rows.Next() {
		var inv InviteListItem
		if err := rows.Scan(&inv.ID, &inv.Email, &inv.Role, &inv.Status, &inv.CreatedAt, &inv.ExpiresAt, &inv.CreatedByEmail); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invites: %w", err)
	}

	return invites, nil
}

// CancelInvite revokes a pending invitation. Terminal invitations cannot be
// canceled.
func (s *Service) CancelInvite(ctx context.Context, orgID, inviteID, actorUserID uuid.UUID) error {
	if _, err := s.RequirePermission(ctx, orgID, actorUserID, PermInviteMembers); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE org_invites
		SET status = $3
		WHERE id = $1 AND org_id = $2 AND status = $4
	`, inviteID, orgID, InviteCanceled, InvitePending)
	if err != nil {
		return fmt.Errorf("failed to cancel invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteNotFound
	}

	return nil
}

// AcceptInvite redeems an invitation token for the given user. On success an
// ACTIVE membership exists and the invitation is ACCEPTED, committed in one
// transaction. Accepting twice is a no-op that reports success; accepting an
// invitation for an organization the user already belongs to still marks the
// invitation ACCEPTED.
func (s *Service) AcceptInvite(ctx context.Context, token string, userID uuid.UUID) (*Invite, error) {
	if !ValidateInviteTokenFormat(token) {
		return nil, ErrInviteNotFound
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var invite Invite
	err = scanInvite(tx.QueryRow(ctx, `
		SELECT `+inviteColumns+`
		FROM org_invites
		WHERE token = $1
		FOR UPDATE
	`, token), &invite)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	var userEmail string
	err = tx.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&userEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	switch invite.Status {
	case InviteAccepted:
		// Idempotent retry: the first accept already created the membership.
		if !strings.EqualFold(userEmail, invite.Email) {
			return nil, ErrInviteEmailMismatch
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &invite, nil
	case InviteCanceled:
		return nil, ErrInviteNotActive
	case InviteExpired:
		return nil, ErrInviteExpired
	}

	if invite.IsExpired(time.Now().UTC()) {
		// Lazy transition: record EXPIRED even though the accept fails.
		if _, err := tx.Exec(ctx, `
			UPDATE org_invites SET status = $2 WHERE id = $1
		`, invite.ID, InviteExpired); err != nil {
			return nil, fmt.Errorf("failed to expire invite: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, ErrInviteExpired
	}

	// Invitations bind to an email address, not a user id; the invitee may
	// not have had an account when it was issued.
	if !strings.EqualFold(userEmail, invite.Email) {
		return nil, ErrInviteEmailMismatch
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO org_memberships (org_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (org_id, user_id) DO NOTHING
	`, invite.OrgID, userID, invite.Role, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE org_invites
		SET status = $2, accepted_by_user_id = $3
		WHERE id = $1 AND status = $4
	`, invite.ID, InviteAccepted, userID, InvitePending)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invite accepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrInviteNotActive
	}
	invite.Status = InviteAccepted

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &invite, nil
}
