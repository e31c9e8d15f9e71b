package orgs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// countActiveOwnersLocked locks the organization's owner rows and returns the
// number of active owners. Callers must hold an open transaction.
func countActiveOwnersLocked(ctx context.Context, tx pgx.Tx, orgID uuid.UUID) (int, error) {
	rows, err := tx.Query(ctx, `
		SELECT user_id
		FROM org_memberships
		WHERE org_id = $1 AND role = $2 AND status = $3
		FOR UPDATE
	`, orgID, RoleOwner, StatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to lock owners: %w", err)
	}
	defer rows.Close()

	var owners int
	for rows.Next() {
		owners++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to lock owners: %w", err)
	}

	return owners, nil
}

func loadActorRoleTx(ctx context.Context, tx pgx.Tx, orgID, actorUserID uuid.UUID) (OrgRole, error) {
	var actorRole OrgRole
	var actorStatus MemberStatus
	if err := tx.QueryRow(ctx, `
		SELECT role, status
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
	`, orgID, actorUserID).Scan(&actorRole, &actorStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotMember
		}
		return "", fmt.Errorf("failed to load actor role: %w", err)
	}
	if actorStatus != StatusActive {
		return "", ErrNotMember
	}
	return actorRole, nil
}

// UpdateMemberRole changes a member's role. Only OWNER may grant or revoke
// the ADMIN role; an ADMIN may only manage MEMBER and VIEWER rows. Demoting
// the last active OWNER fails with ErrLastOwnerViolation. Granting OWNER is
// an ownership transfer: the sitting owner steps down to ADMIN in the same
// transaction, keeping exactly one active owner.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID, newRole OrgRole) (previousRole OrgRole, err error) {
	if !newRole.IsValid() {
		return "", ErrInvalidOrgRole
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actorRole, err := loadActorRoleTx(ctx, tx, orgID, actorUserID)
	if err != nil {
		return "", err
	}
	if !Permits(actorRole, PermManageMembers) {
		return "", ErrInsufficientPermissions
	}

	var currentRole OrgRole
	var currentStatus MemberStatus
	if err := tx.QueryRow(ctx, `
		SELECT role, status
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
		FOR UPDATE
	`, orgID, targetUserID).Scan(&currentRole, &currentStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}

	touchesAdmin := currentRole == RoleAdmin || newRole == RoleAdmin ||
		currentRole == RoleOwner || newRole == RoleOwner
	if touchesAdmin && !Permits(actorRole, PermManageAdmins) {
		return "", ErrInsufficientPermissions
	}

	if currentRole == RoleOwner && newRole != RoleOwner {
		owners, err := countActiveOwnersLocked(ctx, tx, orgID)
		if err != nil {
			return "", err
		}
		if owners <= 1 {
			return "", ErrLastOwnerViolation
		}
	}

	if newRole == RoleOwner && currentRole != RoleOwner {
		if currentStatus != StatusActive {
			return "", ErrInvalidStatusTransition
		}
		if _, err := countActiveOwnersLocked(ctx, tx, orgID); err != nil {
			return "", err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE org_memberships
			SET role = $3, updated_at = NOW()
			WHERE org_id = $1 AND role = $2 AND status = $4
		`, orgID, RoleOwner, RoleAdmin, StatusActive); err != nil {
			return "", fmt.Errorf("failed to demote previous owner: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE org_memberships
		SET role = $3, updated_at = NOW()
		WHERE org_id = $1 AND user_id = $2
	`, orgID, targetUserID, newRole); err != nil {
		return "", fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return currentRole, nil
}

// RemoveMember deletes a membership. Removing the last active OWNER fails
// with ErrLastOwnerViolation.
func (s *Service) RemoveMember(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID) (removedRole OrgRole, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actorRole, err := loadActorRoleTx(ctx, tx, orgID, actorUserID)
	if err != nil {
		return "", err
	}
	if !Permits(actorRole, PermManageMembers) {
		return "", ErrInsufficientPermissions
	}

	var targetRole OrgRole
	if err := tx.QueryRow(ctx, `
		SELECT role
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
		FOR UPDATE
	`, orgID, targetUserID).Scan(&targetRole); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to load member role: %w", err)
	}

	if (targetRole == RoleAdmin || targetRole == RoleOwner) && targetUserID != actorUserID {
		if !Permits(actorRole, PermManageAdmins) {
			return "", ErrInsufficientPermissions
		}
	}

	if targetRole == RoleOwner {
		owners, err := countActiveOwnersLocked(ctx, tx, orgID)
		if err != nil {
			return "", err
		}
		if owners <= 1 {
			return "", ErrLastOwnerViolation
		}
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
	`, orgID, targetUserID)
	if err != nil {
		return "", fmt.Errorf("failed to remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", ErrMemberNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return targetRole, nil
}

// SuspendMember moves an ACTIVE membership to SUSPENDED. Suspending the last
// active OWNER fails with ErrLastOwnerViolation; any other starting status
// fails with ErrInvalidStatusTransition.
func (s *Service) SuspendMember(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	actorRole, err := loadActorRoleTx(ctx, tx, orgID, actorUserID)
	if err != nil {
		return err
	}
	if !Permits(actorRole, PermManageMembers) {
		return ErrInsufficientPermissions
	}

	var targetRole OrgRole
	var targetStatus MemberStatus
	if err := tx.QueryRow(ctx, `
		SELECT role, status
		FROM org_memberships
		WHERE org_id = $1 AND user_id = $2
		FOR UPDATE
	`, orgID, targetUserID).Scan(&targetRole, &targetStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to load member: %w", err)
	}

	if (targetRole == RoleAdmin || targetRole == RoleOwner) && !Permits(actorRole, PermManageAdmins) {
		return ErrInsufficientPermissions
	}

	if !CanTransitionStatus(targetStatus, StatusSuspended) {
		return ErrInvalidStatusTransition
	}

	if targetRole == RoleOwner {
		owners, err := countActiveOwnersLocked(ctx, tx, orgID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwnerViolation
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE org_memberships
		SET status = $3, updated_at = NOW()
		WHERE org_id = $1 AND user_id = $2
	`, orgID, targetUserID, StatusSuspended); err != nil {
		return fmt.Errorf("failed to suspend member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
