package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventOrgCreated           = "org.created"
	EventOrgDeleted           = "org.deleted"
	EventOrgInviteCreated     = "org.invite_created"
	EventOrgInviteCanceled    = "org.invite_canceled"
	EventOrgInviteAccepted    = "org.invite_accepted"
	EventOrgMemberRoleUpdated = "org.member_role_updated"
	EventOrgMemberRemoved     = "org.member_removed"
	EventOrgMemberSuspended   = "org.member_suspended"
	EventDomainRegistered     = "domain.registered"
	EventDomainVerified       = "domain.verified"
	EventDomainUnverified     = "domain.unverified"
	EventDomainVisibilitySet  = "domain.visibility_set"
	EventDomainRemoved        = "domain.removed"
	EventAPIKeyCreated        = "apikey.created"
	EventAPIKeyDeleted        = "apikey.deleted"
	EventAPIKeyActiveToggled  = "apikey.active_toggled"
	EventUserDeleted          = "user.deleted"
)

// Event represents an audit log entry.
type Event struct {
	ID          uuid.UUID              `db:"id"`
	OrgID       uuid.NullUUID          `db:"org_id"`
	DomainID    uuid.NullUUID          `db:"domain_id"`
	ActorUserID uuid.NullUUID          `db:"actor_user_id"`
	Action      string                 `db:"action"`
	Meta        map[string]interface{} `db:"meta"`
	CreatedAt   time.Time              `db:"created_at"`
}

// Writer provides methods to write audit log entries.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	OrgID       *uuid.UUID
	DomainID    *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (org_id, domain_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4, $5)
	`

	orgID := toNullUUID(params.OrgID)
	domainID := toNullUUID(params.DomainID)
	actorUserID := toNullUUID(params.ActorUserID)

	_, err := w.pool.Exec(ctx, query, orgID, domainID, actorUserID, params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("org_id", params.OrgID).
		Interface("domain_id", params.DomainID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (w *Writer) LogOrgCreated(ctx context.Context, orgID, userID uuid.UUID, slug string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &userID,
		Action:      EventOrgCreated,
		Meta: map[string]interface{}{
			"slug": slug,
		},
	})
}

func (w *Writer) LogOrgDeleted(ctx context.Context, orgID, userID uuid.UUID, slug string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &userID,
		Action:      EventOrgDeleted,
		Meta: map[string]interface{}{
			"slug": slug,
		},
	})
}

func (w *Writer) LogOrgInviteCreated(ctx context.Context, orgID, actorUserID, inviteID uuid.UUID, email, role string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgInviteCreated,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
			"email":     email,
			"role":      role,
		},
	})
}

func (w *Writer) LogOrgInviteCanceled(ctx context.Context, orgID, actorUserID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgInviteCanceled,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogOrgInviteAccepted(ctx context.Context, orgID, actorUserID, inviteID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgInviteAccepted,
		Meta: map[string]interface{}{
			"invite_id": inviteID.String(),
		},
	})
}

func (w *Writer) LogOrgMemberRoleUpdated(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID, previousRole, newRole string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgMemberRoleUpdated,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"previous_role":  previousRole,
			"new_role":       newRole,
		},
	})
}

func (w *Writer) LogOrgMemberRemoved(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID, removedRole string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgMemberRemoved,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
			"role":           removedRole,
		},
	})
}

func (w *Writer) LogOrgMemberSuspended(ctx context.Context, orgID, actorUserID, targetUserID uuid.UUID) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      EventOrgMemberSuspended,
		Meta: map[string]interface{}{
			"target_user_id": targetUserID.String(),
		},
	})
}

func (w *Writer) LogDomainRegistered(ctx context.Context, orgID *uuid.UUID, domainID, userID uuid.UUID, value, kind string) error {
	return w.Log(ctx, LogParams{
		OrgID:       orgID,
		DomainID:    &domainID,
		ActorUserID: &userID,
		Action:      EventDomainRegistered,
		Meta: map[string]interface{}{
			"value": value,
			"kind":  kind,
		},
	})
}

func (w *Writer) LogDomainVerified(ctx context.Context, domainID, adminUserID uuid.UUID, value string) error {
	return w.Log(ctx, LogParams{
		DomainID:    &domainID,
		ActorUserID: &adminUserID,
		Action:      EventDomainVerified,
		Meta: map[string]interface{}{
			"value": value,
		},
	})
}

func (w *Writer) LogDomainUnverified(ctx context.Context, domainID, adminUserID uuid.UUID, value string) error {
	return w.Log(ctx, LogParams{
		DomainID:    &domainID,
		ActorUserID: &adminUserID,
		Action:      EventDomainUnverified,
		Meta: map[string]interface{}{
			"value": value,
		},
	})
}

func (w *Writer) LogDomainVisibilitySet(ctx context.Context, orgID, domainID, userID uuid.UUID, visibility string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		DomainID:    &domainID,
		ActorUserID: &userID,
		Action:      EventDomainVisibilitySet,
		Meta: map[string]interface{}{
			"visibility": visibility,
		},
	})
}

func (w *Writer) LogDomainRemoved(ctx context.Context, orgID *uuid.UUID, domainID, userID uuid.UUID, value string) error {
	return w.Log(ctx, LogParams{
		OrgID:       orgID,
		DomainID:    &domainID,
		ActorUserID: &userID,
		Action:      EventDomainRemoved,
		Meta: map[string]interface{}{
			"value": value,
		},
	})
}

func (w *Writer) LogAPIKeyCreated(ctx context.Context, apiKeyID, userID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventAPIKeyCreated,
		Meta: map[string]interface{}{
			"api_key_id": apiKeyID.String(),
			"name":       name,
		},
	})
}

func (w *Writer) LogAPIKeyDeleted(ctx context.Context, apiKeyID, userID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventAPIKeyDeleted,
		Meta: map[string]interface{}{
			"api_key_id": apiKeyID.String(),
			"name":       name,
		},
	})
}

func (w *Writer) LogAPIKeyActiveToggled(ctx context.Context, apiKeyID, userID uuid.UUID, active bool) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventAPIKeyActiveToggled,
		Meta: map[string]interface{}{
			"api_key_id": apiKeyID.String(),
			"active":     active,
		},
	})
}

func (w *Writer) LogUserDeleted(ctx context.Context, userID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventUserDeleted,
		Meta: map[string]interface{}{
			"email": email,
		},
	})
}
