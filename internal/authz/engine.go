package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/breachwatch/breachwatch/internal/domains"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
)

// MembershipReader answers whether a user is an active member of an org and
// with which role. Kept narrow so tests can swap in an in-memory store.
type MembershipReader interface {
	ActiveRole(ctx context.Context, orgID, userID uuid.UUID) (orgs.OrgRole, bool, error)
}

// OrgMemberships adapts the org service to MembershipReader.
type OrgMemberships struct {
	Orgs *orgs.Service
}

func (m OrgMemberships) ActiveRole(ctx context.Context, orgID, userID uuid.UUID) (orgs.OrgRole, bool, error) {
	role, status, err := m.Orgs.RoleOf(ctx, orgID, userID)
	if err != nil {
		if errors.Is(err, orgs.ErrNotMember) {
			return "", false, nil
		}
		return "", false, err
	}
	return role, status == orgs.StatusActive, nil
}

// Engine decides whether a principal may perform an action on a domain. It
// holds no state beyond the membership source and the preview record cap, so
// every call is a pure function of its inputs.
type Engine struct {
	members    MembershipReader
	previewCap int
}

// NewEngine creates an authorization engine. previewCap bounds how many
// records an unverified-domain preview may return.
func NewEngine(members MembershipReader, previewCap int) *Engine {
	return &Engine{members: members, previewCap: previewCap}
}

// Authorize evaluates the decision rules in order. Platform-admin status
// grants the registry overview and nothing else; ownership and membership
// decide everything domain-scoped, and unverified domains never allow data
// access.
func (e *Engine) Authorize(ctx context.Context, p identity.Principal, domain *domains.Domain, action Action) (Verdict, error) {
	if action == ActionAdminOverview {
		if p.PlatformRole.IsAdmin() {
			return Allow(), nil
		}
		return Deny(ReasonNotOwner), nil
	}

	verdict, err := e.ownershipVerdict(ctx, p, domain)
	if err != nil {
		return Verdict{}, err
	}
	if !verdict.Allowed {
		e.logDenial(p, domain, action, verdict.Reason)
		return verdict, nil
	}

	if !domain.IsVerified {
		switch action {
		case ActionDataAccess:
			verdict = Deny(ReasonDomainNotVerified)
			e.logDenial(p, domain, action, verdict.Reason)
			return verdict, nil
		case ActionDashboardPreview:
			return AllowRestricted(e.previewCap), nil
		}
	}

	return verdict, nil
}

func (e *Engine) ownershipVerdict(ctx context.Context, p identity.Principal, domain *domains.Domain) (Verdict, error) {
	if domain.IsDirectlyOwned() {
		if domain.OwnerUserID.UUID == p.UserID {
			return Allow(), nil
		}
		return Deny(ReasonNotOwner), nil
	}

	if !domain.OrgID.Valid {
		return Verdict{}, fmt.Errorf("domain %s has no owner", domain.ID)
	}

	role, active, err := e.members.ActiveRole(ctx, domain.OrgID.UUID, p.UserID)
	if err != nil {
		return Verdict{}, fmt.Errorf("load membership: %w", err)
	}
	if !active {
		return Deny(ReasonNotOwner), nil
	}

	if domain.Visibility == domains.VisibilityOrganization {
		return Allow(), nil
	}
	if role == orgs.RoleOwner || role == orgs.RoleAdmin {
		return Allow(), nil
	}
	if domain.AddedByUserID.Valid && domain.AddedByUserID.UUID == p.UserID {
		return Allow(), nil
	}
	return Deny(ReasonInsufficientVisibility), nil
}

func (e *Engine) logDenial(p identity.Principal, domain *domains.Domain, action Action, reason DenyReason) {
	log.Debug().
		Str("user_id", p.UserID.String()).
		Str("domain_id", domain.ID.String()).
		Str("action", string(action)).
		Str("reason", string(reason)).
		Msg("authorization denied")
}
