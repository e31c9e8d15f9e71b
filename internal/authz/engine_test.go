package authz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/breachwatch/breachwatch/internal/domains"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
)

type memberKey struct {
	org  uuid.UUID
	user uuid.UUID
}

type fakeMember struct {
	role   orgs.OrgRole
	active bool
}

// fakeMemberships is an in-memory MembershipReader for engine tests.
type fakeMemberships map[memberKey]fakeMember

func (f fakeMemberships) ActiveRole(_ context.Context, orgID, userID uuid.UUID) (orgs.OrgRole, bool, error) {
	m, ok := f[memberKey{org: orgID, user: userID}]
	if !ok {
		return "", false, nil
	}
	return m.role, m.active, nil
}

func principal(userID uuid.UUID, role identity.PlatformRole) identity.Principal {
	return identity.Principal{UserID: userID, Method: identity.MethodSession, PlatformRole: role}
}

func directDomain(owner uuid.UUID, verified bool) *domains.Domain {
	d := &domains.Domain{
		ID:            uuid.New(),
		Value:         "acme.com",
		Kind:          domains.KindURL,
		OwnerUserID:   uuid.NullUUID{UUID: owner, Valid: true},
		AddedByUserID: uuid.NullUUID{UUID: owner, Valid: true},
		Visibility:    domains.VisibilityDirect,
		IsVerified:    verified,
	}
	if verified {
		now := time.Now().UTC()
		d.VerifiedAt = &now
	}
	return d
}

func orgDomain(orgID, addedBy uuid.UUID, visibility domains.Visibility, verified bool) *domains.Domain {
	d := &domains.Domain{
		ID:            uuid.New(),
		Value:         "corp.example.org",
		Kind:          domains.KindEmail,
		OrgID:         uuid.NullUUID{UUID: orgID, Valid: true},
		AddedByUserID: uuid.NullUUID{UUID: addedBy, Valid: true},
		Visibility:    visibility,
		IsVerified:    verified,
	}
	if verified {
		now := time.Now().UTC()
		d.VerifiedAt = &now
	}
	return d
}

func TestAuthorize_DirectOwnership(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()
	engine := NewEngine(fakeMemberships{}, 5)

	domain := directDomain(owner, true)

	v, err := engine.Authorize(context.Background(), principal(owner, identity.PlatformUser), domain, ActionDataAccess)
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Nil(t, v.Restriction)

	v, err = engine.Authorize(context.Background(), principal(stranger, identity.PlatformUser), domain, ActionDataAccess)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, ReasonNotOwner, v.Reason)
}

func TestAuthorize_AdminDoesNotBypassOwnership(t *testing.T) {
	owner := uuid.New()
	admin := uuid.New()
	engine := NewEngine(fakeMemberships{}, 5)

	domain := directDomain(owner, true)

	v, err := engine.Authorize(context.Background(), principal(admin, identity.PlatformAdmin), domain, ActionDataAccess)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, ReasonNotOwner, v.Reason)
}

func TestAuthorize_AdminOverview(t *testing.T) {
	owner := uuid.New()
	engine := NewEngine(fakeMemberships{}, 5)
	domain := directDomain(owner, false)

	v, err := engine.Authorize(context.Background(), principal(uuid.New(), identity.PlatformAdmin), domain, ActionAdminOverview)
	require.NoError(t, err)
	require.True(t, v.Allowed)

	v, err = engine.Authorize(context.Background(), principal(uuid.New(), identity.PlatformSuperAdmin), domain, ActionAdminOverview)
	require.NoError(t, err)
	require.True(t, v.Allowed)

	// Owning a domain gives no registry access.
	v, err = engine.Authorize(context.Background(), principal(owner, identity.PlatformUser), domain, ActionAdminOverview)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, ReasonNotOwner, v.Reason)
}

func TestAuthorize_OrgVisibility(t *testing.T) {
	orgID := uuid.New()
	adder := uuid.New()
	orgAdmin := uuid.New()
	plainMember := uuid.New()
	suspended := uuid.New()
	outsider := uuid.New()

	members := fakeMemberships{
		{org: orgID, user: adder}:       {role: orgs.RoleMember, active: true},
		{org: orgID, user: orgAdmin}:    {role: orgs.RoleAdmin, active: true},
		{org: orgID, user: plainMember}: {role: orgs.RoleMember, active: true},
		{org: orgID, user: suspended}:   {role: orgs.RoleAdmin, active: false},
	}
	engine := NewEngine(members, 5)

	orgWide := orgDomain(orgID, adder, domains.VisibilityOrganization, true)
	direct := orgDomain(orgID, adder, domains.VisibilityDirect, true)

	tests := []struct {
		name       string
		user       uuid.UUID
		domain     *domains.Domain
		allowed    bool
		denyReason DenyReason
	}{
		{name: "org-wide visible to plain member", user: plainMember, domain: orgWide, allowed: true},
		{name: "org-wide invisible to outsider", user: outsider, domain: orgWide, denyReason: ReasonNotOwner},
		{name: "org-wide invisible to suspended admin", user: suspended, domain: orgWide, denyReason: ReasonNotOwner},
		{name: "direct visible to adder", user: adder, domain: direct, allowed: true},
		{name: "direct visible to org admin", user: orgAdmin, domain: direct, allowed: true},
		{name: "direct hidden from plain member", user: plainMember, domain: direct, denyReason: ReasonInsufficientVisibility},
		{name: "direct hidden from outsider", user: outsider, domain: direct, denyReason: ReasonNotOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := engine.Authorize(context.Background(), principal(tt.user, identity.PlatformUser), tt.domain, ActionDashboardPreview)
			require.NoError(t, err)
			require.Equal(t, tt.allowed, v.Allowed)
			if !tt.allowed {
				require.Equal(t, tt.denyReason, v.Reason)
			}
		})
	}
}

func TestAuthorize_UnverifiedDomain(t *testing.T) {
	owner := uuid.New()
	engine := NewEngine(fakeMemberships{}, 5)
	domain := directDomain(owner, false)
	p := principal(owner, identity.PlatformUser)

	v, err := engine.Authorize(context.Background(), p, domain, ActionDataAccess)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, ReasonDomainNotVerified, v.Reason)

	v, err = engine.Authorize(context.Background(), p, domain, ActionDashboardPreview)
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.NotNil(t, v.Restriction)
	require.Equal(t, 5, v.Restriction.MaxRecords)
	require.True(t, v.Restriction.SearchDisabled)
}

// Data access is only ever granted on verified domains, no matter who asks.
func TestAuthorize_DataAccessImpliesVerified(t *testing.T) {
	orgID := uuid.New()
	owner := uuid.New()
	member := uuid.New()
	members := fakeMemberships{
		{org: orgID, user: member}: {role: orgs.RoleOwner, active: true},
	}
	engine := NewEngine(members, 5)

	cases := []struct {
		user   uuid.UUID
		role   identity.PlatformRole
		domain *domains.Domain
	}{
		{user: owner, role: identity.PlatformUser, domain: directDomain(owner, false)},
		{user: owner, role: identity.PlatformSuperAdmin, domain: directDomain(owner, false)},
		{user: member, role: identity.PlatformUser, domain: orgDomain(orgID, member, domains.VisibilityOrganization, false)},
		{user: member, role: identity.PlatformUser, domain: orgDomain(orgID, member, domains.VisibilityDirect, false)},
	}

	for _, c := range cases {
		v, err := engine.Authorize(context.Background(), principal(c.user, c.role), c.domain, ActionDataAccess)
		require.NoError(t, err)
		require.False(t, v.Allowed)
		require.Equal(t, ReasonDomainNotVerified, v.Reason)
	}
}

func TestAuthorize_VerifiedPreviewUnrestricted(t *testing.T) {
	owner := uuid.New()
	engine := NewEngine(fakeMemberships{}, 5)
	domain := directDomain(owner, true)

	v, err := engine.Authorize(context.Background(), principal(owner, identity.PlatformUser), domain, ActionDashboardPreview)
	require.NoError(t, err)
	require.True(t, v.Allowed)
	require.Nil(t, v.Restriction)
}
