package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/breachwatch/breachwatch/internal/authz"
	"github.com/breachwatch/breachwatch/internal/domains"
	"github.com/breachwatch/breachwatch/internal/identity"
	"github.com/breachwatch/breachwatch/internal/orgs"
	"github.com/breachwatch/breachwatch/internal/users"
)

func newTestUser(t *testing.T, pool *pgxpool.Pool, email string) *users.User {
	t.Helper()
	svc := users.NewService(pool, orgs.NewService(pool))
	user, err := svc.EnsureUser(context.Background(), email)
	require.NoError(t, err)
	return user
}

func TestInviteLifecycle(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")
	invitee := newTestUser(t, pool, "invitee@example.com")

	orgSvc := orgs.NewService(pool)
	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	invite, created, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "invitee@example.com", orgs.RoleMember, 7*24*time.Hour)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, invite.Token)

	// Re-inviting the same address while a pending invite exists returns the
	// existing invite, token and all.
	again, created, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "invitee@example.com", orgs.RoleMember, 7*24*time.Hour)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, invite.ID, again.ID)
	require.Equal(t, invite.Token, again.Token)

	accepted, err := orgSvc.AcceptInvite(ctx, invite.Token, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, org.ID, accepted.OrgID)

	role, status, err := orgSvc.RoleOf(ctx, org.ID, invitee.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.RoleMember, role)
	require.Equal(t, orgs.StatusActive, status)

	// Accepting a second time is a no-op for the same user.
	_, err = orgSvc.AcceptInvite(ctx, invite.Token, invitee.ID)
	require.NoError(t, err)

	// After acceptance the address can be invited again only as a member
	// conflict.
	_, _, err = orgSvc.CreateInvite(ctx, org.ID, owner.ID, "invitee@example.com", orgs.RoleMember, 7*24*time.Hour)
	require.ErrorIs(t, err, orgs.ErrAlreadyMember)
}

func TestInviteExpiry(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")
	invitee := newTestUser(t, pool, "late@example.com")

	orgSvc := orgs.NewService(pool)
	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	stale, created, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "late@example.com", orgs.RoleMember, -time.Hour)
	require.NoError(t, err)
	require.True(t, created)

	_, err = orgSvc.AcceptInvite(ctx, stale.Token, invitee.ID)
	require.ErrorIs(t, err, orgs.ErrInviteExpired)

	// An overdue invite no longer blocks a fresh one for the same address.
	fresh, created, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "late@example.com", orgs.RoleMember, 7*24*time.Hour)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEqual(t, stale.ID, fresh.ID)

	_, err = orgSvc.AcceptInvite(ctx, fresh.Token, invitee.ID)
	require.NoError(t, err)
}

func TestInviteEmailMismatch(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")
	stranger := newTestUser(t, pool, "stranger@example.com")

	orgSvc := orgs.NewService(pool)
	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	invite, _, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "invitee@example.com", orgs.RoleMember, 7*24*time.Hour)
	require.NoError(t, err)

	_, err = orgSvc.AcceptInvite(ctx, invite.Token, stranger.ID)
	require.ErrorIs(t, err, orgs.ErrInviteEmailMismatch)

	// The failed accept must not create a membership or consume the invite.
	_, _, err = orgSvc.RoleOf(ctx, org.ID, stranger.ID)
	require.ErrorIs(t, err, orgs.ErrNotMember)

	invitee := newTestUser(t, pool, "invitee@example.com")
	_, err = orgSvc.AcceptInvite(ctx, invite.Token, invitee.ID)
	require.NoError(t, err)
}

func TestConcurrentInviteCreation(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")

	orgSvc := orgs.NewService(pool)
	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	type outcome struct {
		invite  *orgs.Invite
		created bool
		err     error
	}
	results := make([]outcome, 2)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, created, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "race@example.com", orgs.RoleMember, 7*24*time.Hour)
			results[i] = outcome{invite: inv, created: created, err: err}
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for _, res := range results {
		require.NoError(t, res.err)
		require.NotNil(t, res.invite)
		if res.created {
			createdCount++
		}
	}
	require.Equal(t, 1, createdCount)
	require.Equal(t, results[0].invite.ID, results[1].invite.ID)
	require.Equal(t, results[0].invite.Token, results[1].invite.Token)
}

func TestOwnershipTransfer(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")
	member := newTestUser(t, pool, "member@example.com")

	orgSvc := orgs.NewService(pool)
	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	invite, _, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "member@example.com", orgs.RoleMember, 7*24*time.Hour)
	require.NoError(t, err)
	_, err = orgSvc.AcceptInvite(ctx, invite.Token, member.ID)
	require.NoError(t, err)

	previous, err := orgSvc.UpdateMemberRole(ctx, org.ID, owner.ID, member.ID, orgs.RoleOwner)
	require.NoError(t, err)
	require.Equal(t, orgs.RoleMember, previous)

	// Exactly one active owner survives the transfer.
	role, _, err := orgSvc.RoleOf(ctx, org.ID, member.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.RoleOwner, role)

	role, _, err = orgSvc.RoleOf(ctx, org.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.RoleAdmin, role)
}

func TestOwnershipTransferToSuspendedMember(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")
	member := newTestUser(t, pool, "member@example.com")

	orgSvc := orgs.NewService(pool)
	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	invite, _, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "member@example.com", orgs.RoleMember, 7*24*time.Hour)
	require.NoError(t, err)
	_, err = orgSvc.AcceptInvite(ctx, invite.Token, member.ID)
	require.NoError(t, err)

	require.NoError(t, orgSvc.SuspendMember(ctx, org.ID, owner.ID, member.ID))

	_, err = orgSvc.UpdateMemberRole(ctx, org.ID, owner.ID, member.ID, orgs.RoleOwner)
	require.ErrorIs(t, err, orgs.ErrInvalidStatusTransition)

	// The sitting owner keeps the role.
	role, _, err := orgSvc.RoleOf(ctx, org.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.RoleOwner, role)
}

func TestLastOwnerGuard(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")

	orgSvc := orgs.NewService(pool)
	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	_, err = orgSvc.UpdateMemberRole(ctx, org.ID, owner.ID, owner.ID, orgs.RoleAdmin)
	require.ErrorIs(t, err, orgs.ErrLastOwnerViolation)

	_, err = orgSvc.RemoveMember(ctx, org.ID, owner.ID, owner.ID)
	require.ErrorIs(t, err, orgs.ErrLastOwnerViolation)
}

func TestDomainVerificationRoundTrip(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	user := newTestUser(t, pool, "owner@example.com")

	orgSvc := orgs.NewService(pool)
	domainSvc := domains.NewService(pool, orgSvc)

	domain, err := domainSvc.AddDirect(ctx, user.ID, "https://Acme.com/security", domains.KindURL)
	require.NoError(t, err)
	require.Equal(t, "acme.com", domain.Value)
	require.False(t, domain.IsVerified)

	engine := authz.NewEngine(authz.OrgMemberships{Orgs: orgSvc}, 5)
	principal := identity.Principal{UserID: user.ID, Method: identity.MethodSession, PlatformRole: identity.PlatformUser}

	v, err := engine.Authorize(ctx, principal, domain, authz.ActionDataAccess)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, authz.ReasonDomainNotVerified, v.Reason)

	admin := identity.Principal{UserID: user.ID, PlatformRole: identity.PlatformAdmin}

	// Non-admins cannot touch verification state.
	_, err = domainSvc.Verify(ctx, domain.ID, principal)
	require.ErrorIs(t, err, domains.ErrAdminRequired)

	verified, err := domainSvc.Verify(ctx, domain.ID, admin)
	require.NoError(t, err)
	require.True(t, verified.IsVerified)
	require.NotNil(t, verified.VerifiedAt)

	v, err = engine.Authorize(ctx, principal, verified, authz.ActionDataAccess)
	require.NoError(t, err)
	require.True(t, v.Allowed)

	unverified, err := domainSvc.Unverify(ctx, domain.ID, admin)
	require.NoError(t, err)
	require.False(t, unverified.IsVerified)
	require.Nil(t, unverified.VerifiedAt)

	v, err = engine.Authorize(ctx, principal, unverified, authz.ActionDataAccess)
	require.NoError(t, err)
	require.False(t, v.Allowed)
	require.Equal(t, authz.ReasonDomainNotVerified, v.Reason)
}

func TestOrgDomainQuota(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")

	orgSvc := orgs.NewService(pool)
	domainSvc := domains.NewService(pool, orgSvc)

	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	// Default plan allows three domains.
	for _, value := range []string{"one.example.com", "two.example.com", "three.example.com"} {
		_, err := domainSvc.AddToOrg(ctx, org.ID, owner.ID, value, domains.KindURL, domains.VisibilityOrganization)
		require.NoError(t, err)
	}

	_, err = domainSvc.AddToOrg(ctx, org.ID, owner.ID, "four.example.com", domains.KindURL, domains.VisibilityOrganization)
	require.ErrorIs(t, err, domains.ErrQuotaExceeded)

	// Registering the same value twice in the same org collides.
	_, err = domainSvc.AddDirect(ctx, owner.ID, "mine.example.com", domains.KindURL)
	require.NoError(t, err)
	_, err = domainSvc.AddDirect(ctx, owner.ID, "https://mine.example.com", domains.KindURL)
	require.ErrorIs(t, err, domains.ErrDuplicateDomain)
}

func TestUserDeletionOwnerSuccession(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := context.Background()

	owner := newTestUser(t, pool, "owner@example.com")
	admin := newTestUser(t, pool, "admin@example.com")

	orgSvc := orgs.NewService(pool)
	userSvc := users.NewService(pool, orgSvc)

	org, err := orgSvc.CreateWithOwner(ctx, "Acme Security", "acme-security", owner.ID)
	require.NoError(t, err)

	invite, _, err := orgSvc.CreateInvite(ctx, org.ID, owner.ID, "admin@example.com", orgs.RoleAdmin, 7*24*time.Hour)
	require.NoError(t, err)
	_, err = orgSvc.AcceptInvite(ctx, invite.Token, admin.ID)
	require.NoError(t, err)

	email, err := userSvc.Delete(ctx, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "owner@example.com", email)

	// The earliest active admin inherits ownership.
	role, status, err := orgSvc.RoleOf(ctx, org.ID, admin.ID)
	require.NoError(t, err)
	require.Equal(t, orgs.RoleOwner, role)
	require.Equal(t, orgs.StatusActive, status)

	// The departing user's personal org had no other members and is gone.
	_, err = orgSvc.GetBySlug(ctx, orgs.PersonalSlug(owner.ID))
	require.ErrorIs(t, err, orgs.ErrOrgNotFound)

	_, err = userSvc.GetByID(ctx, owner.ID)
	require.ErrorIs(t, err, users.ErrUserNotFound)
}
