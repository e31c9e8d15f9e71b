package orgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermits_OwnerOnlyPermissions(t *testing.T) {
	require.True(t, Permits(RoleOwner, PermManageAdmins))
	require.True(t, Permits(RoleOwner, PermDeleteOrg))

	for _, role := range []OrgRole{RoleAdmin, RoleMember, RoleViewer} {
		require.False(t, Permits(role, PermManageAdmins), "role %s", role)
		require.False(t, Permits(role, PermDeleteOrg), "role %s", role)
	}
}

func TestPermits_MutatePermissions(t *testing.T) {
	for _, perm := range []Permission{PermInviteMembers, PermManageMembers, PermManageDomains, PermViewAuditLog} {
		require.True(t, Permits(RoleOwner, perm))
		require.True(t, Permits(RoleAdmin, perm))
		require.False(t, Permits(RoleMember, perm))
		require.False(t, Permits(RoleViewer, perm))
	}
}

func TestPermits_UnknownRoleDeniesEverything(t *testing.T) {
	require.False(t, Permits(OrgRole("SUPERVISOR"), PermInviteMembers))
	require.False(t, Permits(OrgRole(""), PermViewAuditLog))
}

func TestCanTransitionStatus(t *testing.T) {
	require.True(t, CanTransitionStatus(StatusPending, StatusActive))
	require.True(t, CanTransitionStatus(StatusActive, StatusSuspended))

	// Nothing moves backwards into PENDING, and suspension is terminal.
	require.False(t, CanTransitionStatus(StatusActive, StatusPending))
	require.False(t, CanTransitionStatus(StatusSuspended, StatusPending))
	require.False(t, CanTransitionStatus(StatusSuspended, StatusActive))
	require.False(t, CanTransitionStatus(StatusPending, StatusSuspended))
}

func TestOrgRole_IsValid(t *testing.T) {
	for _, role := range []OrgRole{RoleOwner, RoleAdmin, RoleMember, RoleViewer} {
		require.True(t, role.IsValid())
	}
	require.False(t, OrgRole("OPERATOR").IsValid())
}
