package orgs

import (
	"time"

	"github.com/google/uuid"
)

// OrgRole represents a user's role within an organization
type OrgRole string

const (
	RoleOwner  OrgRole = "OWNER"
	RoleAdmin  OrgRole = "ADMIN"
	RoleMember OrgRole = "MEMBER"
	RoleViewer OrgRole = "VIEWER"
)

// IsValid returns true for a known organization role.
func (r OrgRole) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Permission names a capability inside an organization.
type Permission string

const (
	PermInviteMembers Permission = "members:invite"
	PermManageMembers Permission = "members:manage"
	PermManageAdmins  Permission = "members:manage_admins"
	PermManageDomains Permission = "domains:manage"
	PermViewAuditLog  Permission = "audit:view"
	PermDeleteOrg     Permission = "org:delete"
)

// Permits is the single authority for role capabilities. Every call site goes
// through here so adding a role variant cannot silently skip a check.
func Permits(role OrgRole, perm Permission) bool {
	switch perm {
	case PermManageAdmins, PermDeleteOrg:
		return role == RoleOwner
	case PermInviteMembers, PermManageMembers, PermManageDomains, PermViewAuditLog:
		return role == RoleOwner || role == RoleAdmin
	default:
		return false
	}
}

// MemberStatus represents the state of a membership.
type MemberStatus string

const (
	StatusActive    MemberStatus = "ACTIVE"
	StatusSuspended MemberStatus = "SUSPENDED"
	StatusPending   MemberStatus = "PENDING"
)

// IsValid returns true for a known membership status.
func (s MemberStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// CanTransitionStatus reports whether a membership status change is legal.
// Allowed: PENDING -> ACTIVE (invite acceptance) and ACTIVE -> SUSPENDED
// (admin action). Nothing ever moves back into PENDING.
func CanTransitionStatus(from, to MemberStatus) bool {
	switch {
	case from == StatusPending && to == StatusActive:
		return true
	case from == StatusActive && to == StatusSuspended:
		return true
	default:
		return false
	}
}

// Org represents an organization (tenant) in the system
type Org struct {
	ID                 uuid.UUID `db:"id"`
	Name               string    `db:"name"`
	Slug               string    `db:"slug"`
	CreatedByUserID    uuid.UUID `db:"created_by_user_id"`
	IsPersonal         bool      `db:"is_personal"`
	SubscriptionPlan   string    `db:"subscription_plan"`
	MaxMembers         int       `db:"max_members"`
	MaxDomains         int       `db:"max_domains"`
	MaxMonthlySearches int       `db:"max_monthly_searches"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// PersonalSlug returns the slug of a user's personal organization.
func PersonalSlug(userID uuid.UUID) string {
	return "personal-" + userID.String()
}

// Membership represents a user's membership in an organization
type Membership struct {
	OrgID     uuid.UUID    `db:"org_id"`
	UserID    uuid.UUID    `db:"user_id"`
	Role      OrgRole      `db:"role"`
	Status    MemberStatus `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

// OrgWithRole combines org information with the user's role
type OrgWithRole struct {
	Org
	Role   OrgRole      `db:"role"`
	Status MemberStatus `db:"status"`
}

// MemberInfo represents a member of an organization with their details
type MemberInfo struct {
	UserID    uuid.UUID    `db:"user_id" json:"user_id"`
	Email     string       `db:"email" json:"email"`
	Role      OrgRole      `db:"role" json:"role"`
	Status    MemberStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
