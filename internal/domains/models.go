package domains

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes web domains from email domains. The same string may be
// registered as both, independently.
type Kind string

const (
	KindURL   Kind = "URL"
	KindEmail Kind = "EMAIL"
)

// IsValid returns true for a known domain kind.
func (k Kind) IsValid() bool {
	return k == KindURL || k == KindEmail
}

// Visibility controls whether all organization members may access a domain or
// only the adder and org admins.
type Visibility string

const (
	VisibilityDirect       Visibility = "DIRECT"
	VisibilityOrganization Visibility = "ORGANIZATION"
)

// IsValid returns true for a known visibility.
func (v Visibility) IsValid() bool {
	return v == VisibilityDirect || v == VisibilityOrganization
}

// Domain is a registered web or email domain, the unit of authorization.
// Exactly one of OwnerUserID / OrgID is set.
type Domain struct {
	ID            uuid.UUID     `db:"id"`
	Value         string        `db:"value"`
	Kind          Kind          `db:"kind"`
	OwnerUserID   uuid.NullUUID `db:"owner_user_id"`
	OrgID         uuid.NullUUID `db:"org_id"`
	AddedByUserID uuid.NullUUID `db:"added_by_user_id"`
	Visibility    Visibility    `db:"visibility"`
	IsVerified    bool          `db:"is_verified"`
	VerifiedAt    *time.Time    `db:"verified_at"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

// IsDirectlyOwned reports whether the domain belongs to a single user rather
// than an organization.
func (d *Domain) IsDirectlyOwned() bool {
	return d.OwnerUserID.Valid
}
