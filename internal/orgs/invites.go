package orgs

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidOrgRole      = errors.New("invalid organization role")
	ErrCannotInviteOwner   = errors.New("cannot invite owner role")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteExpired       = errors.New("invite expired")
	ErrInviteNotActive     = errors.New("invite not active")
	ErrInviteEmailMismatch = errors.New("invite email does not match user")
	ErrAlreadyMember       = errors.New("email already belongs to an active member")
)

// InviteStatus represents the lifecycle state of an invitation.
// PENDING is the only non-terminal state.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteExpired  InviteStatus = "EXPIRED"
	InviteCanceled InviteStatus = "CANCELED"
)

// Invite is a time-boxed, email-bound invitation into an organization.
// The token is the sole capability needed to accept it.
type Invite struct {
	ID        uuid.UUID     `db:"id"`
	OrgID     uuid.UUID     `db:"org_id"`
	Email     string        `db:"email"`
	Role      OrgRole       `db:"role"`
	Token     string        `db:"token"`
	Status    InviteStatus  `db:"status"`
	InvitedBy uuid.NullUUID `db:"invited_by_user_id"`
	CreatedAt time.Time     `db:"created_at"`
	ExpiresAt time.Time     `db:"expires_at"`
}

// IsExpired reports whether the invite's deadline has passed, regardless of
// whether the lazy EXPIRED transition has been recorded yet.
func (i *Invite) IsExpired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

type InviteListItem struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	Email          string       `db:"email" json:"email"`
	Role           OrgRole      `db:"role" json:"role"`
	Status         InviteStatus `db:"status" json:"status"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time    `db:"expires_at" json:"expires_at"`
	CreatedByEmail string       `db:"created_by_email" json:"created_by_email"`
}
