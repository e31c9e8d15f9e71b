package orgs

import "errors"

var (
	ErrMemberNotFound = errors.New("member not found")

	// ErrLastOwnerViolation is returned when an operation would leave the
	// organization without an active OWNER.
	ErrLastOwnerViolation = errors.New("organization must keep exactly one active owner")

	// ErrInvalidStatusTransition is returned for membership status changes
	// outside PENDING->ACTIVE and ACTIVE->SUSPENDED.
	ErrInvalidStatusTransition = errors.New("invalid membership status transition")
)
