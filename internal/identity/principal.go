package identity

import (
	"errors"

	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when no valid credential accompanies a request.
var ErrUnauthenticated = errors.New("unauthenticated")

// AuthMethod distinguishes how a principal authenticated.
type AuthMethod string

const (
	MethodSession AuthMethod = "SESSION"
	MethodAPIKey  AuthMethod = "API_KEY"
)

// PlatformRole is the platform-wide role of a user, independent of any
// organization membership.
type PlatformRole string

const (
	PlatformUser       PlatformRole = "USER"
	PlatformAdmin      PlatformRole = "ADMIN"
	PlatformSuperAdmin PlatformRole = "SUPER_ADMIN"
)

// IsValid returns true for a known platform role.
func (r PlatformRole) IsValid() bool {
	switch r {
	case PlatformUser, PlatformAdmin, PlatformSuperAdmin:
		return true
	}
	return false
}

// IsAdmin returns true if the role carries platform-operator privileges.
func (r PlatformRole) IsAdmin() bool {
	return r == PlatformAdmin || r == PlatformSuperAdmin
}

// Principal is the authenticated actor behind a request. It is built
// per-request from a session token or API key and never persisted.
type Principal struct {
	UserID       uuid.UUID
	Email        string
	Method       AuthMethod
	PlatformRole PlatformRole

	// APIKeyID is set only when Method is MethodAPIKey.
	APIKeyID uuid.UUID
}
