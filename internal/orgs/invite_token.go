package orgs

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	InviteTokenPrefix = "bwi_"
	InviteTokenBytes  = 32
)

// GenerateInviteToken creates a new invite token with the format bwi_<base64url>.
// The token is stored as-is so an idempotent create can hand the same
// capability back to a concurrent caller; it is unguessable and unique.
func GenerateInviteToken() (string, error) {
	randomBytes := make([]byte, InviteTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return InviteTokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// ValidateInviteTokenFormat checks if a token has the correct format
func ValidateInviteTokenFormat(token string) bool {
	if len(token) < len(InviteTokenPrefix) {
		return false
	}

	if token[:len(InviteTokenPrefix)] != InviteTokenPrefix {
		return false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(token[len(InviteTokenPrefix):])
	if err != nil {
		return false
	}

	return len(decoded) == InviteTokenBytes
}
