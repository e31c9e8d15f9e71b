package orgs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateInviteToken_AndValidateFormat(t *testing.T) {
	token, err := GenerateInviteToken()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(token, InviteTokenPrefix))
	require.True(t, ValidateInviteTokenFormat(token))
}

func TestGenerateInviteToken_Unique(t *testing.T) {
	a, err := GenerateInviteToken()
	require.NoError(t, err)
	b, err := GenerateInviteToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestValidateInviteTokenFormat_InvalidPrefix(t *testing.T) {
	require.False(t, ValidateInviteTokenFormat("nope_abc"))
}

func TestValidateInviteTokenFormat_TruncatedToken(t *testing.T) {
	token, err := GenerateInviteToken()
	require.NoError(t, err)
	require.False(t, ValidateInviteTokenFormat(token[:len(token)-4]))
}

func TestInvite_IsExpired(t *testing.T) {
	now := time.Now().UTC()

	inv := Invite{ExpiresAt: now.Add(time.Hour)}
	require.False(t, inv.IsExpired(now))

	inv.ExpiresAt = now.Add(-time.Hour)
	require.True(t, inv.IsExpired(now))

	inv.ExpiresAt = now
	require.True(t, inv.IsExpired(now))
}
