package apikeys

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testEncKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptSecret(t *testing.T) {
	key := testEncKey(t)

	token, _, err := GenerateToken()
	require.NoError(t, err)

	sealed, err := EncryptSecret(key, token)
	require.NoError(t, err)
	require.NotContains(t, string(sealed), token)

	plain, err := DecryptSecret(key, sealed)
	require.NoError(t, err)
	require.Equal(t, token, plain)
}

func TestDecryptSecret_WrongKey(t *testing.T) {
	sealed, err := EncryptSecret(testEncKey(t), "bwk_secret")
	require.NoError(t, err)

	_, err = DecryptSecret(testEncKey(t), sealed)
	require.Error(t, err)
}

func TestEncryptSecret_BadKeySize(t *testing.T) {
	_, err := EncryptSecret(make([]byte, 16), "bwk_secret")
	require.ErrorIs(t, err, ErrBadEncryptionKey)

	_, err = DecryptSecret(make([]byte, 16), []byte("short"))
	require.ErrorIs(t, err, ErrBadEncryptionKey)
}

func TestDecryptSecret_TruncatedCiphertext(t *testing.T) {
	_, err := DecryptSecret(testEncKey(t), []byte("short"))
	require.Error(t, err)
}
