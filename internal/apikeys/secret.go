package apikeys

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrBadEncryptionKey is returned when the configured key is not usable.
var ErrBadEncryptionKey = errors.New("encryption key must be 32 bytes")

// EncryptSecret seals a plaintext token so it can be re-displayed to its
// owner later. The nonce is prepended to the ciphertext.
func EncryptSecret(key []byte, token string) ([]byte, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrBadEncryptionKey
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, []byte(token), nil), nil
}

// DecryptSecret opens a sealed token produced by EncryptSecret.
func DecryptSecret(key []byte, sealed []byte) (string, error) {
	if len(key) != chacha20poly1305.KeySize {
		return "", ErrBadEncryptionKey
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %w", err)
	}

	if len(sealed) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return string(plain), nil
}
