package apikeys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breachwatch/breachwatch/internal/db"
)

var (
	// ErrAPIKeyNotFound is returned when an API key is not found
	ErrAPIKeyNotFound = errors.New("API key not found")

	// ErrNameConflict is returned when the user already has a key by that name
	ErrNameConflict = errors.New("API key name already exists")
)

const apiKeyColumns = `id, user_id, name, token_hash, secret_enc, is_active,
	expires_at, last_used_at, created_at, updated_at`

func scanApiKey(row pgx.Row) (*ApiKey, error) {
	var key ApiKey
	err := row.Scan(
		&key.ID, &key.UserID, &key.Name, &key.TokenHash, &key.SecretEnc,
		&key.Active, &key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt, &key.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// Service provides API key operations. encKey seals plaintext tokens for
// later re-display to the owner.
type Service struct {
	pool   *pgxpool.Pool
	encKey []byte
}

// NewService creates a new API key service
func NewService(pool *pgxpool.Pool, encKey []byte) *Service {
	return &Service{pool: pool, encKey: encKey}
}

// Create creates a new API key and returns it with the plaintext token
func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string, expiresAt *time.Time) (*ApiKey, string, error) {
	token, tokenHash, err := GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	secretEnc, err := EncryptSecret(s.encKey, token)
	if err != nil {
		return nil, "", fmt.Errorf("failed to seal token: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO api_keys (user_id, name, token_hash, secret_enc, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+apiKeyColumns,
		userID, name, tokenHash, secretEnc, expiresAt,
	)

	key, err := scanApiKey(row)
	if err != nil {
		if db.IsUniqueViolation(err, "api_keys_user_id_name_key") {
			return nil, "", ErrNameConflict
		}
		return nil, "", fmt.Errorf("failed to create API key: %w", err)
	}

	return key, token, nil
}

// GetByID retrieves an API key by ID
func (s *Service) GetByID(ctx context.Context, apiKeyID uuid.UUID) (*ApiKey, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, apiKeyID)
	key, err := scanApiKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	return key, nil
}

// ListByUser retrieves all API keys owned by a user
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]ApiKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	var keys []ApiKey
	for rows.Next() {
		var key ApiKey
		err := rows.Scan(
			&key.ID, &key.UserID, &key.Name, &key.TokenHash, &key.SecretEnc,
			&key.Active, &key.ExpiresAt, &key.LastUsedAt, &key.CreatedAt, &key.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API key rows: %w", err)
	}

	return keys, nil
}

// SetActive toggles a key. Deactivation takes effect on the next request
// that presents the key.
func (s *Service) SetActive(ctx context.Context, apiKeyID, userID uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE api_keys
		SET is_active = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2`,
		apiKeyID, userID, active,
	)
	if err != nil {
		return fmt.Errorf("failed to update API key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// Delete removes an API key immediately. In-flight requests already past
// authentication complete; new ones fail.
func (s *Service) Delete(ctx context.Context, apiKeyID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`,
		apiKeyID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// Reveal returns the plaintext token of a key to its owner.
func (s *Service) Reveal(ctx context.Context, apiKeyID, userID uuid.UUID) (string, error) {
	key, err := s.GetByID(ctx, apiKeyID)
	if err != nil {
		return "", err
	}
	if key.UserID != userID {
		return "", ErrAPIKeyNotFound
	}
	return DecryptSecret(s.encKey, key.SecretEnc)
}

// GetByTokenHash retrieves an API key by its token hash
// This is used for authentication
func (s *Service) GetByTokenHash(ctx context.Context, tokenHash []byte) (*ApiKey, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE token_hash = $1`, tokenHash)
	key, err := scanApiKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key by token: %w", err)
	}
	return key, nil
}

// UpdateLastUsed updates the last_used_at timestamp for an API key
func (s *Service) UpdateLastUsed(ctx context.Context, apiKeyID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE api_keys
		SET last_used_at = NOW(), updated_at = NOW()
		WHERE id = $1`,
		apiKeyID,
	)
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}
