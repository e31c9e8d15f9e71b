package apikeys

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ApiKey is a user-owned credential for programmatic access.
type ApiKey struct {
	ID         uuid.UUID    `db:"id"`
	UserID     uuid.UUID    `db:"user_id"`
	Name       string       `db:"name"`
	TokenHash  []byte       `db:"token_hash"`
	SecretEnc  []byte       `db:"secret_enc"`
	Active     bool         `db:"is_active"`
	ExpiresAt  sql.NullTime `db:"expires_at"`
	LastUsedAt sql.NullTime `db:"last_used_at"`
	CreatedAt  time.Time    `db:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at"`
}

func (k *ApiKey) IsExpired() bool {
	return k.ExpiresAt.Valid && !k.ExpiresAt.Time.After(time.Now())
}

type ApiKeyCreatedResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type ApiKeyListItemResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Active     bool       `json:"active"`
	Expired    bool       `json:"expired"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (k *ApiKey) ToCreatedResponse(token string) ApiKeyCreatedResponse {
	resp := ApiKeyCreatedResponse{
		ID:        k.ID,
		Name:      k.Name,
		Token:     token,
		CreatedAt: k.CreatedAt,
	}
	if k.ExpiresAt.Valid {
		resp.ExpiresAt = &k.ExpiresAt.Time
	}
	return resp
}

func (k *ApiKey) ToListItemResponse() ApiKeyListItemResponse {
	resp := ApiKeyListItemResponse{
		ID:        k.ID,
		Name:      k.Name,
		Active:    k.Active,
		Expired:   k.IsExpired(),
		CreatedAt: k.CreatedAt,
	}
	if k.ExpiresAt.Valid {
		resp.ExpiresAt = &k.ExpiresAt.Time
	}
	if k.LastUsedAt.Valid {
		resp.LastUsedAt = &k.LastUsedAt.Time
	}
	return resp
}
