package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/breachwatch/breachwatch/internal/identity"
)

// User is a platform account. Memberships, domains and API keys hang off it
// and cascade away on deletion.
type User struct {
	ID           uuid.UUID             `db:"id"`
	Email        string                `db:"email"`
	PlatformRole identity.PlatformRole `db:"platform_role"`
	CurrentOrgID uuid.NullUUID         `db:"current_org_id"`
	CreatedAt    time.Time             `db:"created_at"`
	UpdatedAt    time.Time             `db:"updated_at"`
}

type MeResponse struct {
	ID           uuid.UUID             `json:"id"`
	Email        string                `json:"email"`
	PlatformRole identity.PlatformRole `json:"platform_role"`
	CurrentOrgID *uuid.UUID            `json:"current_org_id,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

func (u *User) ToMeResponse() MeResponse {
	resp := MeResponse{
		ID:           u.ID,
		Email:        u.Email,
		PlatformRole: u.PlatformRole,
		CreatedAt:    u.CreatedAt,
	}
	if u.CurrentOrgID.Valid {
		resp.CurrentOrgID = &u.CurrentOrgID.UUID
	}
	return resp
}
