package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is bound to a random opaque token whose SHA-256 hash is the
// only thing persisted. Immutable after creation except for
// LastActivityAt and RevokedAt.
type Session struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	IdentityID     uuid.UUID  `json:"identity_id" db:"identity_id"`
	TokenHash      string     `json:"-" db:"token_hash"`
	IPAddress      string     `json:"ip_address" db:"ip_address"`
	UserAgent      string     `json:"user_agent" db:"user_agent"`
	Country        *string    `json:"country,omitempty" db:"country"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

func (s *Session) IsValid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
