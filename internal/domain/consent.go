package domain

import (
	"time"

	"github.com/google/uuid"
)

// Consent records an identity's approval of a client's scope request.
// A later authorize call with a covered scope set skips the prompt.
type Consent struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	IdentityID uuid.UUID  `json:"identity_id" db:"identity_id"`
	ClientID   uuid.UUID  `json:"client_id" db:"client_id"`
	Scope      ScopeList  `json:"scope" db:"scope"`
	GrantedAt  time.Time  `json:"granted_at" db:"granted_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}
