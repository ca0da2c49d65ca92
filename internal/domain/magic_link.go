package domain

import (
	"time"

	"github.com/google/uuid"
)

// MagicLinkExpiry is how long a link stays redeemable.
const MagicLinkExpiry = 10 * time.Minute

type MagicLinkPurpose string

const (
	MagicLinkPurposeLogin         MagicLinkPurpose = "login"
	MagicLinkPurposePasswordReset MagicLinkPurpose = "password_reset"
)

// MagicLink is a single-use login or password-reset link. Only the
// SHA-256 hash of the 64-byte token is stored; redemption is an atomic
// claim so two concurrent attempts never both succeed.
type MagicLink struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	TokenHash    string           `json:"-" db:"token_hash"`
	IdentityID   uuid.UUID        `json:"identity_id" db:"identity_id"`
	Purpose      MagicLinkPurpose `json:"purpose" db:"purpose"`
	RequestIP    string           `json:"request_ip" db:"request_ip"`
	RequestUA    string           `json:"request_ua" db:"request_ua"`
	RedirectURI  *string          `json:"redirect_uri,omitempty" db:"redirect_uri"`
	ExpiresAt    time.Time        `json:"expires_at" db:"expires_at"`
	UsedAt       *time.Time       `json:"used_at,omitempty" db:"used_at"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}
