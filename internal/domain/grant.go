package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// GrantExpiry is how long an authorization code stays redeemable.
	GrantExpiry = 10 * time.Minute

	PKCEMethodS256  = "S256"
	PKCEMethodPlain = "plain"
)

// AuthorizationGrant is a single-use authorization code record.
// Only the SHA-256 hash of the code is stored. The unused->used
// transition happens exactly once; reuse fails closed.
type AuthorizationGrant struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	CodeHash            string     `json:"-" db:"code_hash"`
	IdentityID          uuid.UUID  `json:"identity_id" db:"identity_id"`
	ClientID            uuid.UUID  `json:"client_id" db:"client_id"`
	RedirectURI         string     `json:"redirect_uri" db:"redirect_uri"`
	Scope               ScopeList  `json:"scope" db:"scope"`
	Nonce               *string    `json:"nonce,omitempty" db:"nonce"`
	CodeChallenge       *string    `json:"-" db:"code_challenge"`
	CodeChallengeMethod *string    `json:"-" db:"code_challenge_method"`
	AuthTime            time.Time  `json:"auth_time" db:"auth_time"`
	ExpiresAt           time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt              *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

func (g *AuthorizationGrant) IsExpired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
