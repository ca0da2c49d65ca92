package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessToken is the stored record of an issued access token. The
// opaque form is persisted as a SHA-256 hash only.
type AccessToken struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	TokenHash  string     `json:"-" db:"token_hash"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	ClientID   uuid.UUID  `json:"client_id" db:"client_id"`
	Scope      ScopeList  `json:"scope" db:"scope"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	Revoked    bool       `json:"revoked" db:"revoked"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// RefreshToken references the access token record it was minted
// alongside; rotating it revokes the consumed record.
type RefreshToken struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	TokenHash     string     `json:"-" db:"token_hash"`
	AccessTokenID uuid.UUID  `json:"access_token_id" db:"access_token_id"`
	IdentityID    *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	ClientID      uuid.UUID  `json:"client_id" db:"client_id"`
	Scope         ScopeList  `json:"scope" db:"scope"`
	ExpiresAt     time.Time  `json:"expires_at" db:"expires_at"`
	Revoked       bool       `json:"revoked" db:"revoked"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// TokenSet is the token endpoint response payload.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// AccessClaims are the signed access token claims.
type AccessClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// IDClaims are the OIDC ID token claims.
type IDClaims struct {
	jwt.RegisteredClaims
	AuthTime          int64  `json:"auth_time"`
	Nonce             string `json:"nonce,omitempty"`
	EmailVerified     bool   `json:"email_verified"`
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Locale            string `json:"locale,omitempty"`
}
