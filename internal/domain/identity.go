package domain

import (
	"time"

	"github.com/google/uuid"
)

type IdentityStatus string

const (
	IdentityStatusActive   IdentityStatus = "active"
	IdentityStatusInactive IdentityStatus = "inactive"
	IdentityStatusLocked   IdentityStatus = "locked"
	IdentityStatusDeleted  IdentityStatus = "deleted"
)

// Identity is a user account. Contact fields are encrypted at rest;
// every lookup goes through EmailLookupHash (deterministic HMAC of the
// normalized address), never the encrypted value.
type Identity struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	DisplayName       string         `json:"display_name" db:"display_name"`
	EmailEncrypted    []byte         `json:"-" db:"email_encrypted"`
	EmailLookupHash   string         `json:"-" db:"email_lookup_hash"`
	EmailVerified     bool           `json:"email_verified" db:"email_verified"`
	PhoneEncrypted    []byte         `json:"-" db:"phone_encrypted"`
	PasswordHash      string         `json:"-" db:"password_hash"`
	Status            IdentityStatus `json:"status" db:"status"`
	MFAEnabled        bool           `json:"mfa_enabled" db:"mfa_enabled"`
	MFASecretEncrypted []byte        `json:"-" db:"mfa_secret_encrypted"`
	RecoveryCodeHashes RecoveryCodeHashes `json:"-" db:"recovery_code_hashes"`
	FailedLogins      int            `json:"-" db:"failed_logins"`
	LockedUntil       *time.Time     `json:"-" db:"locked_until"`
	Privileged        bool           `json:"privileged" db:"privileged"`
	Locale            string         `json:"locale" db:"locale"`
	PasswordChangedAt *time.Time     `json:"-" db:"password_changed_at"`
	LastLoginAt       *time.Time     `json:"last_login_at" db:"last_login_at"`
	LastLoginIP       *string        `json:"-" db:"last_login_ip"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
	DeletedAt         *time.Time     `json:"-" db:"deleted_at"`
}

// IsLocked reports whether the lockout window is still open.
func (i *Identity) IsLocked(now time.Time) bool {
	return i.LockedUntil != nil && now.Before(*i.LockedUntil)
}
