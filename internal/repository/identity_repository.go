package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	// GetByLookupHash resolves an identity via the deterministic email
	// lookup hash; plaintext or encrypted email is never queried.
	GetByLookupHash(ctx context.Context, lookupHash string) (*domain.Identity, error)
	Update(ctx context.Context, identity *domain.Identity) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// IncrementFailedLogins bumps the counter and returns the new value.
	IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error)
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, ip string) error
	UpdateRecoveryCodes(ctx context.Context, id uuid.UUID, hashes domain.RecoveryCodeHashes) error
}
