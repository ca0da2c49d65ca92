package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// IdentityRepository is a map-backed identity store for tests and
// single-node runs.
type IdentityRepository struct {
	mu         sync.Mutex
	identities map[uuid.UUID]*domain.Identity
}

func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{identities: make(map[uuid.UUID]*domain.Identity)}
}

func (r *IdentityRepository) Create(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *identity
	r.identities[identity.ID] = &clone
	return nil
}

func (r *IdentityRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok || identity.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	clone := *identity
	return &clone, nil
}

func (r *IdentityRepository) GetByLookupHash(_ context.Context, lookupHash string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, identity := range r.identities {
		if identity.EmailLookupHash == lookupHash && identity.DeletedAt == nil {
			clone := *identity
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *IdentityRepository) Update(_ context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.identities[identity.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *identity
	r.identities[identity.ID] = &clone
	return nil
}

func (r *IdentityRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	identity.DeletedAt = &now
	return nil
}

func (r *IdentityRepository) IncrementFailedLogins(_ context.Context, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok || identity.DeletedAt != nil {
		return 0, repository.ErrNotFound
	}
	identity.FailedLogins++
	return identity.FailedLogins, nil
}

func (r *IdentityRepository) ResetFailedLogins(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok || identity.DeletedAt != nil {
		return repository.ErrNotFound
	}
	identity.FailedLogins = 0
	identity.LockedUntil = nil
	return nil
}

func (r *IdentityRepository) UpdateLastLogin(_ context.Context, id uuid.UUID, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok || identity.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	identity.LastLoginAt = &now
	identity.LastLoginIP = &ip
	return nil
}

func (r *IdentityRepository) UpdateRecoveryCodes(_ context.Context, id uuid.UUID, hashes domain.RecoveryCodeHashes) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[id]
	if !ok || identity.DeletedAt != nil {
		return repository.ErrNotFound
	}
	identity.RecoveryCodeHashes = hashes
	return nil
}
