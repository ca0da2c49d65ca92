package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// GrantRepository is a map-backed authorization grant store for tests
// and single-node runs. Claim holds the lock for the whole
// check-and-mark so concurrent redemptions serialize.
type GrantRepository struct {
	mu     sync.Mutex
	grants map[uuid.UUID]*domain.AuthorizationGrant
}

func NewGrantRepository() *GrantRepository {
	return &GrantRepository{grants: make(map[uuid.UUID]*domain.AuthorizationGrant)}
}

func (r *GrantRepository) Create(_ context.Context, grant *domain.AuthorizationGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *grant
	r.grants[grant.ID] = &clone
	return nil
}

func (r *GrantRepository) Claim(_ context.Context, codeHash string) (*domain.AuthorizationGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, grant := range r.grants {
		if grant.CodeHash != codeHash {
			continue
		}
		if grant.UsedAt != nil || grant.IsExpired(now) {
			return nil, repository.ErrNotClaimed
		}
		usedAt := now
		grant.UsedAt = &usedAt
		clone := *grant
		return &clone, nil
	}
	return nil, repository.ErrNotClaimed
}

func (r *GrantRepository) DeleteExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, grant := range r.grants {
		if grant.IsExpired(now) {
			delete(r.grants, id)
		}
	}
	return nil
}
