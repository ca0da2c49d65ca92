package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// MagicLinkRepository is a map-backed magic link store for tests and
// single-node runs. Claim serializes under the lock so exactly one of
// N concurrent redemptions succeeds.
type MagicLinkRepository struct {
	mu    sync.Mutex
	links map[uuid.UUID]*domain.MagicLink
}

func NewMagicLinkRepository() *MagicLinkRepository {
	return &MagicLinkRepository{links: make(map[uuid.UUID]*domain.MagicLink)}
}

func (r *MagicLinkRepository) Create(_ context.Context, link *domain.MagicLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *link
	r.links[link.ID] = &clone
	return nil
}

func (r *MagicLinkRepository) Claim(_ context.Context, tokenHash string, purpose domain.MagicLinkPurpose) (*domain.MagicLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, link := range r.links {
		if link.TokenHash != tokenHash || link.Purpose != purpose {
			continue
		}
		if link.UsedAt != nil || now.After(link.ExpiresAt) {
			return nil, repository.ErrNotClaimed
		}
		usedAt := now
		link.UsedAt = &usedAt
		clone := *link
		return &clone, nil
	}
	return nil, repository.ErrNotClaimed
}

func (r *MagicLinkRepository) DeleteExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, link := range r.links {
		if now.After(link.ExpiresAt) {
			delete(r.links, id)
		}
	}
	return nil
}
