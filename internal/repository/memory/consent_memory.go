package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// ConsentRepository is a map-backed consent store for tests and
// single-node runs.
type ConsentRepository struct {
	mu       sync.Mutex
	consents map[uuid.UUID]*domain.Consent
}

func NewConsentRepository() *ConsentRepository {
	return &ConsentRepository{consents: make(map[uuid.UUID]*domain.Consent)}
}

func (r *ConsentRepository) Create(_ context.Context, consent *domain.Consent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *consent
	r.consents[consent.ID] = &clone
	return nil
}

func (r *ConsentRepository) GetActive(_ context.Context, identityID, clientID uuid.UUID) (*domain.Consent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.Consent
	for _, consent := range r.consents {
		if consent.IdentityID != identityID || consent.ClientID != clientID || consent.RevokedAt != nil {
			continue
		}
		if latest == nil || consent.GrantedAt.After(latest.GrantedAt) {
			latest = consent
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (r *ConsentRepository) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	consent, ok := r.consents[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	consent.RevokedAt = &now
	return nil
}
