package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// SessionRepository is a map-backed session store for tests and
// single-node runs.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (r *SessionRepository) Create(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			clone := *s
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *SessionRepository) GetActiveByIdentity(_ context.Context, identityID uuid.UUID) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.IdentityID == identityID && s.IsValid(now) {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *SessionRepository) Touch(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.LastActivityAt = time.Now()
	return nil
}

func (r *SessionRepository) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.RevokedAt = &now
	return nil
}

func (r *SessionRepository) RevokeAllForIdentity(_ context.Context, identityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, s := range r.sessions {
		if s.IdentityID == identityID && s.RevokedAt == nil {
			revokedAt := now
			s.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			delete(r.sessions, id)
		}
	}
	return nil
}
