package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// TokenRepository is a map-backed token store for tests and
// single-node runs.
type TokenRepository struct {
	mu      sync.Mutex
	access  map[uuid.UUID]*domain.AccessToken
	refresh map[uuid.UUID]*domain.RefreshToken
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		access:  make(map[uuid.UUID]*domain.AccessToken),
		refresh: make(map[uuid.UUID]*domain.RefreshToken),
	}
}

func (r *TokenRepository) CreateAccessToken(_ context.Context, token *domain.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *token
	r.access[token.ID] = &clone
	return nil
}

func (r *TokenRepository) CreateRefreshToken(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *token
	r.refresh[token.ID] = &clone
	return nil
}

func (r *TokenRepository) GetAccessTokenByHash(_ context.Context, tokenHash string) (*domain.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.access {
		if token.TokenHash == tokenHash {
			clone := *token
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *TokenRepository) ClaimRefreshToken(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, token := range r.refresh {
		if token.TokenHash != tokenHash {
			continue
		}
		if token.Revoked || now.After(token.ExpiresAt) {
			return nil, repository.ErrNotClaimed
		}
		token.Revoked = true
		clone := *token
		return &clone, nil
	}
	return nil, repository.ErrNotClaimed
}

func (r *TokenRepository) RevokeAccessToken(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.access[id]
	if !ok {
		return repository.ErrNotFound
	}
	token.Revoked = true
	return nil
}

func (r *TokenRepository) RevokeAllForIdentity(_ context.Context, identityID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, token := range r.access {
		if token.IdentityID != nil && *token.IdentityID == identityID {
			token.Revoked = true
		}
	}
	for _, token := range r.refresh {
		if token.IdentityID != nil && *token.IdentityID == identityID {
			token.Revoked = true
		}
	}
	return nil
}

func (r *TokenRepository) DeleteExpired(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, token := range r.access {
		if now.After(token.ExpiresAt) {
			delete(r.access, id)
		}
	}
	for id, token := range r.refresh {
		if now.After(token.ExpiresAt) {
			delete(r.refresh, id)
		}
	}
	return nil
}
