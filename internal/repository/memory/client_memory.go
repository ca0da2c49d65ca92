package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// ClientRepository is a map-backed client store for tests and
// single-node runs.
type ClientRepository struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*domain.Client
}

func NewClientRepository() *ClientRepository {
	return &ClientRepository{clients: make(map[uuid.UUID]*domain.Client)}
}

func (r *ClientRepository) Create(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *client
	r.clients[client.ID] = &clone
	return nil
}

func (r *ClientRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *client
	return &clone, nil
}

func (r *ClientRepository) GetByClientID(_ context.Context, clientID string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, client := range r.clients {
		if client.ClientID == clientID {
			clone := *client
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ClientRepository) RotateSecret(_ context.Context, id uuid.UUID, secretEncrypted []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	client.SecretEncrypted = secretEncrypted
	client.UpdatedAt = time.Now()
	return nil
}

func (r *ClientRepository) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		return repository.ErrNotFound
	}
	client.Active = active
	client.UpdatedAt = time.Now()
	return nil
}
