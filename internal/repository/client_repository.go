package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	GetByClientID(ctx context.Context, clientID string) (*domain.Client, error)
	// RotateSecret replaces the encrypted secret; the only mutation a
	// client permits after issuance besides deactivation.
	RotateSecret(ctx context.Context, id uuid.UUID, secretEncrypted []byte) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}
