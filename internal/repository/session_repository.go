package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	GetActiveByIdentity(ctx context.Context, identityID uuid.UUID) ([]*domain.Session, error)
	Touch(ctx context.Context, id uuid.UUID) error
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) error
	DeleteExpired(ctx context.Context) error
}
