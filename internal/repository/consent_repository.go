package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type ConsentRepository interface {
	Create(ctx context.Context, consent *domain.Consent) error
	// GetActive returns the unrevoked consent for (identity, client),
	// or nil when none exists.
	GetActive(ctx context.Context, identityID, clientID uuid.UUID) (*domain.Consent, error)
	Revoke(ctx context.Context, id uuid.UUID) error
}
