package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type TokenRepository interface {
	CreateAccessToken(ctx context.Context, token *domain.AccessToken) error
	CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error
	GetAccessTokenByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error)
	// ClaimRefreshToken atomically revokes the live refresh token with
	// this hash and returns it; a rotated or revoked token cannot be
	// claimed twice.
	ClaimRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	RevokeAccessToken(ctx context.Context, id uuid.UUID) error
	RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) error
	DeleteExpired(ctx context.Context) error
}
