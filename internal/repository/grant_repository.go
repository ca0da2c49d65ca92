package repository

import (
	"context"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type GrantRepository interface {
	Create(ctx context.Context, grant *domain.AuthorizationGrant) error
	// Claim atomically marks the unused, unexpired grant with this
	// code hash as used and returns it. Among N concurrent claims of
	// the same code exactly one succeeds; the rest get ErrNotClaimed.
	Claim(ctx context.Context, codeHash string) (*domain.AuthorizationGrant, error)
	DeleteExpired(ctx context.Context) error
}
