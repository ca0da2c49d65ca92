package repository

import (
	"context"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type MagicLinkRepository interface {
	Create(ctx context.Context, link *domain.MagicLink) error
	// Claim atomically marks the unused, unexpired link with this
	// token hash and purpose as used and returns it. Concurrent
	// redemptions of one token yield exactly one success.
	Claim(ctx context.Context, tokenHash string, purpose domain.MagicLinkPurpose) (*domain.MagicLink, error)
	DeleteExpired(ctx context.Context) error
}
