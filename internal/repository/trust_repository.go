package repository

import (
	"context"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

type TrustRepository interface {
	// Create persists one evaluation for audit. Decisions are never
	// read back on the request path.
	Create(ctx context.Context, decision *domain.TrustDecision) error
}
