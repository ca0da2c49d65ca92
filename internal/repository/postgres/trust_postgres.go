package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

type trustRepository struct {
	db *sqlx.DB
}

// NewTrustRepository creates a new PostgreSQL trust decision
// repository.
func NewTrustRepository(db *sqlx.DB) repository.TrustRepository {
	return &trustRepository{db: db}
}

func (r *trustRepository) Create(ctx context.Context, decision *domain.TrustDecision) error {
	query := `
		INSERT INTO trust_decisions (
			id, identity_id, ip_address, action, sensitivity,
			device_score, user_score, behavior_score, network_score, context_score,
			aggregate, required, allowed, created_at
		) VALUES (
			:id, :identity_id, :ip_address, :action, :sensitivity,
			:device_score, :user_score, :behavior_score, :network_score, :context_score,
			:aggregate, :required, :allowed, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, decision); err != nil {
		return fmt.Errorf("failed to create trust decision: %w", err)
	}

	return nil
}
