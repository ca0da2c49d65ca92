package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

type consentRepository struct {
	db *sqlx.DB
}

// NewConsentRepository creates a new PostgreSQL consent repository.
func NewConsentRepository(db *sqlx.DB) repository.ConsentRepository {
	return &consentRepository{db: db}
}

func (r *consentRepository) Create(ctx context.Context, consent *domain.Consent) error {
	query := `
		INSERT INTO consents (id, identity_id, client_id, scope, granted_at, revoked_at)
		VALUES (:id, :identity_id, :client_id, :scope, :granted_at, :revoked_at)`

	if _, err := r.db.NamedExecContext(ctx, query, consent); err != nil {
		return fmt.Errorf("failed to create consent: %w", err)
	}

	return nil
}

func (r *consentRepository) GetActive(ctx context.Context, identityID, clientID uuid.UUID) (*domain.Consent, error) {
	query := `
		SELECT id, identity_id, client_id, scope, granted_at, revoked_at
		FROM consents
		WHERE identity_id = $1 AND client_id = $2 AND revoked_at IS NULL
		ORDER BY granted_at DESC
		LIMIT 1`

	var consent domain.Consent
	if err := r.db.GetContext(ctx, &consent, query, identityID, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active consent: %w", err)
	}

	return &consent, nil
}

func (r *consentRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE consents SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to revoke consent: %w", err)
	}

	return nil
}
