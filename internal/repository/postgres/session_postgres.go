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

const sessionColumns = `
	id, identity_id, token_hash, ip_address, user_agent, country,
	created_at, last_activity_at, expires_at, revoked_at`

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (
			id, identity_id, token_hash, ip_address, user_agent, country,
			created_at, last_activity_at, expires_at, revoked_at
		) VALUES (
			:id, :identity_id, :token_hash, :ip_address, :user_agent, :country,
			:created_at, :last_activity_at, :expires_at, :revoked_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *sessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1`

	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session by token hash: %w", err)
	}

	return &session, nil
}

func (r *sessionRepository) GetActiveByIdentity(ctx context.Context, identityID uuid.UUID) ([]*domain.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE identity_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY last_activity_at DESC`

	var sessions []*domain.Session
	if err := r.db.SelectContext(ctx, &sessions, query, identityID, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	return sessions, nil
}

func (r *sessionRepository) Touch(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET last_activity_at = $1 WHERE id = $2 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *sessionRepository) RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) error {
	query := `UPDATE sessions SET revoked_at = $1 WHERE identity_id = $2 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), identityID); err != nil {
		return fmt.Errorf("failed to revoke sessions for identity: %w", err)
	}

	return nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM sessions WHERE expires_at < $1`

	if _, err := r.db.ExecContext(ctx, query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	return nil
}
