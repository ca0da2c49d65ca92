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

type tokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new PostgreSQL token repository.
func NewTokenRepository(db *sqlx.DB) repository.TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) CreateAccessToken(ctx context.Context, token *domain.AccessToken) error {
	query := `
		INSERT INTO access_tokens (
			id, token_hash, identity_id, client_id, scope, expires_at, revoked, created_at
		) VALUES (
			:id, :token_hash, :identity_id, :client_id, :scope, :expires_at, :revoked, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}

	return nil
}

func (r *tokenRepository) CreateRefreshToken(ctx context.Context, token *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (
			id, token_hash, access_token_id, identity_id, client_id, scope, expires_at, revoked, created_at
		) VALUES (
			:id, :token_hash, :access_token_id, :identity_id, :client_id, :scope, :expires_at, :revoked, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

func (r *tokenRepository) GetAccessTokenByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error) {
	query := `
		SELECT id, token_hash, identity_id, client_id, scope, expires_at, revoked, created_at
		FROM access_tokens
		WHERE token_hash = $1`

	var token domain.AccessToken
	if err := r.db.GetContext(ctx, &token, query, tokenHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get access token by hash: %w", err)
	}

	return &token, nil
}

// ClaimRefreshToken revokes and returns the live token in one
// statement; rotation can therefore never double-spend a token.
func (r *tokenRepository) ClaimRefreshToken(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
		RETURNING id, token_hash, access_token_id, identity_id, client_id, scope, expires_at, revoked, created_at`

	var token domain.RefreshToken
	if err := r.db.GetContext(ctx, &token, query, tokenHash, time.Now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotClaimed
		}
		return nil, fmt.Errorf("failed to claim refresh token: %w", err)
	}

	return &token, nil
}

func (r *tokenRepository) RevokeAccessToken(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE access_tokens SET revoked = TRUE WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}

	return nil
}

func (r *tokenRepository) RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE access_tokens SET revoked = TRUE WHERE identity_id = $1`, identityID); err != nil {
		return fmt.Errorf("failed to revoke access tokens for identity: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE identity_id = $1`, identityID); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens for identity: %w", err)
	}

	return nil
}

func (r *tokenRepository) DeleteExpired(ctx context.Context) error {
	now := time.Now()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now); err != nil {
		return fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE expires_at < $1`, now); err != nil {
		return fmt.Errorf("failed to delete expired access tokens: %w", err)
	}

	return nil
}
