package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

type grantRepository struct {
	db *sqlx.DB
}

// NewGrantRepository creates a new PostgreSQL authorization grant
// repository.
func NewGrantRepository(db *sqlx.DB) repository.GrantRepository {
	return &grantRepository{db: db}
}

func (r *grantRepository) Create(ctx context.Context, grant *domain.AuthorizationGrant) error {
	query := `
		INSERT INTO authorization_grants (
			id, code_hash, identity_id, client_id, redirect_uri, scope, nonce,
			code_challenge, code_challenge_method, auth_time, expires_at, used_at, created_at
		) VALUES (
			:id, :code_hash, :identity_id, :client_id, :redirect_uri, :scope, :nonce,
			:code_challenge, :code_challenge_method, :auth_time, :expires_at, :used_at, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("failed to create authorization grant: %w", err)
	}

	return nil
}

// Claim marks the grant used and returns it in one statement. The
// unused/unexpired predicate in the WHERE clause is what makes
// concurrent redemptions of the same code mutually exclusive.
func (r *grantRepository) Claim(ctx context.Context, codeHash string) (*domain.AuthorizationGrant, error) {
	query := `
		UPDATE authorization_grants
		SET used_at = $1
		WHERE code_hash = $2 AND used_at IS NULL AND expires_at > $1
		RETURNING id, code_hash, identity_id, client_id, redirect_uri, scope, nonce,
		          code_challenge, code_challenge_method, auth_time, expires_at, used_at, created_at`

	var grant domain.AuthorizationGrant
	if err := r.db.GetContext(ctx, &grant, query, time.Now(), codeHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotClaimed
		}
		return nil, fmt.Errorf("failed to claim authorization grant: %w", err)
	}

	return &grant, nil
}

func (r *grantRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM authorization_grants WHERE expires_at < $1`

	if _, err := r.db.ExecContext(ctx, query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired authorization grants: %w", err)
	}

	return nil
}
