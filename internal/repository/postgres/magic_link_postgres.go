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

type magicLinkRepository struct {
	db *sqlx.DB
}

// NewMagicLinkRepository creates a new PostgreSQL magic link
// repository.
func NewMagicLinkRepository(db *sqlx.DB) repository.MagicLinkRepository {
	return &magicLinkRepository{db: db}
}

func (r *magicLinkRepository) Create(ctx context.Context, link *domain.MagicLink) error {
	query := `
		INSERT INTO magic_links (
			id, token_hash, identity_id, purpose, request_ip, request_ua,
			redirect_uri, expires_at, used_at, created_at
		) VALUES (
			:id, :token_hash, :identity_id, :purpose, :request_ip, :request_ua,
			:redirect_uri, :expires_at, :used_at, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("failed to create magic link: %w", err)
	}

	return nil
}

// Claim marks the link used and returns it in one statement so two
// concurrent redemptions never both succeed.
func (r *magicLinkRepository) Claim(ctx context.Context, tokenHash string, purpose domain.MagicLinkPurpose) (*domain.MagicLink, error) {
	query := `
		UPDATE magic_links
		SET used_at = $1
		WHERE token_hash = $2 AND purpose = $3 AND used_at IS NULL AND expires_at > $1
		RETURNING id, token_hash, identity_id, purpose, request_ip, request_ua,
		          redirect_uri, expires_at, used_at, created_at`

	var link domain.MagicLink
	if err := r.db.GetContext(ctx, &link, query, time.Now(), tokenHash, purpose); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotClaimed
		}
		return nil, fmt.Errorf("failed to claim magic link: %w", err)
	}

	return &link, nil
}

func (r *magicLinkRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM magic_links WHERE expires_at < $1`

	if _, err := r.db.ExecContext(ctx, query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired magic links: %w", err)
	}

	return nil
}
