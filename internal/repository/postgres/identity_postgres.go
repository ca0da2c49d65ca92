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

const identityColumns = `
	id, display_name, email_encrypted, email_lookup_hash, email_verified,
	phone_encrypted, password_hash, status, mfa_enabled, mfa_secret_encrypted,
	recovery_code_hashes, failed_logins, locked_until, privileged, locale,
	password_changed_at, last_login_at, last_login_ip,
	created_at, updated_at, deleted_at`

type identityRepository struct {
	db *sqlx.DB
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(db *sqlx.DB) repository.IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (
			id, display_name, email_encrypted, email_lookup_hash, email_verified,
			phone_encrypted, password_hash, status, mfa_enabled, mfa_secret_encrypted,
			recovery_code_hashes, failed_logins, locked_until, privileged, locale,
			password_changed_at, last_login_at, last_login_ip,
			created_at, updated_at, deleted_at
		) VALUES (
			:id, :display_name, :email_encrypted, :email_lookup_hash, :email_verified,
			:phone_encrypted, :password_hash, :status, :mfa_enabled, :mfa_secret_encrypted,
			:recovery_code_hashes, :failed_logins, :locked_until, :privileged, :locale,
			:password_changed_at, :last_login_at, :last_login_ip,
			:created_at, :updated_at, :deleted_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, identity); err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

func (r *identityRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1 AND deleted_at IS NULL`

	var identity domain.Identity
	if err := r.db.GetContext(ctx, &identity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity by id: %w", err)
	}

	return &identity, nil
}

func (r *identityRepository) GetByLookupHash(ctx context.Context, lookupHash string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email_lookup_hash = $1 AND deleted_at IS NULL`

	var identity domain.Identity
	if err := r.db.GetContext(ctx, &identity, query, lookupHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity by lookup hash: %w", err)
	}

	return &identity, nil
}

func (r *identityRepository) Update(ctx context.Context, identity *domain.Identity) error {
	identity.UpdatedAt = time.Now()

	query := `
		UPDATE identities
		SET display_name = :display_name,
			email_encrypted = :email_encrypted,
			email_lookup_hash = :email_lookup_hash,
			email_verified = :email_verified,
			phone_encrypted = :phone_encrypted,
			password_hash = :password_hash,
			status = :status,
			mfa_enabled = :mfa_enabled,
			mfa_secret_encrypted = :mfa_secret_encrypted,
			recovery_code_hashes = :recovery_code_hashes,
			failed_logins = :failed_logins,
			locked_until = :locked_until,
			privileged = :privileged,
			locale = :locale,
			password_changed_at = :password_changed_at,
			updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL`

	result, err := r.db.NamedExecContext(ctx, query, identity)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
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

// SoftDelete marks the identity deleted; physical purge is the erasure
// workflow's job.
func (r *identityRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE identities
		SET deleted_at = $1, status = $2, updated_at = $1
		WHERE id = $3 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, time.Now(), domain.IdentityStatusDeleted, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete identity: %w", err)
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

func (r *identityRepository) IncrementFailedLogins(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE identities
		SET failed_logins = failed_logins + 1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
		RETURNING failed_logins`

	var count int
	if err := r.db.GetContext(ctx, &count, query, time.Now(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment failed logins: %w", err)
	}

	return count, nil
}

func (r *identityRepository) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE identities
		SET failed_logins = 0, locked_until = NULL, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to reset failed logins: %w", err)
	}

	return nil
}

func (r *identityRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, ip string) error {
	query := `
		UPDATE identities
		SET last_login_at = $1, last_login_ip = $2, updated_at = $1
		WHERE id = $3 AND deleted_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, time.Now(), ip, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

func (r *identityRepository) UpdateRecoveryCodes(ctx context.Context, id uuid.UUID, hashes domain.RecoveryCodeHashes) error {
	query := `
		UPDATE identities
		SET recovery_code_hashes = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, hashes, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update recovery codes: %w", err)
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
