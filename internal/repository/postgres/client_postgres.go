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

const clientColumns = `
	id, name, client_id, secret_encrypted, redirect_uris, allowed_origins,
	allowed_scopes, access_token_lifetime, refresh_token_lifetime,
	webhook_url, active, owner_id, created_at, updated_at`

type clientRepository struct {
	db *sqlx.DB
}

// NewClientRepository creates a new PostgreSQL client repository.
func NewClientRepository(db *sqlx.DB) repository.ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	query := `
		INSERT INTO clients (
			id, name, client_id, secret_encrypted, redirect_uris, allowed_origins,
			allowed_scopes, access_token_lifetime, refresh_token_lifetime,
			webhook_url, active, owner_id, created_at, updated_at
		) VALUES (
			:id, :name, :client_id, :secret_encrypted, :redirect_uris, :allowed_origins,
			:allowed_scopes, :access_token_lifetime, :refresh_token_lifetime,
			:webhook_url, :active, :owner_id, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, client); err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

func (r *clientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	var client domain.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client by id: %w", err)
	}

	return &client, nil
}

func (r *clientRepository) GetByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE client_id = $1`

	var client domain.Client
	if err := r.db.GetContext(ctx, &client, query, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client by client_id: %w", err)
	}

	return &client, nil
}

func (r *clientRepository) RotateSecret(ctx context.Context, id uuid.UUID, secretEncrypted []byte) error {
	query := `UPDATE clients SET secret_encrypted = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, secretEncrypted, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to rotate client secret: %w", err)
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

func (r *clientRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE clients SET active = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set client active flag: %w", err)
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
