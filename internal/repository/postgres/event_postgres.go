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

const eventColumns = `
	id, kind, severity, identity_id, ip_address, message, metadata,
	correlation_id, created_at`

type eventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new PostgreSQL security event
// repository.
func NewEventRepository(db *sqlx.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.SecurityEvent) error {
	query := `
		INSERT INTO security_events (
			id, kind, severity, identity_id, ip_address, message, metadata,
			correlation_id, created_at
		) VALUES (
			:id, :kind, :severity, :identity_id, :ip_address, :message, :metadata,
			:correlation_id, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to create security event: %w", err)
	}

	return nil
}

func (r *eventRepository) BackfillFingerprint(ctx context.Context, id uuid.UUID, fingerprint string) error {
	query := `
		UPDATE security_events
		SET metadata = jsonb_set(metadata::jsonb, '{device_fingerprint}', to_jsonb($1::text))
		WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, fingerprint, id); err != nil {
		return fmt.Errorf("failed to backfill fingerprint: %w", err)
	}

	return nil
}

func (r *eventRepository) ListRecent(ctx context.Context, filter repository.EventFilter) ([]*domain.SecurityEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM security_events WHERE created_at >= $1`
	args := []interface{}{filter.Since}

	if filter.IdentityID != nil {
		args = append(args, *filter.IdentityID)
		query += fmt.Sprintf(" AND identity_id = $%d", len(args))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	var events []*domain.SecurityEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}

	return events, nil
}

func (r *eventRepository) CountByKindAndIP(ctx context.Context, kind domain.EventKind, ip string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM security_events WHERE kind = $1 AND ip_address = $2 AND created_at >= $3`

	var count int
	if err := r.db.GetContext(ctx, &count, query, kind, ip, since); err != nil {
		return 0, fmt.Errorf("failed to count events by kind and ip: %w", err)
	}

	return count, nil
}

func (r *eventRepository) CountByKindAndIdentity(ctx context.Context, kind domain.EventKind, identityID uuid.UUID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM security_events WHERE kind = $1 AND identity_id = $2 AND created_at >= $3`

	var count int
	if err := r.db.GetContext(ctx, &count, query, kind, identityID, since); err != nil {
		return 0, fmt.Errorf("failed to count events by kind and identity: %w", err)
	}

	return count, nil
}

func (r *eventRepository) LastSuccessFromOtherIP(ctx context.Context, identityID uuid.UUID, currentIP string, since time.Time) (*domain.SecurityEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM security_events
		WHERE kind = $1 AND identity_id = $2 AND ip_address <> $3 AND created_at >= $4
		ORDER BY created_at DESC
		LIMIT 1`

	var event domain.SecurityEvent
	if err := r.db.GetContext(ctx, &event, query, domain.EventLoginSuccess, identityID, currentIP, since); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get last success from other ip: %w", err)
	}

	return &event, nil
}

func (r *eventRepository) HasFingerprint(ctx context.Context, identityID uuid.UUID, fingerprint string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM security_events
			WHERE identity_id = $1 AND metadata::jsonb ->> 'device_fingerprint' = $2
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, identityID, fingerprint); err != nil {
		return false, fmt.Errorf("failed to check fingerprint existence: %w", err)
	}

	return exists, nil
}

func (r *eventRepository) HasBrowser(ctx context.Context, identityID uuid.UUID, browser string, excluding uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM security_events
			WHERE identity_id = $1 AND metadata::jsonb ->> 'browser' = $2 AND id <> $3
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, identityID, browser, excluding); err != nil {
		return false, fmt.Errorf("failed to check browser existence: %w", err)
	}

	return exists, nil
}

func (r *eventRepository) Stats(ctx context.Context, since time.Time) (*repository.DashboardStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_events,
			COUNT(*) FILTER (WHERE severity = 'critical') AS critical_events,
			COUNT(*) FILTER (WHERE kind = 'login_success') AS login_successes,
			COUNT(*) FILTER (WHERE kind = 'login_failure') AS login_failures
		FROM security_events
		WHERE created_at >= $1`

	var stats repository.DashboardStats
	if err := r.db.GetContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("failed to get dashboard stats: %w", err)
	}

	return &stats, nil
}

func (r *eventRepository) LoginPatterns(ctx context.Context, since time.Time) ([]repository.LoginPattern, error) {
	query := `
		SELECT COALESCE(metadata::jsonb ->> 'country', 'unknown') AS country, COUNT(*) AS count
		FROM security_events
		WHERE kind = $1 AND created_at >= $2
		GROUP BY 1
		ORDER BY count DESC`

	var patterns []repository.LoginPattern
	if err := r.db.SelectContext(ctx, &patterns, query, domain.EventLoginSuccess, since); err != nil {
		return nil, fmt.Errorf("failed to get login patterns: %w", err)
	}

	return patterns, nil
}
