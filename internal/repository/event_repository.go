package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

// EventFilter narrows dashboard queries over the append-only log.
type EventFilter struct {
	IdentityID *uuid.UUID
	Kind       domain.EventKind
	Severity   domain.Severity
	Since      time.Time
	Limit      int
}

// DashboardStats is an aggregate snapshot for the reporting surface.
type DashboardStats struct {
	TotalEvents    int `json:"total_events" db:"total_events"`
	CriticalEvents int `json:"critical_events" db:"critical_events"`
	LoginSuccesses int `json:"login_successes" db:"login_successes"`
	LoginFailures  int `json:"login_failures" db:"login_failures"`
}

// LoginPattern is one (country, count) row of the login distribution.
type LoginPattern struct {
	Country string `json:"country" db:"country"`
	Count   int    `json:"count" db:"count"`
}

type EventRepository interface {
	Create(ctx context.Context, event *domain.SecurityEvent) error
	// BackfillFingerprint is the only permitted mutation: attaching a
	// device fingerprint to an already-recorded event's metadata.
	BackfillFingerprint(ctx context.Context, id uuid.UUID, fingerprint string) error
	ListRecent(ctx context.Context, filter EventFilter) ([]*domain.SecurityEvent, error)
	CountByKindAndIP(ctx context.Context, kind domain.EventKind, ip string, since time.Time) (int, error)
	CountByKindAndIdentity(ctx context.Context, kind domain.EventKind, identityID uuid.UUID, since time.Time) (int, error)
	// LastSuccessFromOtherIP returns the most recent login_success for
	// the identity from an IP different from current, inside the window.
	LastSuccessFromOtherIP(ctx context.Context, identityID uuid.UUID, currentIP string, since time.Time) (*domain.SecurityEvent, error)
	HasFingerprint(ctx context.Context, identityID uuid.UUID, fingerprint string) (bool, error)
	// HasBrowser reports whether any event for the identity other than
	// `excluding` carries the given browser family. Pass uuid.Nil to
	// search the whole history.
	HasBrowser(ctx context.Context, identityID uuid.UUID, browser string, excluding uuid.UUID) (bool, error)
	Stats(ctx context.Context, since time.Time) (*DashboardStats, error)
	LoginPatterns(ctx context.Context, since time.Time) ([]LoginPattern, error)
}
