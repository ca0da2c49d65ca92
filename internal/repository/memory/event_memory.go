package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// EventRepository is a map-backed security event log for tests and
// single-node runs.
type EventRepository struct {
	mu     sync.Mutex
	events []*domain.SecurityEvent
}

func NewEventRepository() *EventRepository {
	return &EventRepository{}
}

func (r *EventRepository) Create(_ context.Context, event *domain.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *event
	r.events = append(r.events, &clone)
	return nil
}

func (r *EventRepository) BackfillFingerprint(_ context.Context, id uuid.UUID, fingerprint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == id {
			e.Metadata.DeviceFingerprint = fingerprint
		}
	}
	return nil
}

func (r *EventRepository) ListRecent(_ context.Context, filter repository.EventFilter) ([]*domain.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.SecurityEvent
	for _, e := range r.events {
		if e.CreatedAt.Before(filter.Since) {
			continue
		}
		if filter.IdentityID != nil && (e.IdentityID == nil || *e.IdentityID != *filter.IdentityID) {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.Severity != "" && e.Severity != filter.Severity {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *EventRepository) CountByKindAndIP(_ context.Context, kind domain.EventKind, ip string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.events {
		if e.Kind == kind && e.IPAddress == ip && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *EventRepository) CountByKindAndIdentity(_ context.Context, kind domain.EventKind, identityID uuid.UUID, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.events {
		if e.Kind == kind && e.IdentityID != nil && *e.IdentityID == identityID && !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *EventRepository) LastSuccessFromOtherIP(_ context.Context, identityID uuid.UUID, currentIP string, since time.Time) (*domain.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.SecurityEvent
	for _, e := range r.events {
		if e.Kind != domain.EventLoginSuccess || e.IdentityID == nil || *e.IdentityID != identityID {
			continue
		}
		if e.IPAddress == currentIP || e.CreatedAt.Before(since) {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}

	clone := *latest
	return &clone, nil
}

func (r *EventRepository) HasFingerprint(_ context.Context, identityID uuid.UUID, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.IdentityID != nil && *e.IdentityID == identityID && e.Metadata.DeviceFingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (r *EventRepository) HasBrowser(_ context.Context, identityID uuid.UUID, browser string, excluding uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID == excluding {
			continue
		}
		if e.IdentityID != nil && *e.IdentityID == identityID && e.Metadata.Browser == browser {
			return true, nil
		}
	}
	return false, nil
}

func (r *EventRepository) Stats(_ context.Context, since time.Time) (*repository.DashboardStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &repository.DashboardStats{}
	for _, e := range r.events {
		if e.CreatedAt.Before(since) {
			continue
		}
		stats.TotalEvents++
		if e.Severity == domain.SeverityCritical {
			stats.CriticalEvents++
		}
		switch e.Kind {
		case domain.EventLoginSuccess:
			stats.LoginSuccesses++
		case domain.EventLoginFailure:
			stats.LoginFailures++
		}
	}
	return stats, nil
}

func (r *EventRepository) LoginPatterns(_ context.Context, since time.Time) ([]repository.LoginPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, e := range r.events {
		if e.Kind != domain.EventLoginSuccess || e.CreatedAt.Before(since) {
			continue
		}
		country := e.Metadata.Country
		if country == "" {
			country = "unknown"
		}
		counts[country]++
	}

	patterns := make([]repository.LoginPattern, 0, len(counts))
	for country, count := range counts {
		patterns = append(patterns, repository.LoginPattern{Country: country, Count: count})
	}
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].Count > patterns[j].Count })
	return patterns, nil
}
