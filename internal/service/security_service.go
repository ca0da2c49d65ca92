package service

import (
	"context"
	"time"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/ratelimit"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// SecurityService serves the reporting surface. Everything here is a
// pure query over the append-only event log; nothing mutates it.
type SecurityService struct {
	events  repository.EventRepository
	limiter *ratelimit.Limiter
}

func NewSecurityService(events repository.EventRepository, limiter *ratelimit.Limiter) *SecurityService {
	return &SecurityService{events: events, limiter: limiter}
}

// EventQuery narrows RecentEvents.
type EventQuery struct {
	Kind     string `query:"kind"`
	Severity string `query:"severity"`
	Hours    int    `query:"hours" validate:"omitempty,min=1,max=720"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=500"`
}

func (s *SecurityService) RecentEvents(ctx context.Context, q EventQuery) ([]*domain.SecurityEvent, error) {
	hours := q.Hours
	if hours <= 0 {
		hours = 24
	}

	return s.events.ListRecent(ctx, repository.EventFilter{
		Kind:     domain.EventKind(q.Kind),
		Severity: domain.Severity(q.Severity),
		Since:    time.Now().Add(-time.Duration(hours) * time.Hour),
		Limit:    q.Limit,
	})
}

func (s *SecurityService) DashboardStats(ctx context.Context, window time.Duration) (*repository.DashboardStats, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return s.events.Stats(ctx, time.Now().Add(-window))
}

func (s *SecurityService) LoginPatterns(ctx context.Context, window time.Duration) ([]repository.LoginPattern, error) {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return s.events.LoginPatterns(ctx, time.Now().Add(-window))
}

// RateLimitStatus reports per-bucket counts for an IP and optional
// user without recording a request.
func (s *SecurityService) RateLimitStatus(ctx context.Context, ip, userID string) []ratelimit.BucketStatus {
	return s.limiter.GetStatus(ctx, ip, userID)
}
