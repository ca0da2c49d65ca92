package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed bool      `json:"allowed"`
	Current int       `json:"current"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"reset_at"`
}

// BucketStatus is one bucket's read-only view for GetStatus.
type BucketStatus struct {
	Bucket  Bucket `json:"bucket"`
	Scope   Scope  `json:"scope"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
}

// Limiter is a sliding-window request counter keyed by
// (scope, bucket, identifier). Each Allow appends the current
// timestamp, then counts entries inside the trailing window. The
// check-then-record is a single append plus a read-side filter; bursts
// that race past the limit are tolerated (soft limit).
type Limiter struct {
	timeline cache.Timeline
	buckets  map[Bucket]BucketConfig
}

func NewLimiter(timeline cache.Timeline, buckets map[Bucket]BucketConfig) *Limiter {
	if buckets == nil {
		buckets = DefaultBuckets()
	}
	return &Limiter{timeline: timeline, buckets: buckets}
}

func limiterKey(scope Scope, bucket Bucket, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", scope, bucket, identifier)
}

// Allow records the request and reports whether it fits the window.
// Errors from the shared cache degrade to allowed so a cache outage
// never locks everyone out.
func (l *Limiter) Allow(ctx context.Context, scope Scope, bucket Bucket, identifier string) Result {
	cfg, ok := l.buckets[bucket]
	if !ok {
		return Result{Allowed: true}
	}

	limit := cfg.PerIPLimit
	if scope == ScopePerUser {
		limit = cfg.PerUserLimit
	}

	now := time.Now()
	key := limiterKey(scope, bucket, identifier)

	if err := l.timeline.Append(ctx, key, now, cfg.Window); err != nil {
		return Result{Allowed: true, Limit: limit, ResetAt: now.Add(cfg.Window)}
	}

	current, err := l.timeline.CountSince(ctx, key, now.Add(-cfg.Window))
	if err != nil {
		return Result{Allowed: true, Limit: limit, ResetAt: now.Add(cfg.Window)}
	}

	resetAt := now.Add(cfg.Window)
	if oldest, found, err := l.timeline.OldestSince(ctx, key, now.Add(-cfg.Window)); err == nil && found {
		resetAt = oldest.Add(cfg.Window)
	}

	return Result{
		Allowed: current <= limit,
		Current: current,
		Limit:   limit,
		ResetAt: resetAt,
	}
}

// Peek counts the window without recording a request.
func (l *Limiter) Peek(ctx context.Context, scope Scope, bucket Bucket, identifier string) (int, int) {
	cfg, ok := l.buckets[bucket]
	if !ok {
		return 0, 0
	}

	limit := cfg.PerIPLimit
	if scope == ScopePerUser {
		limit = cfg.PerUserLimit
	}

	current, err := l.timeline.CountSince(ctx, limiterKey(scope, bucket, identifier), time.Now().Add(-cfg.Window))
	if err != nil {
		return 0, limit
	}
	return current, limit
}

// GetStatus returns, per bucket, the filtered count and configured
// limit for an IP and (optionally) a user, without mutating state.
func (l *Limiter) GetStatus(ctx context.Context, ip, userID string) []BucketStatus {
	statuses := make([]BucketStatus, 0, len(l.buckets)*2)

	for bucket := range l.buckets {
		current, limit := l.Peek(ctx, ScopePerIP, bucket, ip)
		statuses = append(statuses, BucketStatus{Bucket: bucket, Scope: ScopePerIP, Current: current, Limit: limit})

		if userID != "" {
			current, limit = l.Peek(ctx, ScopePerUser, bucket, userID)
			statuses = append(statuses, BucketStatus{Bucket: bucket, Scope: ScopePerUser, Current: current, Limit: limit})
		}
	}

	return statuses
}
