package cache

import (
	"context"
	"time"
)

// Store is a named key-value store with per-entry TTLs. Each concern
// (deny flags, geo cache, Tor list, pending MFA markers) gets its own
// named store so eviction tuning for one never affects another.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Timeline is an append-only per-key timestamp log used by the
// sliding-window rate limiter. Append records now; CountSince returns
// how many entries fall inside the trailing window, pruning older
// ones as a side effect.
type Timeline interface {
	Append(ctx context.Context, key string, at time.Time, retention time.Duration) error
	CountSince(ctx context.Context, key string, since time.Time) (int, error)
	OldestSince(ctx context.Context, key string, since time.Time) (time.Time, bool, error)
}
