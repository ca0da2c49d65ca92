package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a map-backed Store for tests and single-node runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// MemoryTimeline is a map-backed Timeline for tests and single-node
// runs.
type MemoryTimeline struct {
	mu    sync.Mutex
	lists map[string][]time.Time
}

func NewMemoryTimeline() *MemoryTimeline {
	return &MemoryTimeline{lists: make(map[string][]time.Time)}
}

func (t *MemoryTimeline) Append(_ context.Context, key string, at time.Time, retention time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := at.Add(-retention)
	kept := t.lists[key][:0]
	for _, ts := range t.lists[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	t.lists[key] = append(kept, at)
	return nil
}

func (t *MemoryTimeline) CountSince(_ context.Context, key string, since time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, ts := range t.lists[key] {
		if !ts.Before(since) {
			count++
		}
	}
	return count, nil
}

func (t *MemoryTimeline) OldestSince(_ context.Context, key string, since time.Time) (time.Time, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var oldest time.Time
	found := false
	for _, ts := range t.lists[key] {
		if ts.Before(since) {
			continue
		}
		if !found || ts.Before(oldest) {
			oldest = ts
			found = true
		}
	}
	return oldest, found, nil
}
