package memory

import (
	"context"
	"sync"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

// TrustRepository is a map-backed trust decision log for tests and
// single-node runs.
type TrustRepository struct {
	mu        sync.Mutex
	decisions []*domain.TrustDecision
}

func NewTrustRepository() *TrustRepository {
	return &TrustRepository{}
}

func (r *TrustRepository) Create(_ context.Context, decision *domain.TrustDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *decision
	r.decisions = append(r.decisions, &clone)
	return nil
}

// Decisions returns a snapshot of everything recorded so far.
func (r *TrustRepository) Decisions() []*domain.TrustDecision {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.TrustDecision, len(r.decisions))
	copy(out, r.decisions)
	return out
}
