package service

import (
	"context"
	"log"
	"time"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// CleanupService sweeps expired single-use records. The sweep is
// idempotent and safe to run concurrently with live traffic.
type CleanupService struct {
	grants   repository.GrantRepository
	links    repository.MagicLinkRepository
	sessions repository.SessionRepository
	tokens   repository.TokenRepository
}

func NewCleanupService(
	grants repository.GrantRepository,
	links repository.MagicLinkRepository,
	sessions repository.SessionRepository,
	tokens repository.TokenRepository,
) *CleanupService {
	return &CleanupService{
		grants:   grants,
		links:    links,
		sessions: sessions,
		tokens:   tokens,
	}
}

// Run performs one sweep.
func (s *CleanupService) Run(ctx context.Context) {
	if err := s.grants.DeleteExpired(ctx); err != nil {
		log.Printf("[CLEANUP] Expired grant sweep failed: %v", err)
	}
	if err := s.links.DeleteExpired(ctx); err != nil {
		log.Printf("[CLEANUP] Expired magic link sweep failed: %v", err)
	}
	if err := s.sessions.DeleteExpired(ctx); err != nil {
		log.Printf("[CLEANUP] Expired session sweep failed: %v", err)
	}
	if err := s.tokens.DeleteExpired(ctx); err != nil {
		log.Printf("[CLEANUP] Expired token sweep failed: %v", err)
	}
}

// Start sweeps on the interval until the context is cancelled.
func (s *CleanupService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Run(ctx)
			}
		}
	}()
}
