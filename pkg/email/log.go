package email

import (
	"context"
	"log"
)

// LogMailer writes outgoing mail to the process log instead of
// delivering it. Used when no mail API key is configured, so magic
// links stay usable during local development.
type LogMailer struct{}

func NewLogMailer() *LogMailer {
	return &LogMailer{}
}

func (m *LogMailer) SendMagicLink(_ context.Context, to, _, linkURL string) error {
	log.Printf("[MAIL] Magic link for %s: %s", to, linkURL)
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, _, linkURL string) error {
	log.Printf("[MAIL] Password reset for %s: %s", to, linkURL)
	return nil
}

func (m *LogMailer) SendSecurityAlert(_ context.Context, to, _, eventKind, detail string) error {
	log.Printf("[MAIL] Security alert for %s: %s (%s)", to, eventKind, detail)
	return nil
}

func (m *LogMailer) SendPasswordChanged(_ context.Context, to, _ string) error {
	log.Printf("[MAIL] Password changed notice for %s", to)
	return nil
}
