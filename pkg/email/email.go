package email

import (
	"context"
	"time"
)

// Mailer sends the out-of-band messages the auth flows depend on.
type Mailer interface {
	// SendMagicLink sends a single-use login link.
	SendMagicLink(ctx context.Context, to, name, linkURL string) error

	// SendPasswordReset sends a single-use password reset link.
	SendPasswordReset(ctx context.Context, to, name, linkURL string) error

	// SendSecurityAlert notifies the account owner of a critical
	// security event (new device, impossible travel, lockout).
	SendSecurityAlert(ctx context.Context, to, name, eventKind, detail string) error

	// SendPasswordChanged confirms a completed password change.
	SendPasswordChanged(ctx context.Context, to, name string) error
}

// Config holds mail service configuration.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}
