package email

import (
	"context"
	"fmt"
	"log"

	"github.com/resend/resend-go/v2"
)

// ResendMailer implements Mailer using Resend.
type ResendMailer struct {
	client *resend.Client
	config *Config
}

func NewResendMailer(config *Config) (*ResendMailer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	if config.FromEmail == "" {
		return nil, fmt.Errorf("from email is required")
	}

	return &ResendMailer{
		client: resend.NewClient(config.APIKey),
		config: config,
	}, nil
}

func (s *ResendMailer) send(ctx context.Context, to, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail),
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		log.Printf("Failed to send %q email to %s: %v", subject, to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Printf("Email %q sent to %s (ID: %s)", subject, to, sent.Id)
	return nil
}

func (s *ResendMailer) SendMagicLink(ctx context.Context, to, name, linkURL string) error {
	return s.send(ctx, to, "Your Sign-In Link", MagicLinkTemplate(name, linkURL))
}

func (s *ResendMailer) SendPasswordReset(ctx context.Context, to, name, linkURL string) error {
	return s.send(ctx, to, "Reset Your Password", PasswordResetTemplate(name, linkURL))
}

func (s *ResendMailer) SendSecurityAlert(ctx context.Context, to, name, eventKind, detail string) error {
	return s.send(ctx, to, "Security Alert on Your Account", SecurityAlertTemplate(name, eventKind, detail))
}

func (s *ResendMailer) SendPasswordChanged(ctx context.Context, to, name string) error {
	return s.send(ctx, to, "Password Changed Successfully", PasswordChangedTemplate(name))
}
