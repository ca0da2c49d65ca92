package events

import (
	"context"
	"log"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/email"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/webhook"
)

// MultiAlerter fans a critical event out to several sinks.
type MultiAlerter []Alerter

func (m MultiAlerter) Alert(ctx context.Context, event *domain.SecurityEvent) {
	for _, a := range m {
		a.Alert(ctx, event)
	}
}

// ClientWebhookAlerter notifies the downstream client domain named in
// the event metadata, if it registered a webhook endpoint.
type ClientWebhookAlerter struct {
	clients  repository.ClientRepository
	notifier *webhook.Notifier
}

func NewClientWebhookAlerter(clients repository.ClientRepository, notifier *webhook.Notifier) *ClientWebhookAlerter {
	return &ClientWebhookAlerter{clients: clients, notifier: notifier}
}

func (a *ClientWebhookAlerter) Alert(ctx context.Context, event *domain.SecurityEvent) {
	if event.Metadata.ClientID == "" {
		return
	}

	client, err := a.clients.GetByClientID(ctx, event.Metadata.ClientID)
	if err != nil || client.WebhookURL == nil || *client.WebhookURL == "" {
		return
	}

	payload := webhook.Payload{
		Event:      string(event.Kind),
		Severity:   string(event.Severity),
		Message:    event.Message,
		OccurredAt: event.CreatedAt,
	}
	if event.IdentityID != nil {
		payload.IdentityID = event.IdentityID.String()
	}
	if event.CorrelationID != nil {
		payload.CorrelationID = event.CorrelationID.String()
	}
	a.notifier.Notify(*client.WebhookURL, payload)
}

// MailAlerter emails the affected account owner when a critical event
// names an identity. Events without an identity (pure IP signals) are
// logged only.
type MailAlerter struct {
	identities repository.IdentityRepository
	codec      *secrets.Codec
	mailer     email.Mailer
}

func NewMailAlerter(identities repository.IdentityRepository, codec *secrets.Codec, mailer email.Mailer) *MailAlerter {
	return &MailAlerter{identities: identities, codec: codec, mailer: mailer}
}

func (a *MailAlerter) Alert(ctx context.Context, event *domain.SecurityEvent) {
	log.Printf("[ALERT] %s: %s (ip=%s)", event.Kind, event.Message, event.IPAddress)

	if event.IdentityID == nil {
		return
	}

	identity, err := a.identities.GetByID(ctx, *event.IdentityID)
	if err != nil {
		log.Printf("[ALERT] Failed to load identity for alert: %v", err)
		return
	}

	address, err := a.codec.Decrypt(identity.EmailEncrypted)
	if err != nil {
		log.Printf("[ALERT] Failed to decrypt alert recipient: %v", err)
		return
	}

	if err := a.mailer.SendSecurityAlert(ctx, address, identity.DisplayName, string(event.Kind), event.Message); err != nil {
		log.Printf("[ALERT] Failed to send security alert: %v", err)
	}
}
