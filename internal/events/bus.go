package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/geo"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/webhook"
)

const (
	// Brute-force recheck on login_failure: at or past this many
	// failures from one IP inside the window, the IP gets a deny flag.
	bruteForceWindow    = 15 * time.Minute
	bruteForceThreshold = 5
	denyFlagTTL         = time.Hour

	// Impossible-travel recheck on login_success only looks back this
	// far; anything older cannot produce a meaningful speed estimate.
	travelWindow   = 2 * time.Hour
	maxTravelSpeed = 900.0 // km/h
)

// Alerter surfaces critical events to an operational sink.
type Alerter interface {
	Alert(ctx context.Context, event *domain.SecurityEvent)
}

// Bus is the append-only security event log. Record persists the event
// and then runs the hooks registered for its kind synchronously, in
// process. Hook failures are logged and never fail the recording.
type Bus struct {
	events   repository.EventRepository
	deny     cache.Store
	resolver geo.Resolver
	alerter  Alerter
	notifier *webhook.Notifier

	// webhookURL is the operator-configured endpoint notified on
	// critical events. Empty disables delivery.
	webhookURL string
}

func NewBus(events repository.EventRepository, deny cache.Store, resolver geo.Resolver, alerter Alerter, notifier *webhook.Notifier, webhookURL string) *Bus {
	return &Bus{
		events:     events,
		deny:       deny,
		resolver:   resolver,
		alerter:    alerter,
		notifier:   notifier,
		webhookURL: webhookURL,
	}
}

// Record appends the event and runs its kind's hooks. The persisted
// event is returned so callers can correlate follow-up events to it.
func (b *Bus) Record(ctx context.Context, event *domain.SecurityEvent) (*domain.SecurityEvent, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.Severity == "" {
		event.Severity = domain.SeverityInfo
	}
	if event.Metadata.Browser == "" {
		event.Metadata.Browser = domain.BrowserFamily(event.Metadata.UserAgent)
	}

	// The fingerprint is withheld from the insert so the new-device
	// hook can check it against history first; it is backfilled after.
	fingerprint := ""
	if event.Kind == domain.EventLoginSuccess {
		fingerprint = event.Metadata.DeviceFingerprint
		event.Metadata.DeviceFingerprint = ""
		b.enrichLocation(ctx, event)
	}

	if err := b.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record security event: %w", err)
	}

	switch event.Kind {
	case domain.EventLoginFailure:
		b.onLoginFailure(ctx, event)
	case domain.EventLoginSuccess:
		b.onLoginSuccess(ctx, event, fingerprint)
	}

	b.surface(ctx, event)

	return event, nil
}

// IsDenied reports whether the IP currently carries a brute-force deny
// flag. Errors degrade to "not denied"; the limiter still applies.
func (b *Bus) IsDenied(ctx context.Context, ip string) bool {
	_, found, err := b.deny.Get(ctx, ip)
	if err != nil {
		log.Printf("[EVENTS] Deny flag lookup failed for %s: %v", ip, err)
		return false
	}
	return found
}

func (b *Bus) onLoginFailure(ctx context.Context, event *domain.SecurityEvent) {
	count, err := b.events.CountByKindAndIP(ctx, domain.EventLoginFailure, event.IPAddress, event.CreatedAt.Add(-bruteForceWindow))
	if err != nil {
		log.Printf("[EVENTS] Brute-force recheck failed for %s: %v", event.IPAddress, err)
		return
	}
	if count < bruteForceThreshold {
		return
	}

	if err := b.deny.Set(ctx, event.IPAddress, "1", denyFlagTTL); err != nil {
		log.Printf("[EVENTS] Failed to set deny flag for %s: %v", event.IPAddress, err)
	}

	correlation := event.ID
	if _, err := b.Record(ctx, &domain.SecurityEvent{
		Kind:          domain.EventBruteForce,
		Severity:      domain.SeverityCritical,
		IdentityID:    event.IdentityID,
		IPAddress:     event.IPAddress,
		Message:       fmt.Sprintf("brute force detected: %d failed logins from %s within %s", count, event.IPAddress, bruteForceWindow),
		Metadata:      domain.EventMetadata{FailureCount: count},
		CorrelationID: &correlation,
	}); err != nil {
		log.Printf("[EVENTS] Failed to record brute_force event: %v", err)
	}
}

func (b *Bus) onLoginSuccess(ctx context.Context, event *domain.SecurityEvent, fingerprint string) {
	b.checkImpossibleTravel(ctx, event)

	if fingerprint == "" || event.IdentityID == nil {
		return
	}

	seen, err := b.events.HasFingerprint(ctx, *event.IdentityID, fingerprint)
	if err != nil {
		log.Printf("[EVENTS] Fingerprint lookup failed: %v", err)
	} else if !seen {
		// An unseen fingerprint on a familiar browser (same family on
		// file for this identity) is routine churn, not a warning.
		severity := domain.SeverityWarning
		message := "login from an unrecognized device"
		if event.Metadata.Browser != "" {
			known, browserErr := b.events.HasBrowser(ctx, *event.IdentityID, event.Metadata.Browser, event.ID)
			if browserErr != nil {
				log.Printf("[EVENTS] Browser lookup failed: %v", browserErr)
			} else if known {
				severity = domain.SeverityInfo
				message = "login from a new device with a previously seen browser"
			}
		}

		correlation := event.ID
		if _, err := b.Record(ctx, &domain.SecurityEvent{
			Kind:          domain.EventNewDevice,
			Severity:      severity,
			IdentityID:    event.IdentityID,
			IPAddress:     event.IPAddress,
			Message:       message,
			Metadata:      domain.EventMetadata{UserAgent: event.Metadata.UserAgent, Browser: event.Metadata.Browser, DeviceFingerprint: fingerprint},
			CorrelationID: &correlation,
		}); err != nil {
			log.Printf("[EVENTS] Failed to record new_device event: %v", err)
		}
	}

	if err := b.events.BackfillFingerprint(ctx, event.ID, fingerprint); err != nil {
		log.Printf("[EVENTS] Fingerprint backfill failed: %v", err)
	}
	event.Metadata.DeviceFingerprint = fingerprint
}

func (b *Bus) checkImpossibleTravel(ctx context.Context, event *domain.SecurityEvent) {
	if event.IdentityID == nil {
		return
	}

	previous, err := b.events.LastSuccessFromOtherIP(ctx, *event.IdentityID, event.IPAddress, event.CreatedAt.Add(-travelWindow))
	if err != nil {
		if err != repository.ErrNotFound {
			log.Printf("[EVENTS] Previous login lookup failed: %v", err)
		}
		return
	}

	current := b.locate(ctx, &event.Metadata, event.IPAddress)
	prior := b.locate(ctx, &previous.Metadata, previous.IPAddress)
	if current == nil || prior == nil {
		return
	}

	distance := geo.DistanceKM(prior.Latitude, prior.Longitude, current.Latitude, current.Longitude)
	elapsed := event.CreatedAt.Sub(previous.CreatedAt).Hours()
	if elapsed <= 0 {
		elapsed = 1.0 / 3600 // clamp to one second
	}
	speed := distance / elapsed
	if speed <= maxTravelSpeed {
		return
	}

	correlation := event.ID
	if _, err := b.Record(ctx, &domain.SecurityEvent{
		Kind:       domain.EventImpossibleTravel,
		Severity:   domain.SeverityCritical,
		IdentityID: event.IdentityID,
		IPAddress:  event.IPAddress,
		Message:    fmt.Sprintf("login %.0f km from previous location %.0f minutes earlier", distance, event.CreatedAt.Sub(previous.CreatedAt).Minutes()),
		Metadata: domain.EventMetadata{
			PreviousIP:       previous.IPAddress,
			DistanceKM:       distance,
			RequiredSpeedKMH: speed,
			Country:          current.Country,
			City:             current.City,
		},
		CorrelationID: &correlation,
	}); err != nil {
		log.Printf("[EVENTS] Failed to record impossible_travel event: %v", err)
	}
}

// locate returns coordinates from metadata when a prior enrichment
// recorded them, resolving the IP otherwise. Lookup failures degrade
// to nil; travel checks then skip rather than fail the login.
func (b *Bus) locate(ctx context.Context, meta *domain.EventMetadata, ip string) *geo.Location {
	if meta.Country != "" {
		return &geo.Location{
			Country:   meta.Country,
			City:      meta.City,
			Latitude:  meta.Latitude,
			Longitude: meta.Longitude,
		}
	}
	if b.resolver == nil {
		return nil
	}

	loc, err := b.resolver.Resolve(ctx, ip)
	if err != nil {
		return nil
	}
	return loc
}

func (b *Bus) enrichLocation(ctx context.Context, event *domain.SecurityEvent) {
	if b.resolver == nil || event.Metadata.Country != "" {
		return
	}

	loc, err := b.resolver.Resolve(ctx, event.IPAddress)
	if err != nil {
		return
	}
	event.Metadata.Country = loc.Country
	event.Metadata.City = loc.City
	event.Metadata.Latitude = loc.Latitude
	event.Metadata.Longitude = loc.Longitude
}

func (b *Bus) surface(ctx context.Context, event *domain.SecurityEvent) {
	if event.Severity != domain.SeverityCritical {
		return
	}

	if b.alerter != nil {
		b.alerter.Alert(ctx, event)
	}

	if b.notifier != nil && b.webhookURL != "" {
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
		b.notifier.Notify(b.webhookURL, payload)
	}
}
