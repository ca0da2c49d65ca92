package risk

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/geo"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

const (
	travelLookback = 2 * time.Hour
	maxTravelSpeed = 900.0 // km/h

	bruteForceLookback   = 15 * time.Minute
	identityFailureLimit = 5
	sourceIPFailureLimit = 10
)

// Detectors are independent and side-effect-free: each inspects state
// and returns findings. Lookup failures degrade to "unknown" rather
// than failing the evaluation.

func (e *Engine) detectImpossibleTravel(ctx context.Context, identityID uuid.UUID, ip string, current *geo.Location, now time.Time) *domain.Anomaly {
	if current == nil {
		return nil
	}

	previous, err := e.events.LastSuccessFromOtherIP(ctx, identityID, ip, now.Add(-travelLookback))
	if err != nil {
		if err != repository.ErrNotFound {
			log.Printf("[RISK] Previous login lookup failed: %v", err)
		}
		return nil
	}

	prior := e.locationFromEvent(ctx, previous)
	if prior == nil {
		return nil
	}

	distance := geo.DistanceKM(prior.Latitude, prior.Longitude, current.Latitude, current.Longitude)
	elapsed := now.Sub(previous.CreatedAt).Hours()
	if elapsed <= 0 {
		elapsed = 1.0 / 3600
	}
	if distance/elapsed <= maxTravelSpeed {
		return nil
	}

	return &domain.Anomaly{
		Kind:     domain.EventImpossibleTravel,
		Severity: domain.SeverityCritical,
		Message:  fmt.Sprintf("location %.0f km from last login would require %.0f km/h", distance, distance/elapsed),
	}
}

func (e *Engine) detectNewDevice(ctx context.Context, identityID uuid.UUID, fingerprint, userAgent string) *domain.Anomaly {
	if fingerprint == "" {
		return nil
	}

	seen, err := e.events.HasFingerprint(ctx, identityID, fingerprint)
	if err != nil {
		log.Printf("[RISK] Fingerprint lookup failed: %v", err)
		return nil
	}
	if seen {
		return nil
	}

	// A familiar browser family on an unseen fingerprint downgrades
	// the anomaly; it is usually the same person on a new machine.
	severity := domain.SeverityWarning
	message := "request from an unrecognized device"
	if family := domain.BrowserFamily(userAgent); family != "" {
		known, err := e.events.HasBrowser(ctx, identityID, family, uuid.Nil)
		if err != nil {
			log.Printf("[RISK] Browser lookup failed: %v", err)
		} else if known {
			severity = domain.SeverityInfo
			message = "request from a new device with a previously seen browser"
		}
	}

	return &domain.Anomaly{
		Kind:     domain.EventNewDevice,
		Severity: severity,
		Message:  message,
	}
}

func (e *Engine) detectConcurrentGeoSessions(ctx context.Context, identityID uuid.UUID, current *geo.Location, now time.Time) *domain.Anomaly {
	if current == nil || current.Country == "" {
		return nil
	}

	sessions, err := e.sessions.GetActiveByIdentity(ctx, identityID)
	if err != nil {
		log.Printf("[RISK] Active session lookup failed: %v", err)
		return nil
	}

	for _, s := range sessions {
		if !s.IsValid(now) || s.Country == nil || *s.Country == "" {
			continue
		}
		if *s.Country != current.Country {
			return &domain.Anomaly{
				Kind:     domain.EventConcurrentGeo,
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("active session in %s while request originates from %s", *s.Country, current.Country),
			}
		}
	}
	return nil
}

func (e *Engine) detectBruteForce(ctx context.Context, identityID *uuid.UUID, ip string, now time.Time) *domain.Anomaly {
	since := now.Add(-bruteForceLookback)

	if identityID != nil {
		count, err := e.events.CountByKindAndIdentity(ctx, domain.EventLoginFailure, *identityID, since)
		if err != nil {
			log.Printf("[RISK] Identity failure count failed: %v", err)
		} else if count > identityFailureLimit {
			return &domain.Anomaly{
				Kind:     domain.EventBruteForce,
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("%d recent failed logins for this account", count),
			}
		}
	}

	count, err := e.events.CountByKindAndIP(ctx, domain.EventLoginFailure, ip, since)
	if err != nil {
		log.Printf("[RISK] IP failure count failed: %v", err)
		return nil
	}
	if count > sourceIPFailureLimit {
		return &domain.Anomaly{
			Kind:     domain.EventBruteForce,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("%d recent failed logins from %s", count, ip),
		}
	}
	return nil
}

func (e *Engine) detectAnonymizingProxy(ctx context.Context, ip string) *domain.Anomaly {
	if e.proxies == nil {
		return nil
	}

	if e.proxies.IsTorExit(ctx, ip) {
		return &domain.Anomaly{
			Kind:     domain.EventAnonymizingProxy,
			Severity: domain.SeverityWarning,
			Message:  "request originates from a Tor exit node",
		}
	}
	if e.proxies.IsKnownVPN(ip) {
		return &domain.Anomaly{
			Kind:     domain.EventAnonymizingProxy,
			Severity: domain.SeverityInfo,
			Message:  "request originates from a known VPN range",
		}
	}
	return nil
}

// locationFromEvent prefers coordinates already recorded on the event,
// resolving its IP only as a fallback.
func (e *Engine) locationFromEvent(ctx context.Context, event *domain.SecurityEvent) *geo.Location {
	if event.Metadata.Country != "" {
		return &geo.Location{
			Country:   event.Metadata.Country,
			City:      event.Metadata.City,
			Latitude:  event.Metadata.Latitude,
			Longitude: event.Metadata.Longitude,
		}
	}
	return e.resolve(ctx, event.IPAddress)
}

func (e *Engine) resolve(ctx context.Context, ip string) *geo.Location {
	if e.resolver == nil {
		return nil
	}
	loc, err := e.resolver.Resolve(ctx, ip)
	if err != nil {
		return nil
	}
	return loc
}
