package domain

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BrowserFamily extracts a coarse browser family from a User-Agent
// string so new-device checks can tell "same browser, new machine"
// from a wholly unfamiliar client. Match order matters: Edge and
// Opera embed "Chrome", and Chrome embeds "Safari". Unrecognized
// agents return "" rather than a shared bucket, so two unknown
// clients never count as the same browser.
func BrowserFamily(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return ""
	case strings.Contains(ua, "edg/"), strings.Contains(ua, "edge/"):
		return "edge"
	case strings.Contains(ua, "opr/"), strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "firefox/"), strings.Contains(ua, "fxios"):
		return "firefox"
	case strings.Contains(ua, "chrome/"), strings.Contains(ua, "crios"):
		return "chrome"
	case strings.Contains(ua, "safari/"):
		return "safari"
	default:
		return ""
	}
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type EventKind string

const (
	EventLoginSuccess      EventKind = "login_success"
	EventLoginFailure      EventKind = "login_failure"
	EventAccountLocked     EventKind = "account_locked"
	EventLogout            EventKind = "logout"
	EventMFAChallenge      EventKind = "mfa_challenge"
	EventMFASuccess        EventKind = "mfa_success"
	EventMFAFailure        EventKind = "mfa_failure"
	EventMagicLinkRequest  EventKind = "magic_link_request"
	EventMagicLinkRedeemed EventKind = "magic_link_redeemed"
	EventPasswordChanged   EventKind = "password_changed"
	EventPasswordReset     EventKind = "password_reset"
	EventTokenIssued       EventKind = "token_issued"
	EventTokenRefreshed    EventKind = "token_refreshed"
	EventConsentGranted    EventKind = "consent_granted"
	EventBruteForce        EventKind = "brute_force"
	EventImpossibleTravel  EventKind = "impossible_travel"
	EventNewDevice         EventKind = "new_device"
	EventConcurrentGeo     EventKind = "concurrent_geo_sessions"
	EventAnonymizingProxy  EventKind = "anonymizing_proxy"
	EventRiskDenied        EventKind = "risk_denied"
	EventRateLimited       EventKind = "rate_limited"
)

// EventMetadata is the structured payload attached to a SecurityEvent.
// Decoded eagerly at the storage boundary; downstream code never sees
// raw maps. Zero-valued fields are omitted from the stored JSON.
type EventMetadata struct {
	UserAgent         string  `json:"user_agent,omitempty"`
	Browser           string  `json:"browser,omitempty"`
	DeviceFingerprint string  `json:"device_fingerprint,omitempty"`
	Country           string  `json:"country,omitempty"`
	City              string  `json:"city,omitempty"`
	Latitude          float64 `json:"latitude,omitempty"`
	Longitude         float64 `json:"longitude,omitempty"`
	PreviousIP        string  `json:"previous_ip,omitempty"`
	DistanceKM        float64 `json:"distance_km,omitempty"`
	RequiredSpeedKMH  float64 `json:"required_speed_kmh,omitempty"`
	FailureCount      int     `json:"failure_count,omitempty"`
	ClientID          string  `json:"client_id,omitempty"`
	Scope             string  `json:"scope,omitempty"`
	Bucket            string  `json:"bucket,omitempty"`
	TrustScore        float64 `json:"trust_score,omitempty"`
	RequiredScore     float64 `json:"required_score,omitempty"`
}

func (m EventMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *EventMetadata) Scan(src interface{}) error {
	return scanJSON(src, m)
}

// SecurityEvent is an immutable append-only audit record. After
// creation only the device fingerprint may be backfilled.
type SecurityEvent struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Kind          EventKind     `json:"kind" db:"kind"`
	Severity      Severity      `json:"severity" db:"severity"`
	IdentityID    *uuid.UUID    `json:"identity_id,omitempty" db:"identity_id"`
	IPAddress     string        `json:"ip_address" db:"ip_address"`
	Message       string        `json:"message" db:"message"`
	Metadata      EventMetadata `json:"metadata" db:"metadata"`
	CorrelationID *uuid.UUID    `json:"correlation_id,omitempty" db:"correlation_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}
