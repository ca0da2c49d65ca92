package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/geo"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository/memory"
)

type staticResolver struct {
	locations map[string]*geo.Location
}

func (r *staticResolver) Resolve(_ context.Context, ip string) (*geo.Location, error) {
	if loc, ok := r.locations[ip]; ok {
		return loc, nil
	}
	return nil, geo.ErrUnavailable
}

type recordingAlerter struct {
	alerts []*domain.SecurityEvent
}

func (a *recordingAlerter) Alert(_ context.Context, event *domain.SecurityEvent) {
	a.alerts = append(a.alerts, event)
}

func newTestBus(repo repository.EventRepository, resolver geo.Resolver, alerter Alerter) *Bus {
	return NewBus(repo, cache.NewMemoryStore(), resolver, alerter, nil, "")
}

func findByKind(t *testing.T, repo repository.EventRepository, kind domain.EventKind) []*domain.SecurityEvent {
	t.Helper()
	found, err := repo.ListRecent(context.Background(), repository.EventFilter{
		Kind:  kind,
		Since: time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	return found
}

func TestBusBruteForceSetsDenyFlag(t *testing.T) {
	repo := memory.NewEventRepository()
	alerter := &recordingAlerter{}
	bus := newTestBus(repo, nil, alerter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := bus.Record(ctx, &domain.SecurityEvent{
			Kind:      domain.EventLoginFailure,
			Severity:  domain.SeverityWarning,
			IPAddress: "203.0.113.9",
			Message:   "invalid credentials",
		})
		require.NoError(t, err)
	}

	flagged := findByKind(t, repo, domain.EventBruteForce)
	require.Len(t, flagged, 1)
	assert.Equal(t, domain.SeverityCritical, flagged[0].Severity)
	assert.Equal(t, 5, flagged[0].Metadata.FailureCount)
	assert.NotNil(t, flagged[0].CorrelationID)

	assert.True(t, bus.IsDenied(ctx, "203.0.113.9"))
	assert.False(t, bus.IsDenied(ctx, "203.0.113.10"))

	// Critical brute_force event reached the alert sink.
	require.Len(t, alerter.alerts, 1)
	assert.Equal(t, domain.EventBruteForce, alerter.alerts[0].Kind)
}

func TestBusFewFailuresNoDenyFlag(t *testing.T) {
	repo := memory.NewEventRepository()
	bus := newTestBus(repo, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := bus.Record(ctx, &domain.SecurityEvent{
			Kind:      domain.EventLoginFailure,
			IPAddress: "203.0.113.9",
		})
		require.NoError(t, err)
	}

	assert.Empty(t, findByKind(t, repo, domain.EventBruteForce))
	assert.False(t, bus.IsDenied(ctx, "203.0.113.9"))
}

func TestBusImpossibleTravel(t *testing.T) {
	repo := memory.NewEventRepository()
	identityID := uuid.New()
	ctx := context.Background()

	// Previous success from New York, 30 minutes ago.
	require.NoError(t, repo.Create(ctx, &domain.SecurityEvent{
		ID:         uuid.New(),
		Kind:       domain.EventLoginSuccess,
		Severity:   domain.SeverityInfo,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.1",
		Metadata: domain.EventMetadata{
			Country: "US", City: "New York",
			Latitude: 40.7128, Longitude: -74.0060,
		},
		CreatedAt: time.Now().Add(-30 * time.Minute),
	}))

	resolver := &staticResolver{locations: map[string]*geo.Location{
		"198.51.100.2": {Country: "AU", City: "Sydney", Latitude: -33.8688, Longitude: 151.2093},
	}}
	bus := newTestBus(repo, resolver, nil)

	_, err := bus.Record(ctx, &domain.SecurityEvent{
		Kind:       domain.EventLoginSuccess,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.2",
	})
	require.NoError(t, err)

	flagged := findByKind(t, repo, domain.EventImpossibleTravel)
	require.Len(t, flagged, 1)
	assert.Equal(t, domain.SeverityCritical, flagged[0].Severity)
	assert.Equal(t, "198.51.100.1", flagged[0].Metadata.PreviousIP)
	assert.Greater(t, flagged[0].Metadata.RequiredSpeedKMH, 900.0)
	assert.Greater(t, flagged[0].Metadata.DistanceKM, 10000.0)
}

func TestBusNearbyTravelNotFlagged(t *testing.T) {
	repo := memory.NewEventRepository()
	identityID := uuid.New()
	ctx := context.Background()

	// Paris and Orléans are roughly 110 km apart; 30 minutes needs
	// only ~220 km/h.
	require.NoError(t, repo.Create(ctx, &domain.SecurityEvent{
		ID:         uuid.New(),
		Kind:       domain.EventLoginSuccess,
		Severity:   domain.SeverityInfo,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.1",
		Metadata: domain.EventMetadata{
			Country: "FR", City: "Paris",
			Latitude: 48.8566, Longitude: 2.3522,
		},
		CreatedAt: time.Now().Add(-30 * time.Minute),
	}))

	resolver := &staticResolver{locations: map[string]*geo.Location{
		"198.51.100.2": {Country: "FR", City: "Orléans", Latitude: 47.9029, Longitude: 1.9039},
	}}
	bus := newTestBus(repo, resolver, nil)

	_, err := bus.Record(ctx, &domain.SecurityEvent{
		Kind:       domain.EventLoginSuccess,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.2",
	})
	require.NoError(t, err)

	assert.Empty(t, findByKind(t, repo, domain.EventImpossibleTravel))
}

func TestBusGeoLookupFailureDegrades(t *testing.T) {
	repo := memory.NewEventRepository()
	identityID := uuid.New()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.SecurityEvent{
		ID:         uuid.New(),
		Kind:       domain.EventLoginSuccess,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.1",
		CreatedAt:  time.Now().Add(-30 * time.Minute),
	}))

	// Resolver knows neither IP; the login must still record cleanly.
	bus := newTestBus(repo, &staticResolver{locations: map[string]*geo.Location{}}, nil)

	_, err := bus.Record(ctx, &domain.SecurityEvent{
		Kind:       domain.EventLoginSuccess,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.2",
	})
	require.NoError(t, err)

	assert.Empty(t, findByKind(t, repo, domain.EventImpossibleTravel))
	assert.Len(t, findByKind(t, repo, domain.EventLoginSuccess), 2)
}

func TestBusNewDeviceBackfillsFingerprint(t *testing.T) {
	repo := memory.NewEventRepository()
	identityID := uuid.New()
	bus := newTestBus(repo, nil, nil)
	ctx := context.Background()

	recorded, err := bus.Record(ctx, &domain.SecurityEvent{
		Kind:       domain.EventLoginSuccess,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.1",
		Metadata:   domain.EventMetadata{DeviceFingerprint: "fp-one"},
	})
	require.NoError(t, err)

	flagged := findByKind(t, repo, domain.EventNewDevice)
	require.Len(t, flagged, 1)
	assert.Equal(t, domain.SeverityWarning, flagged[0].Severity)
	require.NotNil(t, flagged[0].CorrelationID)
	assert.Equal(t, recorded.ID, *flagged[0].CorrelationID)

	// The triggering login_success now carries the fingerprint.
	seen, err := repo.HasFingerprint(ctx, identityID, "fp-one")
	require.NoError(t, err)
	assert.True(t, seen)

	// A second login with the same fingerprint is not a new device.
	_, err = bus.Record(ctx, &domain.SecurityEvent{
		Kind:       domain.EventLoginSuccess,
		IdentityID: &identityID,
		IPAddress:  "198.51.100.1",
		Metadata:   domain.EventMetadata{DeviceFingerprint: "fp-one"},
	})
	require.NoError(t, err)
	assert.Len(t, findByKind(t, repo, domain.EventNewDevice), 1)
}

func TestBusNewDeviceKnownBrowserDowngradesToInfo(t *testing.T) {
	repo := memory.NewEventRepository()
	identityID := uuid.New()
	bus := newTestBus(repo, nil, nil)
	ctx := context.Background()

	const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:122.0) Gecko/20100101 Firefox/122.0"
	const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

	record := func(ip, ua, fingerprint string) {
		t.Helper()
		_, err := bus.Record(ctx, &domain.SecurityEvent{
			Kind:       domain.EventLoginSuccess,
			IdentityID: &identityID,
			IPAddress:  ip,
			Metadata:   domain.EventMetadata{UserAgent: ua, DeviceFingerprint: fingerprint},
		})
		require.NoError(t, err)
	}

	// First Firefox device: no browser history, full warning.
	record("198.51.100.1", firefoxUA, "fp-laptop")
	// Second Firefox device: same family on file, info only.
	record("198.51.100.2", firefoxUA, "fp-desktop")
	// First Chrome device: family unseen for this identity, warning.
	record("198.51.100.3", chromeUA, "fp-phone")

	flagged := findByKind(t, repo, domain.EventNewDevice)
	require.Len(t, flagged, 3)

	severityByFingerprint := make(map[string]domain.Severity, len(flagged))
	for _, e := range flagged {
		severityByFingerprint[e.Metadata.DeviceFingerprint] = e.Severity
	}
	assert.Equal(t, domain.SeverityWarning, severityByFingerprint["fp-laptop"])
	assert.Equal(t, domain.SeverityInfo, severityByFingerprint["fp-desktop"])
	assert.Equal(t, domain.SeverityWarning, severityByFingerprint["fp-phone"])
}
