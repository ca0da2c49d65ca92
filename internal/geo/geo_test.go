package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
)

func TestDistanceKM(t *testing.T) {
	// Berlin to Sydney, roughly 16,000 km.
	d := DistanceKM(52.52, 13.405, -33.8688, 151.2093)
	assert.InDelta(t, 16100, d, 200)

	// Same point.
	assert.InDelta(t, 0, DistanceKM(52.52, 13.405, 52.52, 13.405), 0.001)

	// Berlin to Potsdam, under 30 km.
	assert.Less(t, DistanceKM(52.52, 13.405, 52.3906, 13.0645), 30.0)
}

func TestHTTPResolverCachesLookups(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"country":"Germany","city":"Berlin","lat":52.52,"lon":13.405}`))
	}))
	defer srv.Close()

	resolver := NewHTTPResolver(srv.URL, time.Second, cache.NewMemoryStore(), time.Minute)

	loc, err := resolver.Resolve(context.Background(), "93.184.216.34")
	require.NoError(t, err)
	assert.Equal(t, "Germany", loc.Country)
	assert.InDelta(t, 52.52, loc.Latitude, 0.001)

	// Second resolve hits the cache.
	_, err = resolver.Resolve(context.Background(), "93.184.216.34")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPResolverDegradesToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := NewHTTPResolver(srv.URL, time.Second, cache.NewMemoryStore(), time.Minute)

	_, err := resolver.Resolve(context.Background(), "93.184.216.34")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTorListMatchesExitNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# comment\n1.2.3.4\n5.6.7.8\n"))
	}))
	defer srv.Close()

	list := NewTorList(srv.URL, time.Second, time.Hour, []string{"185.220."})

	assert.True(t, list.IsTorExit(context.Background(), "1.2.3.4"))
	assert.False(t, list.IsTorExit(context.Background(), "9.9.9.9"))
	assert.True(t, list.IsKnownVPN("185.220.101.5"))
	assert.False(t, list.IsKnownVPN("10.0.0.1"))
}

func TestTorListKeepsSnapshotOnRefreshFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("1.2.3.4\n"))
	}))
	defer srv.Close()

	list := NewTorList(srv.URL, time.Second, time.Nanosecond, nil)
	require.True(t, list.IsTorExit(context.Background(), "1.2.3.4"))

	fail.Store(true)
	// Refresh fails but the previous snapshot still answers.
	assert.True(t, list.IsTorExit(context.Background(), "1.2.3.4"))
}

func TestTorListBacksOffAfterFailedRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("1.2.3.4\n"))
	}))
	defer srv.Close()

	list := NewTorList(srv.URL, time.Second, time.Nanosecond, nil)
	require.True(t, list.IsTorExit(context.Background(), "1.2.3.4"))

	// TTL already expired, so this lookup attempts a refresh and fails.
	assert.True(t, list.IsTorExit(context.Background(), "1.2.3.4"))
	assert.Equal(t, int32(2), calls.Load())

	// Further lookups inside the retry window serve the snapshot
	// without hitting the source again.
	for i := 0; i < 10; i++ {
		assert.True(t, list.IsTorExit(context.Background(), "1.2.3.4"))
	}
	assert.Equal(t, int32(2), calls.Load())
}
