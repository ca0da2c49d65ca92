package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
)

// ErrUnavailable means the upstream lookup failed; detectors must
// degrade to "unknown", never fail the surrounding auth flow.
var ErrUnavailable = errors.New("geolocation lookup unavailable")

// Location is a resolved IP geolocation.
type Location struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resolver resolves an IP address to a location.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// HTTPResolver queries a JSON geolocation API with a bounded timeout
// and caches results in a named store.
type HTTPResolver struct {
	client   *http.Client
	baseURL  string
	store    cache.Store
	cacheTTL time.Duration
}

func NewHTTPResolver(baseURL string, timeout time.Duration, store cache.Store, cacheTTL time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &HTTPResolver{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		store:    store,
		cacheTTL: cacheTTL,
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*Location, error) {
	if cached, ok, err := r.store.Get(ctx, ip); err == nil && ok {
		var loc Location
		if err := json.Unmarshal([]byte(cached), &loc); err == nil {
			return &loc, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", r.baseURL, ip), nil)
	if err != nil {
		return nil, ErrUnavailable
	}

	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("[GEO] Lookup failed for %s: %v", ip, err)
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[GEO] Lookup for %s returned status %d", ip, resp.StatusCode)
		return nil, ErrUnavailable
	}

	var payload struct {
		Country   string  `json:"country"`
		City      string  `json:"city"`
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, ErrUnavailable
	}

	loc := &Location{
		Country:   payload.Country,
		City:      payload.City,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
	}

	if encoded, err := json.Marshal(loc); err == nil {
		_ = r.store.Set(ctx, ip, string(encoded), r.cacheTTL)
	}

	return loc, nil
}
