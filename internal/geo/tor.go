package geo

import (
	"bufio"
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// refreshRetryDelay spaces out refresh attempts while the upstream
// source is failing, so an outage costs one timed-out fetch per delay
// window instead of one per lookup.
const refreshRetryDelay = time.Minute

// TorList tracks known Tor exit nodes and VPN provider ranges. The
// exit-node list is refreshed from an upstream source with a bounded
// timeout; a failed refresh keeps serving the previous snapshot.
type TorList struct {
	client     *http.Client
	sourceURL  string
	refreshTTL time.Duration

	mu          sync.RWMutex
	exitNodes   map[string]bool
	vpnPrefixes []string
	nextRefresh time.Time
}

func NewTorList(sourceURL string, timeout, refreshTTL time.Duration, vpnPrefixes []string) *TorList {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if refreshTTL <= 0 {
		refreshTTL = time.Hour
	}

	return &TorList{
		client:      &http.Client{Timeout: timeout},
		sourceURL:   sourceURL,
		refreshTTL:  refreshTTL,
		exitNodes:   make(map[string]bool),
		vpnPrefixes: vpnPrefixes,
	}
}

// IsTorExit reports whether ip is a known Tor exit node, refreshing
// the list when stale. Refresh failures degrade to the last snapshot
// and back off, so lookups never stall on a failing source.
func (t *TorList) IsTorExit(ctx context.Context, ip string) bool {
	t.mu.Lock()
	due := !time.Now().Before(t.nextRefresh)
	if due {
		// Claim the refresh slot before releasing the lock; concurrent
		// lookups keep serving the snapshot instead of piling on.
		t.nextRefresh = time.Now().Add(refreshRetryDelay)
	}
	t.mu.Unlock()

	if due {
		t.refresh(ctx)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exitNodes[ip]
}

// IsKnownVPN matches ip against configured VPN provider prefixes.
func (t *TorList) IsKnownVPN(ip string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, prefix := range t.vpnPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

func (t *TorList) refresh(ctx context.Context) {
	if t.sourceURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.sourceURL, nil)
	if err != nil {
		return
	}

	resp, err := t.client.Do(req)
	if err != nil {
		log.Printf("[GEO] Tor exit list refresh failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[GEO] Tor exit list refresh returned status %d", resp.StatusCode)
		return
	}

	nodes := make(map[string]bool)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		nodes[line] = true
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[GEO] Tor exit list parse failed: %v", err)
		return
	}

	t.mu.Lock()
	t.exitNodes = nodes
	t.nextRefresh = time.Now().Add(t.refreshTTL)
	t.mu.Unlock()
}
