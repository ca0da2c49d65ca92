package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"
)

// Payload is the body POSTed to a client domain's webhook endpoint.
type Payload struct {
	Event         string    `json:"event"`
	Severity      string    `json:"severity"`
	IdentityID    string    `json:"identity_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Message       string    `json:"message,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type delivery struct {
	url      string
	payload  Payload
	attempts int
}

// Notifier delivers security notifications to downstream client
// domains. Deliveries are fire-and-forget with a bounded per-request
// timeout and a small local retry queue; a slow or unreachable domain
// never blocks the calling request.
type Notifier struct {
	client     *http.Client
	queue      chan delivery
	maxRetries int
	closeOnce  sync.Once
	done       chan struct{}
}

func NewNotifier(timeout time.Duration, queueSize, maxRetries int) *Notifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	n := &Notifier{
		client:     &http.Client{Timeout: timeout},
		queue:      make(chan delivery, queueSize),
		maxRetries: maxRetries,
		done:       make(chan struct{}),
	}

	go n.run()
	return n
}

// Notify enqueues a delivery. A full queue drops the notification and
// logs it; delivery is best-effort.
func (n *Notifier) Notify(url string, payload Payload) {
	if url == "" {
		return
	}

	select {
	case n.queue <- delivery{url: url, payload: payload}:
	default:
		log.Printf("[WEBHOOK] Queue full, dropping %s notification to %s", payload.Event, url)
	}
}

// Close stops the delivery loop after draining in-flight work.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.queue)
		<-n.done
	})
}

func (n *Notifier) run() {
	defer close(n.done)

	for d := range n.queue {
		var err error
		for d.attempts = 0; d.attempts <= n.maxRetries; d.attempts++ {
			if d.attempts > 0 {
				time.Sleep(retryBackoff)
			}
			if err = n.deliver(d); err == nil {
				break
			}
		}
		if err != nil {
			log.Printf("[WEBHOOK] Giving up on %s notification to %s after %d attempts: %v",
				d.payload.Event, d.url, d.attempts, err)
		}
	}
}

const retryBackoff = 250 * time.Millisecond

func (n *Notifier) deliver(d delivery) error {
	body, err := json.Marshal(d.payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// StatusError reports a non-2xx webhook response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return http.StatusText(e.Code)
}
