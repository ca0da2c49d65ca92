package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the process-wide counters the dashboard and alerting
// scrape. Label cardinality stays bounded: outcomes, buckets, and
// grant types only, never identifiers.
type Metrics struct {
	LoginAttempts    *prometheus.CounterVec
	RateLimitDenials *prometheus.CounterVec
	TokensIssued     *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sso",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sso",
			Name:      "rate_limit_denials_total",
			Help:      "Requests rejected by the rate limiter, by bucket.",
		}, []string{"bucket"}),
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sso",
			Name:      "tokens_issued_total",
			Help:      "OAuth tokens issued, by grant type.",
		}, []string{"grant_type"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sso",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method and status.",
		}, []string{"method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sso",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// RecordLogin counts one login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

// RecordRateLimitDenial counts one 429 for a bucket.
func (m *Metrics) RecordRateLimitDenial(bucket string) {
	if m == nil {
		return
	}
	m.RateLimitDenials.WithLabelValues(bucket).Inc()
}

// RecordTokenIssued counts one successful token response.
func (m *Metrics) RecordTokenIssued(grantType string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(grantType).Inc()
}
