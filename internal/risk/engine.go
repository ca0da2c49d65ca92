package risk

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/geo"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
)

// ProxyChecker reports whether an IP belongs to an anonymizing
// network. Implemented by geo.TorList.
type ProxyChecker interface {
	IsTorExit(ctx context.Context, ip string) bool
	IsKnownVPN(ip string) bool
}

// Recorder appends security events. Implemented by events.Bus.
type Recorder interface {
	Record(ctx context.Context, event *domain.SecurityEvent) (*domain.SecurityEvent, error)
}

// Signals is the request-scoped input to one risk evaluation.
type Signals struct {
	IP               string
	UserAgent        string
	AcceptLanguage   string
	AcceptEncoding   string
	ScreenResolution string
	Timezone         string
	Action           domain.Action
	Sensitivity      domain.Sensitivity
	MFAVerified      bool
}

// Evaluation is the outcome of one risk pipeline run.
type Evaluation struct {
	Anomalies     []domain.Anomaly      `json:"anomalies"`
	TrustScore    float64               `json:"trust_score"`
	Required      float64               `json:"required"`
	Allowed       bool                  `json:"allowed"`
	StepUpMethods []domain.StepUpMethod `json:"step_up_methods,omitempty"`
}

// Engine runs the anomaly detectors and zero-trust scoring for a
// request and persists the decision for audit.
type Engine struct {
	events   repository.EventRepository
	sessions repository.SessionRepository
	trust    repository.TrustRepository
	resolver geo.Resolver
	proxies  ProxyChecker
	recorder Recorder
}

func NewEngine(
	events repository.EventRepository,
	sessions repository.SessionRepository,
	trust repository.TrustRepository,
	resolver geo.Resolver,
	proxies ProxyChecker,
	recorder Recorder,
) *Engine {
	return &Engine{
		events:   events,
		sessions: sessions,
		trust:    trust,
		resolver: resolver,
		proxies:  proxies,
		recorder: recorder,
	}
}

// Evaluate runs every detector, scores the five trust dimensions, and
// gates the request against the action/sensitivity threshold. identity
// may be nil for unauthenticated requests.
func (e *Engine) Evaluate(ctx context.Context, identity *domain.Identity, sig Signals) (*Evaluation, error) {
	now := time.Now()
	location := e.resolve(ctx, sig.IP)

	fingerprint := ""
	if sig.UserAgent != "" || sig.ScreenResolution != "" {
		fingerprint = Fingerprint(sig.UserAgent, sig.AcceptLanguage, sig.AcceptEncoding, sig.ScreenResolution, sig.Timezone)
	}

	var identityID *uuid.UUID
	if identity != nil {
		identityID = &identity.ID
	}

	var anomalies []domain.Anomaly
	appendAnomaly := func(a *domain.Anomaly) {
		if a != nil {
			anomalies = append(anomalies, *a)
		}
	}

	if identityID != nil {
		appendAnomaly(e.detectImpossibleTravel(ctx, *identityID, sig.IP, location, now))
		appendAnomaly(e.detectNewDevice(ctx, *identityID, fingerprint, sig.UserAgent))
		appendAnomaly(e.detectConcurrentGeoSessions(ctx, *identityID, location, now))
	}
	appendAnomaly(e.detectBruteForce(ctx, identityID, sig.IP, now))
	appendAnomaly(e.detectAnonymizingProxy(ctx, sig.IP))

	deviceKnown := identityID != nil && !hasAnomaly(anomalies, domain.EventNewDevice)

	decision := &domain.TrustDecision{
		ID:            uuid.New(),
		IdentityID:    identityID,
		IPAddress:     sig.IP,
		Action:        sig.Action,
		Sensitivity:   sig.Sensitivity,
		DeviceScore:   scoreDevice(deviceKnown, fingerprint != ""),
		UserScore:     scoreUser(identity, sig.MFAVerified, now),
		BehaviorScore: scoreBehavior(identity, anomalies),
		NetworkScore:  scoreNetwork(anomalies, location != nil),
		ContextScore:  scoreContext(identity, anomalies, now),
		CreatedAt:     now,
	}
	decision.Aggregate = (decision.DeviceScore + decision.UserScore + decision.BehaviorScore +
		decision.NetworkScore + decision.ContextScore) / 5
	decision.Required = RequiredScore(sig.Action, sig.Sensitivity)

	allowed, stepUps := Decide(decision.Aggregate, decision.Required, identity)
	decision.Allowed = allowed

	if err := e.trust.Create(ctx, decision); err != nil {
		log.Printf("[RISK] Failed to persist trust decision: %v", err)
	}

	e.recordFindings(ctx, identityID, sig.IP, anomalies, decision)

	return &Evaluation{
		Anomalies:     anomalies,
		TrustScore:    decision.Aggregate,
		Required:      decision.Required,
		Allowed:       allowed,
		StepUpMethods: stepUps,
	}, nil
}

// Decide gates an aggregate score against a threshold. A shortfall of
// at most stepUpGap points yields step-up methods instead of a hard
// deny.
func Decide(aggregate, required float64, identity *domain.Identity) (bool, []domain.StepUpMethod) {
	if aggregate >= required {
		return true, nil
	}
	if required-aggregate <= stepUpGap {
		return false, stepUpMethods(identity)
	}
	return false, nil
}

func (e *Engine) recordFindings(ctx context.Context, identityID *uuid.UUID, ip string, anomalies []domain.Anomaly, decision *domain.TrustDecision) {
	if e.recorder == nil {
		return
	}

	correlation := decision.ID
	for _, a := range anomalies {
		if a.Severity != domain.SeverityCritical {
			continue
		}
		if _, err := e.recorder.Record(ctx, &domain.SecurityEvent{
			Kind:          a.Kind,
			Severity:      a.Severity,
			IdentityID:    identityID,
			IPAddress:     ip,
			Message:       a.Message,
			CorrelationID: &correlation,
		}); err != nil {
			log.Printf("[RISK] Failed to record %s event: %v", a.Kind, err)
		}
	}

	if !decision.Allowed {
		if _, err := e.recorder.Record(ctx, &domain.SecurityEvent{
			Kind:       domain.EventRiskDenied,
			Severity:   domain.SeverityCritical,
			IdentityID: identityID,
			IPAddress:  ip,
			Message:    "request denied by zero-trust evaluation",
			Metadata: domain.EventMetadata{
				TrustScore:    decision.Aggregate,
				RequiredScore: decision.Required,
			},
			CorrelationID: &correlation,
		}); err != nil {
			log.Printf("[RISK] Failed to record risk_denied event: %v", err)
		}
	}
}

func hasAnomaly(anomalies []domain.Anomaly, kind domain.EventKind) bool {
	for _, a := range anomalies {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
