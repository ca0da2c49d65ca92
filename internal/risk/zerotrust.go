package risk

import (
	"time"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

// Action base scores and resource sensitivity multipliers. The required
// trust for a request is base × multiplier, capped at 100.
var actionBaseScores = map[domain.Action]float64{
	domain.ActionRead:   30,
	domain.ActionWrite:  50,
	domain.ActionUpdate: 60,
	domain.ActionDelete: 70,
	domain.ActionAdmin:  80,
	domain.ActionSystem: 90,
}

var sensitivityMultipliers = map[domain.Sensitivity]float64{
	domain.SensitivityPublic:       0.5,
	domain.SensitivityInternal:     1.0,
	domain.SensitivityConfidential: 1.3,
	domain.SensitivitySecret:       1.5,
	domain.SensitivityTopSecret:    2.0,
}

// stepUpGap is the largest shortfall for which step-up verification is
// offered instead of an outright deny.
const stepUpGap = 20.0

// RequiredScore returns the trust threshold for performing action on a
// resource of the given sensitivity. Unknown values fall back to the
// most demanding interpretation.
func RequiredScore(action domain.Action, sensitivity domain.Sensitivity) float64 {
	base, ok := actionBaseScores[action]
	if !ok {
		base = actionBaseScores[domain.ActionSystem]
	}
	multiplier, ok := sensitivityMultipliers[sensitivity]
	if !ok {
		multiplier = sensitivityMultipliers[domain.SensitivityTopSecret]
	}

	return clamp(base * multiplier)
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func scoreDevice(deviceKnown, fingerprintPresent bool) float64 {
	score := 50.0
	if deviceKnown {
		score += 35
	} else if fingerprintPresent {
		score -= 20
	}
	return clamp(score)
}

func scoreUser(identity *domain.Identity, mfaVerified bool, now time.Time) float64 {
	if identity == nil {
		return 30
	}

	score := 50.0
	if identity.MFAEnabled {
		score += 15
	}
	if mfaVerified {
		score += 15
	}
	if identity.Privileged {
		score -= 15
	}
	if identity.PasswordChangedAt != nil && now.Sub(*identity.PasswordChangedAt) < 90*24*time.Hour {
		score += 10
	}
	if identity.IsLocked(now) {
		score -= 40
	}
	return clamp(score)
}

func scoreBehavior(identity *domain.Identity, anomalies []domain.Anomaly) float64 {
	score := 70.0
	if identity != nil {
		score -= float64(identity.FailedLogins) * 8
	}
	for _, a := range anomalies {
		switch a.Kind {
		case domain.EventImpossibleTravel:
			score -= 40
		case domain.EventBruteForce:
			score -= 50
		case domain.EventConcurrentGeo:
			score -= 30
		}
	}
	return clamp(score)
}

func scoreNetwork(anomalies []domain.Anomaly, locationKnown bool) float64 {
	score := 70.0
	for _, a := range anomalies {
		if a.Kind != domain.EventAnonymizingProxy {
			continue
		}
		if a.Severity == domain.SeverityWarning {
			score -= 50 // Tor exit node
		} else {
			score -= 20 // known VPN range
		}
	}
	if !locationKnown {
		score -= 10
	}
	return clamp(score)
}

func scoreContext(identity *domain.Identity, anomalies []domain.Anomaly, now time.Time) float64 {
	score := 50.0

	hour := now.UTC().Hour()
	if hour >= 8 && hour < 18 {
		score += 20
	}

	knownDevice := true
	for _, a := range anomalies {
		if a.Kind == domain.EventNewDevice {
			knownDevice = false
		}
	}
	if knownDevice && identity != nil && identity.LastLoginAt != nil {
		score += 15
	}
	return clamp(score)
}

// stepUpMethods lists the additional verifications this identity can
// actually complete, strongest first.
func stepUpMethods(identity *domain.Identity) []domain.StepUpMethod {
	var methods []domain.StepUpMethod
	if identity != nil && identity.MFAEnabled {
		methods = append(methods, domain.StepUpTOTP, domain.StepUpRecoveryCode)
	}
	if identity != nil && len(identity.PhoneEncrypted) > 0 {
		methods = append(methods, domain.StepUpSMS)
	}
	methods = append(methods, domain.StepUpEmailCode, domain.StepUpSecurityQuestions)
	return methods
}
