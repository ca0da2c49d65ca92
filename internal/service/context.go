package service

import "github.com/Today-is-Life/sso-server-os-sub000/internal/risk"

// RequestContext carries the request-scoped attributes the auth flows
// and risk pipeline consume. Handlers build one per request; nothing
// here is ambient state.
type RequestContext struct {
	IP               string
	UserAgent        string
	AcceptLanguage   string
	AcceptEncoding   string
	ScreenResolution string
	Timezone         string
}

// Fingerprint derives the device fingerprint for this request, or ""
// when no identifying attributes were sent.
func (rc RequestContext) Fingerprint() string {
	if rc.UserAgent == "" && rc.ScreenResolution == "" {
		return ""
	}
	return risk.Fingerprint(rc.UserAgent, rc.AcceptLanguage, rc.AcceptEncoding, rc.ScreenResolution, rc.Timezone)
}

// Signals converts the request context into risk engine input.
func (rc RequestContext) Signals() risk.Signals {
	return risk.Signals{
		IP:               rc.IP,
		UserAgent:        rc.UserAgent,
		AcceptLanguage:   rc.AcceptLanguage,
		AcceptEncoding:   rc.AcceptEncoding,
		ScreenResolution: rc.ScreenResolution,
		Timezone:         rc.Timezone,
	}
}
