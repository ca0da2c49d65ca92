package service

import "errors"

// Credential and token validation failures never reveal which
// predicate failed; callers map these to generic client messages.
var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountLocked         = errors.New("account is locked")
	ErrMFARequired           = errors.New("multi-factor verification required")
	ErrInvalidMFACode        = errors.New("invalid verification code")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidClient         = errors.New("invalid client credentials")
	ErrInvalidRedirectURI    = errors.New("redirect_uri is not allowed for this client")
	ErrInvalidScope          = errors.New("requested scope is not allowed")
	ErrPKCEMismatch          = errors.New("code verifier does not match challenge")
	ErrUnsupportedGrant      = errors.New("unsupported grant or response type")
	ErrRateLimited           = errors.New("too many requests")
	ErrRiskDenied            = errors.New("request denied by risk evaluation")
	ErrConsentRequired       = errors.New("user consent required")
	ErrEmailTaken            = errors.New("email is already registered")
	ErrSessionNotFound       = errors.New("session not found")
	ErrMFANotEnabled         = errors.New("multi-factor authentication is not enabled")
	ErrUpstreamUnavailable   = errors.New("upstream dependency unavailable")
)
