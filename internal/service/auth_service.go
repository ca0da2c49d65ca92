package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/config"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/events"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/geo"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/risk"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/email"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/hash"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
)

// sessionTokenBytes is the entropy of the opaque session token. Only
// its SHA-256 hash is persisted.
const sessionTokenBytes = 60

type AuthService struct {
	identities repository.IdentityRepository
	sessions   repository.SessionRepository
	tokens     repository.TokenRepository
	codec      *secrets.Codec
	bus        *events.Bus
	engine     *risk.Engine
	resolver   geo.Resolver
	mailer     email.Mailer
	mfa        *MFAService
	pendingMFA cache.Store
	cfg        *config.Config
}

func NewAuthService(
	identities repository.IdentityRepository,
	sessions repository.SessionRepository,
	tokens repository.TokenRepository,
	codec *secrets.Codec,
	bus *events.Bus,
	engine *risk.Engine,
	resolver geo.Resolver,
	mailer email.Mailer,
	mfaService *MFAService,
	pendingMFA cache.Store,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		identities: identities,
		sessions:   sessions,
		tokens:     tokens,
		codec:      codec,
		bus:        bus,
		engine:     engine,
		resolver:   resolver,
		mailer:     mailer,
		mfa:        mfaService,
		pendingMFA: pendingMFA,
		cfg:        cfg,
	}
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required,max=128"`
	Locale      string `json:"locale" validate:"omitempty,bcp47_language_tag"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`

	// Optional authorization-flow parameters. A relying party that sent
	// the user here mid-flow gets them echoed back on the final result
	// so the client can resume the authorization redirect.
	ClientID    string `json:"client_id" validate:"omitempty,max=64"`
	RedirectURI string `json:"redirect_uri" validate:"omitempty,uri"`
	State       string `json:"state" validate:"omitempty,max=512"`
}

// OAuthContinuation carries the authorization-flow parameters a login
// arrived with through the whole lifecycle, including the MFA gate.
type OAuthContinuation struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	State       string `json:"state,omitempty"`
}

type MFARequest struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"omitempty,len=6,numeric"`
	RecoveryCode   string `json:"recovery_code" validate:"omitempty"`
}

type IdentityDTO struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	EmailVerified bool      `json:"email_verified"`
	MFAEnabled    bool      `json:"mfa_enabled"`
	Locale        string    `json:"locale,omitempty"`
}

// LoginResult is either an established session or a pending MFA
// challenge; exactly one of SessionToken and ChallengeToken is set.
type LoginResult struct {
	MFARequired    bool               `json:"mfa_required"`
	ChallengeToken string             `json:"challenge_token,omitempty"`
	SessionToken   string             `json:"session_token,omitempty"`
	ExpiresAt      time.Time          `json:"expires_at,omitempty"`
	Identity       *IdentityDTO       `json:"identity,omitempty"`
	Continuation   *OAuthContinuation `json:"continuation,omitempty"`
}

// mfaMarker is the value stored behind a pending challenge token. The
// continuation rides along so it survives the MFA gate.
type mfaMarker struct {
	IdentityID   uuid.UUID          `json:"identity_id"`
	Continuation *OAuthContinuation `json:"continuation,omitempty"`
}

// Register creates a new identity. The address is encrypted at rest;
// duplicates are detected through the deterministic lookup hash.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, rc RequestContext) (*IdentityDTO, error) {
	lookupHash := s.codec.LookupHash(req.Email)

	if _, err := s.identities.GetByLookupHash(ctx, lookupHash); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	emailEncrypted, err := s.codec.Encrypt(secrets.NormalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	identity := &domain.Identity{
		ID:              uuid.New(),
		DisplayName:     req.DisplayName,
		EmailEncrypted:  emailEncrypted,
		EmailLookupHash: lookupHash,
		PasswordHash:    passwordHash,
		Status:          domain.IdentityStatusActive,
		Locale:          req.Locale,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	return s.identityDTO(identity), nil
}

// Login runs the password stage of the lifecycle state machine. With
// MFA enabled, a correct password yields a pending challenge, not a
// session.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, rc RequestContext) (*LoginResult, error) {
	if s.bus.IsDenied(ctx, rc.IP) {
		return nil, ErrRateLimited
	}

	identity, err := s.identities.GetByLookupHash(ctx, s.codec.LookupHash(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordFailure(ctx, nil, rc, "unknown account")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()
	if identity.IsLocked(now) {
		s.record(ctx, domain.EventLoginFailure, domain.SeverityWarning, &identity.ID, rc, "attempt against locked account", domain.EventMetadata{})
		return nil, ErrAccountLocked
	}

	valid, err := hash.VerifyPassword(req.Password, identity.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !valid {
		if err := s.handleFailedLogin(ctx, identity, rc); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if identity.Status != domain.IdentityStatusActive {
		return nil, ErrInvalidCredentials
	}

	if identity.FailedLogins > 0 {
		if err := s.identities.ResetFailedLogins(ctx, identity.ID); err != nil {
			return nil, err
		}
		identity.FailedLogins = 0
	}

	forceStepUp, err := s.assessRisk(ctx, identity, rc, false)
	if err != nil {
		return nil, err
	}

	continuation := req.continuation()

	if identity.MFAEnabled || forceStepUp {
		if !identity.MFAEnabled {
			// Step-up was requested but the account has no second
			// factor enrolled; fail closed.
			return nil, ErrRiskDenied
		}
		return s.issueMFAChallenge(ctx, identity, continuation, rc)
	}

	result, err := s.EstablishSession(ctx, identity, rc, false)
	if err != nil {
		return nil, err
	}
	result.Continuation = continuation
	return result, nil
}

// continuation returns the authorization-flow parameters of the
// request, or nil for a plain login.
func (req LoginRequest) continuation() *OAuthContinuation {
	if req.ClientID == "" && req.RedirectURI == "" && req.State == "" {
		return nil
	}
	return &OAuthContinuation{
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}
}

// CompleteMFA exchanges a pending challenge plus a TOTP or recovery
// code for a session. The marker is consumed on success so a challenge
// is single-use.
func (s *AuthService) CompleteMFA(ctx context.Context, req MFARequest, rc RequestContext) (*LoginResult, error) {
	markerKey := secrets.HashToken(req.ChallengeToken)

	value, found, err := s.pendingMFA.Get(ctx, markerKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidOrExpiredToken
	}

	var marker mfaMarker
	if err := json.Unmarshal([]byte(value), &marker); err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	identity, err := s.identities.GetByID(ctx, marker.IdentityID)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	if err := s.mfa.Verify(ctx, identity, req.Code, req.RecoveryCode); err != nil {
		s.record(ctx, domain.EventMFAFailure, domain.SeverityWarning, &identity.ID, rc, "second factor rejected", domain.EventMetadata{})
		return nil, err
	}

	// Consume the marker only after a successful verification so a
	// mistyped code does not burn the challenge.
	if err := s.pendingMFA.Delete(ctx, markerKey); err != nil {
		log.Printf("[AUTH] Failed to consume MFA marker: %v", err)
	}

	s.record(ctx, domain.EventMFASuccess, domain.SeverityInfo, &identity.ID, rc, "second factor verified", domain.EventMetadata{})

	result, err := s.EstablishSession(ctx, identity, rc, true)
	if err != nil {
		return nil, err
	}
	result.Continuation = marker.Continuation
	return result, nil
}

// EstablishSession creates a session for an already-verified identity
// and records the login. Shared by the password, MFA, and magic-link
// completion paths.
func (s *AuthService) EstablishSession(ctx context.Context, identity *domain.Identity, rc RequestContext, mfaVerified bool) (*LoginResult, error) {
	token, err := secrets.GenerateToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.Session{
		ID:             uuid.New(),
		IdentityID:     identity.ID,
		TokenHash:      secrets.HashToken(token),
		IPAddress:      rc.IP,
		UserAgent:      rc.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.cfg.Auth.SessionExpiry),
	}

	if s.resolver != nil {
		if loc, err := s.resolver.Resolve(ctx, rc.IP); err == nil && loc.Country != "" {
			country := loc.Country
			session.Country = &country
		}
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	if err := s.identities.UpdateLastLogin(ctx, identity.ID, rc.IP); err != nil {
		log.Printf("[AUTH] Failed to update last login for %s: %v", identity.ID, err)
	}

	s.record(ctx, domain.EventLoginSuccess, domain.SeverityInfo, &identity.ID, rc, "login succeeded", domain.EventMetadata{
		UserAgent:         rc.UserAgent,
		DeviceFingerprint: rc.Fingerprint(),
	})

	dto := s.identityDTO(identity)

	return &LoginResult{
		SessionToken: token,
		ExpiresAt:    session.ExpiresAt,
		Identity:     dto,
	}, nil
}

// Authenticate resolves a raw session token to its identity, touching
// the session's activity timestamp.
func (s *AuthService) Authenticate(ctx context.Context, sessionToken string) (*domain.Identity, *domain.Session, error) {
	session, err := s.sessions.GetByTokenHash(ctx, secrets.HashToken(sessionToken))
	if err != nil {
		return nil, nil, ErrSessionNotFound
	}
	if !session.IsValid(time.Now()) {
		return nil, nil, ErrSessionNotFound
	}

	identity, err := s.identities.GetByID(ctx, session.IdentityID)
	if err != nil {
		return nil, nil, ErrSessionNotFound
	}

	if err := s.sessions.Touch(ctx, session.ID); err != nil {
		log.Printf("[AUTH] Failed to touch session %s: %v", session.ID, err)
	}

	return identity, session, nil
}

// Logout revokes every session for the identity, not just the
// presented one, and revokes outstanding OAuth tokens.
func (s *AuthService) Logout(ctx context.Context, sessionToken string, rc RequestContext) error {
	session, err := s.sessions.GetByTokenHash(ctx, secrets.HashToken(sessionToken))
	if err != nil {
		return ErrSessionNotFound
	}

	if err := s.sessions.RevokeAllForIdentity(ctx, session.IdentityID); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForIdentity(ctx, session.IdentityID); err != nil {
		return err
	}

	s.record(ctx, domain.EventLogout, domain.SeverityInfo, &session.IdentityID, rc, "logout, all sessions revoked", domain.EventMetadata{})
	return nil
}

func (s *AuthService) ListSessions(ctx context.Context, identityID uuid.UUID) ([]*domain.Session, error) {
	return s.sessions.GetActiveByIdentity(ctx, identityID)
}

func (s *AuthService) RevokeSession(ctx context.Context, identityID, sessionID uuid.UUID) error {
	sessions, err := s.sessions.GetActiveByIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		if session.ID == sessionID {
			return s.sessions.Revoke(ctx, sessionID)
		}
	}
	return ErrSessionNotFound
}

// ChangePassword verifies the current password, replaces the hash, and
// invalidates every session and token.
func (s *AuthService) ChangePassword(ctx context.Context, identityID uuid.UUID, oldPassword, newPassword string, rc RequestContext) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return ErrInvalidCredentials
	}

	valid, err := hash.VerifyPassword(oldPassword, identity.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	return s.setPassword(ctx, identity, newPassword, rc, domain.EventPasswordChanged)
}

// ResetPassword replaces the password for an identity that proved
// ownership through a single-use reset link.
func (s *AuthService) ResetPassword(ctx context.Context, identityID uuid.UUID, newPassword string, rc RequestContext) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	return s.setPassword(ctx, identity, newPassword, rc, domain.EventPasswordReset)
}

func (s *AuthService) setPassword(ctx context.Context, identity *domain.Identity, newPassword string, rc RequestContext, kind domain.EventKind) error {
	newHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}

	now := time.Now()
	identity.PasswordHash = newHash
	identity.PasswordChangedAt = &now
	identity.FailedLogins = 0
	identity.LockedUntil = nil
	identity.UpdatedAt = now

	if err := s.identities.Update(ctx, identity); err != nil {
		return err
	}

	if err := s.sessions.RevokeAllForIdentity(ctx, identity.ID); err != nil {
		return err
	}
	if err := s.tokens.RevokeAllForIdentity(ctx, identity.ID); err != nil {
		return err
	}

	s.record(ctx, kind, domain.SeverityInfo, &identity.ID, rc, "password replaced, all sessions revoked", domain.EventMetadata{})

	if s.mailer != nil {
		if address, err := s.codec.Decrypt(identity.EmailEncrypted); err == nil {
			if err := s.mailer.SendPasswordChanged(ctx, address, identity.DisplayName); err != nil {
				log.Printf("[AUTH] Failed to send password change notice: %v", err)
			}
		}
	}

	return nil
}

func (s *AuthService) handleFailedLogin(ctx context.Context, identity *domain.Identity, rc RequestContext) error {
	count, err := s.identities.IncrementFailedLogins(ctx, identity.ID)
	if err != nil {
		return err
	}

	if count >= s.cfg.Auth.MaxFailedLogins {
		lockUntil := time.Now().Add(s.cfg.Auth.LockDuration)
		identity.FailedLogins = count
		identity.LockedUntil = &lockUntil
		if err := s.identities.Update(ctx, identity); err != nil {
			return err
		}

		s.record(ctx, domain.EventAccountLocked, domain.SeverityError, &identity.ID, rc,
			fmt.Sprintf("account locked after %d failed attempts", count), domain.EventMetadata{FailureCount: count})
	}

	s.recordFailure(ctx, &identity.ID, rc, "invalid credentials")
	return nil
}

func (s *AuthService) issueMFAChallenge(ctx context.Context, identity *domain.Identity, continuation *OAuthContinuation, rc RequestContext) (*LoginResult, error) {
	token, err := secrets.GenerateToken(32)
	if err != nil {
		return nil, err
	}

	marker, err := json.Marshal(mfaMarker{IdentityID: identity.ID, Continuation: continuation})
	if err != nil {
		return nil, err
	}

	if err := s.pendingMFA.Set(ctx, secrets.HashToken(token), string(marker), s.cfg.Auth.MFAChallengeTTL); err != nil {
		return nil, err
	}

	s.record(ctx, domain.EventMFAChallenge, domain.SeverityInfo, &identity.ID, rc, "second factor challenge issued", domain.EventMetadata{})

	return &LoginResult{
		MFARequired:    true,
		ChallengeToken: token,
		Continuation:   continuation,
	}, nil
}

// assessRisk runs the zero-trust evaluation for a login. It returns
// whether a step-up should be forced; an outright denial surfaces as
// ErrRiskDenied.
func (s *AuthService) assessRisk(ctx context.Context, identity *domain.Identity, rc RequestContext, mfaVerified bool) (bool, error) {
	if s.engine == nil {
		return false, nil
	}

	signals := rc.Signals()
	signals.Action = domain.ActionWrite
	signals.Sensitivity = domain.SensitivityInternal
	signals.MFAVerified = mfaVerified

	eval, err := s.engine.Evaluate(ctx, identity, signals)
	if err != nil {
		return false, err
	}
	if eval.Allowed {
		return false, nil
	}
	if len(eval.StepUpMethods) > 0 {
		return true, nil
	}
	return false, ErrRiskDenied
}

func (s *AuthService) identityDTO(identity *domain.Identity) *IdentityDTO {
	address, err := s.codec.Decrypt(identity.EmailEncrypted)
	if err != nil {
		log.Printf("[AUTH] Failed to decrypt email for %s: %v", identity.ID, err)
	}

	return &IdentityDTO{
		ID:            identity.ID,
		Email:         address,
		DisplayName:   identity.DisplayName,
		EmailVerified: identity.EmailVerified,
		MFAEnabled:    identity.MFAEnabled,
		Locale:        identity.Locale,
	}
}

func (s *AuthService) record(ctx context.Context, kind domain.EventKind, severity domain.Severity, identityID *uuid.UUID, rc RequestContext, message string, meta domain.EventMetadata) {
	if meta.UserAgent == "" {
		meta.UserAgent = rc.UserAgent
	}
	if _, err := s.bus.Record(ctx, &domain.SecurityEvent{
		Kind:       kind,
		Severity:   severity,
		IdentityID: identityID,
		IPAddress:  rc.IP,
		Message:    message,
		Metadata:   meta,
	}); err != nil {
		log.Printf("[AUTH] Failed to record %s event: %v", kind, err)
	}
}

func (s *AuthService) recordFailure(ctx context.Context, identityID *uuid.UUID, rc RequestContext, message string) {
	s.record(ctx, domain.EventLoginFailure, domain.SeverityWarning, identityID, rc, message, domain.EventMetadata{})
}
