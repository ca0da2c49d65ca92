package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/config"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/events"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/email"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
)

// magicLinkTokenBytes is the entropy of a link token. The stored form
// is the SHA-256 hash only.
const magicLinkTokenBytes = 64

type MagicLinkService struct {
	identities repository.IdentityRepository
	links      repository.MagicLinkRepository
	codec      *secrets.Codec
	bus        *events.Bus
	mailer     email.Mailer
	auth       *AuthService
	cfg        *config.Config
}

func NewMagicLinkService(
	identities repository.IdentityRepository,
	links repository.MagicLinkRepository,
	codec *secrets.Codec,
	bus *events.Bus,
	mailer email.Mailer,
	auth *AuthService,
	cfg *config.Config,
) *MagicLinkService {
	return &MagicLinkService{
		identities: identities,
		links:      links,
		codec:      codec,
		bus:        bus,
		mailer:     mailer,
		auth:       auth,
		cfg:        cfg,
	}
}

// Request issues a single-use login link. The response is identical
// whether or not the address exists; there is no user-existence
// oracle.
func (s *MagicLinkService) Request(ctx context.Context, address string, redirectURI *string, rc RequestContext) error {
	return s.issue(ctx, address, domain.MagicLinkPurposeLogin, redirectURI, rc)
}

// RequestPasswordReset issues a single-use password reset link with
// the same generic-response contract as Request.
func (s *MagicLinkService) RequestPasswordReset(ctx context.Context, address string, rc RequestContext) error {
	return s.issue(ctx, address, domain.MagicLinkPurposePasswordReset, nil, rc)
}

func (s *MagicLinkService) issue(ctx context.Context, address string, purpose domain.MagicLinkPurpose, redirectURI *string, rc RequestContext) error {
	identity, err := s.identities.GetByLookupHash(ctx, s.codec.LookupHash(address))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same outcome as success from the caller's view.
			log.Printf("[MAGICLINK] Request for unknown address from %s", rc.IP)
			return nil
		}
		return err
	}

	token, err := secrets.GenerateToken(magicLinkTokenBytes)
	if err != nil {
		return err
	}

	now := time.Now()
	link := &domain.MagicLink{
		ID:          uuid.New(),
		TokenHash:   secrets.HashToken(token),
		IdentityID:  identity.ID,
		Purpose:     purpose,
		RequestIP:   rc.IP,
		RequestUA:   rc.UserAgent,
		RedirectURI: redirectURI,
		ExpiresAt:   now.Add(domain.MagicLinkExpiry),
		CreatedAt:   now,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return err
	}

	decrypted, err := s.codec.Decrypt(identity.EmailEncrypted)
	if err != nil {
		return err
	}

	switch purpose {
	case domain.MagicLinkPurposePasswordReset:
		url := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.Server.PublicURL, token)
		err = s.mailer.SendPasswordReset(ctx, decrypted, identity.DisplayName, url)
	default:
		url := fmt.Sprintf("%s/magic-link?token=%s", s.cfg.Server.PublicURL, token)
		err = s.mailer.SendMagicLink(ctx, decrypted, identity.DisplayName, url)
	}
	if err != nil {
		// Surfacing the delivery failure would tell the caller the
		// address exists. The generic response stands; the outage is
		// an operational concern, not the caller's.
		log.Printf("[MAGICLINK] %v: %v", ErrUpstreamUnavailable, err)
	}

	s.recordEvent(ctx, domain.EventMagicLinkRequest, &identity.ID, rc, fmt.Sprintf("%s link issued", purpose))
	return nil
}

// Redeem exchanges a valid link token for a session. The claim is
// atomic; among concurrent redemptions of one token exactly one
// succeeds.
func (s *MagicLinkService) Redeem(ctx context.Context, token string, rc RequestContext) (*LoginResult, error) {
	link, err := s.claim(ctx, token, domain.MagicLinkPurposeLogin, rc)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetByID(ctx, link.IdentityID)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	s.recordEvent(ctx, domain.EventMagicLinkRedeemed, &identity.ID, rc, "login link redeemed")

	return s.auth.EstablishSession(ctx, identity, rc, false)
}

// CompletePasswordReset consumes a reset link and replaces the
// password.
func (s *MagicLinkService) CompletePasswordReset(ctx context.Context, token, newPassword string, rc RequestContext) error {
	link, err := s.claim(ctx, token, domain.MagicLinkPurposePasswordReset, rc)
	if err != nil {
		return err
	}

	return s.auth.ResetPassword(ctx, link.IdentityID, newPassword, rc)
}

func (s *MagicLinkService) claim(ctx context.Context, token string, purpose domain.MagicLinkPurpose, rc RequestContext) (*domain.MagicLink, error) {
	link, err := s.links.Claim(ctx, secrets.HashToken(token), purpose)
	if err != nil {
		if errors.Is(err, repository.ErrNotClaimed) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	// A different redeeming IP is a signal, not a failure.
	if link.RequestIP != "" && link.RequestIP != rc.IP {
		s.record(ctx, domain.EventMagicLinkRedeemed, domain.SeverityWarning, &link.IdentityID, rc,
			"link redeemed from a different address than it was requested from",
			domain.EventMetadata{PreviousIP: link.RequestIP})
	}

	return link, nil
}

func (s *MagicLinkService) recordEvent(ctx context.Context, kind domain.EventKind, identityID *uuid.UUID, rc RequestContext, message string) {
	s.record(ctx, kind, domain.SeverityInfo, identityID, rc, message, domain.EventMetadata{UserAgent: rc.UserAgent})
}

func (s *MagicLinkService) record(ctx context.Context, kind domain.EventKind, severity domain.Severity, identityID *uuid.UUID, rc RequestContext, message string, meta domain.EventMetadata) {
	if _, err := s.bus.Record(ctx, &domain.SecurityEvent{
		Kind:       kind,
		Severity:   severity,
		IdentityID: identityID,
		IPAddress:  rc.IP,
		Message:    message,
		Metadata:   meta,
	}); err != nil {
		log.Printf("[MAGICLINK] Failed to record %s event: %v", kind, err)
	}
}
