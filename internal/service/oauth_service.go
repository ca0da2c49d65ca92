package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/config"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/events"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/jwt"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
)

const (
	authorizationCodeBytes = 32
	refreshTokenBytes      = 48

	// ScopeOpenID gates ID token issuance.
	ScopeOpenID = "openid"
)

type OAuthService struct {
	clients    repository.ClientRepository
	grants     repository.GrantRepository
	tokens     repository.TokenRepository
	consents   repository.ConsentRepository
	identities repository.IdentityRepository
	codec      *secrets.Codec
	signer     *jwt.TokenService
	bus        *events.Bus
	cfg        *config.Config
}

func NewOAuthService(
	clients repository.ClientRepository,
	grants repository.GrantRepository,
	tokens repository.TokenRepository,
	consents repository.ConsentRepository,
	identities repository.IdentityRepository,
	codec *secrets.Codec,
	signer *jwt.TokenService,
	bus *events.Bus,
	cfg *config.Config,
) *OAuthService {
	return &OAuthService{
		clients:    clients,
		grants:     grants,
		tokens:     tokens,
		consents:   consents,
		identities: identities,
		codec:      codec,
		signer:     signer,
		bus:        bus,
		cfg:        cfg,
	}
}

type AuthorizeRequest struct {
	ClientID            string `json:"client_id" validate:"required"`
	RedirectURI         string `json:"redirect_uri" validate:"required,uri"`
	ResponseType        string `json:"response_type" validate:"required"`
	Scope               string `json:"scope"`
	State               string `json:"state"`
	Nonce               string `json:"nonce"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
}

// AuthorizeResult is either a code redirect or a pending consent
// decision.
type AuthorizeResult struct {
	ConsentRequired bool             `json:"consent_required,omitempty"`
	Client          *domain.Client   `json:"-"`
	Scope           domain.ScopeList `json:"scope,omitempty"`
	Code            string           `json:"code,omitempty"`
	State           string           `json:"state,omitempty"`
	RedirectURI     string           `json:"redirect_uri,omitempty"`
}

// Authorize validates an authorization request for an authenticated
// identity. Prior consent covering the requested scope skips straight
// to code issuance; otherwise the caller must collect a consent
// decision.
func (s *OAuthService) Authorize(ctx context.Context, identity *domain.Identity, req AuthorizeRequest) (*AuthorizeResult, error) {
	client, scope, err := s.validateAuthorizeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	consent, err := s.consents.GetActive(ctx, identity.ID, client.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if consent == nil || !consent.Scope.Contains(scope) {
		return &AuthorizeResult{
			ConsentRequired: true,
			Client:          client,
			Scope:           scope,
			State:           req.State,
			RedirectURI:     req.RedirectURI,
		}, nil
	}

	return s.issueCode(ctx, identity, client, scope, req)
}

// GrantConsent records an approval and issues the code the original
// authorize request was waiting for.
func (s *OAuthService) GrantConsent(ctx context.Context, identity *domain.Identity, req AuthorizeRequest) (*AuthorizeResult, error) {
	client, scope, err := s.validateAuthorizeRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.consents.Create(ctx, &domain.Consent{
		ID:         uuid.New(),
		IdentityID: identity.ID,
		ClientID:   client.ID,
		Scope:      scope,
		GrantedAt:  now,
	}); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, domain.EventConsentGranted, &identity.ID, "", domain.EventMetadata{
		ClientID: client.ClientID,
		Scope:    strings.Join(scope, " "),
	})

	return s.issueCode(ctx, identity, client, scope, req)
}

func (s *OAuthService) validateAuthorizeRequest(ctx context.Context, req AuthorizeRequest) (*domain.Client, domain.ScopeList, error) {
	client, err := s.clients.GetByClientID(ctx, req.ClientID)
	if err != nil || !client.Active {
		return nil, nil, ErrInvalidClient
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		return nil, nil, ErrInvalidRedirectURI
	}

	if req.ResponseType != "code" {
		return nil, nil, ErrUnsupportedGrant
	}

	scope := parseScope(req.Scope)
	if !client.AllowedScopes.Contains(scope) {
		return nil, nil, ErrInvalidScope
	}

	if req.CodeChallengeMethod != "" {
		if req.CodeChallenge == "" {
			return nil, nil, ErrPKCEMismatch
		}
		if req.CodeChallengeMethod != domain.PKCEMethodS256 && req.CodeChallengeMethod != domain.PKCEMethodPlain {
			return nil, nil, ErrPKCEMismatch
		}
	}

	return client, scope, nil
}

func (s *OAuthService) issueCode(ctx context.Context, identity *domain.Identity, client *domain.Client, scope domain.ScopeList, req AuthorizeRequest) (*AuthorizeResult, error) {
	code, err := secrets.GenerateToken(authorizationCodeBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	grant := &domain.AuthorizationGrant{
		ID:          uuid.New(),
		CodeHash:    secrets.HashToken(code),
		IdentityID:  identity.ID,
		ClientID:    client.ID,
		RedirectURI: req.RedirectURI,
		Scope:       scope,
		AuthTime:    now,
		ExpiresAt:   now.Add(domain.GrantExpiry),
		CreatedAt:   now,
	}
	if req.Nonce != "" {
		grant.Nonce = &req.Nonce
	}
	if req.CodeChallenge != "" {
		method := req.CodeChallengeMethod
		if method == "" {
			method = domain.PKCEMethodPlain
		}
		grant.CodeChallenge = &req.CodeChallenge
		grant.CodeChallengeMethod = &method
	}

	if err := s.grants.Create(ctx, grant); err != nil {
		return nil, err
	}

	return &AuthorizeResult{
		Code:        code,
		State:       req.State,
		RedirectURI: req.RedirectURI,
	}, nil
}

type TokenRequest struct {
	GrantType    string `json:"grant_type" validate:"required"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	CodeVerifier string `json:"code_verifier"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Token is the token endpoint. All grant types require an exact
// client_id/secret match.
func (s *OAuthService) Token(ctx context.Context, req TokenRequest, rc RequestContext) (*domain.TokenSet, error) {
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}

	switch req.GrantType {
	case "authorization_code":
		return s.exchangeCode(ctx, client, req, rc)
	case "refresh_token":
		return s.rotateRefreshToken(ctx, client, req, rc)
	case "client_credentials":
		return s.clientCredentials(ctx, client, req, rc)
	default:
		return nil, ErrUnsupportedGrant
	}
}

func (s *OAuthService) authenticateClient(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil || !client.Active {
		return nil, ErrInvalidClient
	}

	secret, err := s.codec.Decrypt(client.SecretEncrypted)
	if err != nil {
		return nil, ErrInvalidClient
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(clientSecret)) != 1 {
		return nil, ErrInvalidClient
	}

	return client, nil
}

func (s *OAuthService) exchangeCode(ctx context.Context, client *domain.Client, req TokenRequest, rc RequestContext) (*domain.TokenSet, error) {
	// The claim marks the grant used in the same statement that
	// validates it is unused and unexpired; a replayed code cannot win
	// a second time.
	grant, err := s.grants.Claim(ctx, secrets.HashToken(req.Code))
	if err != nil {
		if errors.Is(err, repository.ErrNotClaimed) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	if grant.ClientID != client.ID {
		return nil, ErrInvalidClient
	}
	if grant.RedirectURI != req.RedirectURI {
		return nil, ErrInvalidRedirectURI
	}

	if grant.CodeChallenge != nil {
		if err := verifyPKCE(*grant.CodeChallenge, *grant.CodeChallengeMethod, req.CodeVerifier); err != nil {
			return nil, err
		}
	}

	identity, err := s.identities.GetByID(ctx, grant.IdentityID)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	nonce := ""
	if grant.Nonce != nil {
		nonce = *grant.Nonce
	}

	set, err := s.mint(ctx, identity, client, grant.Scope, nonce, grant.AuthTime, true)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, domain.EventTokenIssued, &identity.ID, rc.IP, domain.EventMetadata{
		ClientID: client.ClientID,
		Scope:    strings.Join(grant.Scope, " "),
	})

	return set, nil
}

func (s *OAuthService) rotateRefreshToken(ctx context.Context, client *domain.Client, req TokenRequest, rc RequestContext) (*domain.TokenSet, error) {
	refresh, err := s.tokens.ClaimRefreshToken(ctx, secrets.HashToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotClaimed) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	if refresh.ClientID != client.ID || refresh.IdentityID == nil {
		return nil, ErrInvalidClient
	}

	// The paired access token dies with the consumed refresh token.
	if err := s.tokens.RevokeAccessToken(ctx, refresh.AccessTokenID); err != nil {
		log.Printf("[OAUTH] Failed to revoke rotated access token: %v", err)
	}

	identity, err := s.identities.GetByID(ctx, *refresh.IdentityID)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	set, err := s.mint(ctx, identity, client, refresh.Scope, "", time.Now(), true)
	if err != nil {
		return nil, err
	}

	s.recordEvent(ctx, domain.EventTokenRefreshed, refresh.IdentityID, rc.IP, domain.EventMetadata{
		ClientID: client.ClientID,
	})

	return set, nil
}

func (s *OAuthService) clientCredentials(ctx context.Context, client *domain.Client, req TokenRequest, rc RequestContext) (*domain.TokenSet, error) {
	scope := parseScope(req.Scope)
	if !client.AllowedScopes.Contains(scope) {
		return nil, ErrInvalidScope
	}

	lifetime := client.AccessTokenLifetime
	if lifetime <= 0 {
		lifetime = s.cfg.JWT.AccessTokenExpiry
	}

	signed, expiresAt, err := s.signer.SignAccessToken(jwt.AccessTokenInput{
		Subject:  client.ClientID,
		Audience: client.ClientID,
		Scope:    scope,
		Expiry:   lifetime,
	})
	if err != nil {
		return nil, err
	}

	record := &domain.AccessToken{
		ID:        uuid.New(),
		TokenHash: secrets.HashToken(signed),
		ClientID:  client.ID,
		Scope:     scope,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.tokens.CreateAccessToken(ctx, record); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, domain.EventTokenIssued, nil, rc.IP, domain.EventMetadata{
		ClientID: client.ClientID,
		Scope:    strings.Join(scope, " "),
	})

	return &domain.TokenSet{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		Scope:       strings.Join(scope, " "),
	}, nil
}

// mint signs an access token, persists its hash, pairs it with a fresh
// refresh token, and adds an ID token when the scope includes openid.
func (s *OAuthService) mint(ctx context.Context, identity *domain.Identity, client *domain.Client, scope domain.ScopeList, nonce string, authTime time.Time, withRefresh bool) (*domain.TokenSet, error) {
	address, err := s.codec.Decrypt(identity.EmailEncrypted)
	if err != nil {
		return nil, err
	}

	accessLifetime := client.AccessTokenLifetime
	if accessLifetime <= 0 {
		accessLifetime = s.cfg.JWT.AccessTokenExpiry
	}

	signed, expiresAt, err := s.signer.SignAccessToken(jwt.AccessTokenInput{
		Subject:  identity.ID.String(),
		Audience: client.ClientID,
		Scope:    scope,
		Email:    address,
		Name:     identity.DisplayName,
		Expiry:   accessLifetime,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	accessRecord := &domain.AccessToken{
		ID:         uuid.New(),
		TokenHash:  secrets.HashToken(signed),
		IdentityID: &identity.ID,
		ClientID:   client.ID,
		Scope:      scope,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
	}
	if err := s.tokens.CreateAccessToken(ctx, accessRecord); err != nil {
		return nil, err
	}

	set := &domain.TokenSet{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expiresAt).Seconds()),
		Scope:       strings.Join(scope, " "),
	}

	if withRefresh {
		raw, err := secrets.GenerateToken(refreshTokenBytes)
		if err != nil {
			return nil, err
		}

		refreshLifetime := client.RefreshTokenLifetime
		if refreshLifetime <= 0 {
			refreshLifetime = 30 * 24 * time.Hour
		}

		if err := s.tokens.CreateRefreshToken(ctx, &domain.RefreshToken{
			ID:            uuid.New(),
			TokenHash:     secrets.HashToken(raw),
			AccessTokenID: accessRecord.ID,
			IdentityID:    &identity.ID,
			ClientID:      client.ID,
			Scope:         scope,
			ExpiresAt:     now.Add(refreshLifetime),
			CreatedAt:     now,
		}); err != nil {
			return nil, err
		}
		set.RefreshToken = raw
	}

	if scope.Contains(domain.ScopeList{ScopeOpenID}) {
		idToken, err := s.signer.SignIDToken(jwt.IDTokenInput{
			Subject:           identity.ID.String(),
			Audience:          client.ClientID,
			AuthTime:          authTime,
			Nonce:             nonce,
			Email:             address,
			EmailVerified:     identity.EmailVerified,
			PreferredUsername: identity.DisplayName,
			Locale:            identity.Locale,
			Expiry:            s.cfg.JWT.IDTokenExpiry,
		})
		if err != nil {
			return nil, err
		}
		set.IDToken = idToken
	}

	return set, nil
}

// UserInfo returns the OIDC claims for a bearer access token, checking
// both the signature and the stored revocation state.
func (s *OAuthService) UserInfo(ctx context.Context, bearer string) (map[string]interface{}, error) {
	if _, err := s.signer.VerifyAccessToken(bearer); err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	record, err := s.tokens.GetAccessTokenByHash(ctx, secrets.HashToken(bearer))
	if err != nil || record.Revoked || time.Now().After(record.ExpiresAt) {
		return nil, ErrInvalidOrExpiredToken
	}
	if record.IdentityID == nil {
		return nil, ErrInvalidOrExpiredToken
	}

	identity, err := s.identities.GetByID(ctx, *record.IdentityID)
	if err != nil {
		return nil, ErrInvalidOrExpiredToken
	}

	address, err := s.codec.Decrypt(identity.EmailEncrypted)
	if err != nil {
		return nil, err
	}

	info := map[string]interface{}{
		"sub":                identity.ID.String(),
		"name":               identity.DisplayName,
		"preferred_username": identity.DisplayName,
		"email":              address,
		"email_verified":     identity.EmailVerified,
	}
	if identity.Locale != "" {
		info["locale"] = identity.Locale
	}
	if identity.LastLoginAt != nil {
		info["updated_at"] = identity.UpdatedAt.Unix()
	}

	return info, nil
}

func verifyPKCE(challenge, method, verifier string) error {
	if verifier == "" {
		return ErrPKCEMismatch
	}

	switch method {
	case domain.PKCEMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
			return ErrPKCEMismatch
		}
	case domain.PKCEMethodPlain:
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) != 1 {
			return ErrPKCEMismatch
		}
	default:
		return ErrPKCEMismatch
	}

	return nil
}

func parseScope(scope string) domain.ScopeList {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return domain.ScopeList{ScopeOpenID}
	}
	return domain.ScopeList(fields)
}

func (s *OAuthService) recordEvent(ctx context.Context, kind domain.EventKind, identityID *uuid.UUID, ip string, meta domain.EventMetadata) {
	if _, err := s.bus.Record(ctx, &domain.SecurityEvent{
		Kind:       kind,
		Severity:   domain.SeverityInfo,
		IdentityID: identityID,
		IPAddress:  ip,
		Message:    string(kind),
		Metadata:   meta,
	}); err != nil {
		log.Printf("[OAUTH] Failed to record %s event: %v", kind, err)
	}
}
