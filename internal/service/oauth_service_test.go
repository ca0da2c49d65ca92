package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/events"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository/memory"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/hash"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/jwt"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
)

const (
	testClientSecret = "client-s3cret-value"
	testRedirectURI  = "https://app.example.com/callback"
	testVerifier     = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type oauthFixture struct {
	clients    *memory.ClientRepository
	grants     *memory.GrantRepository
	tokens     *memory.TokenRepository
	consents   *memory.ConsentRepository
	identities *memory.IdentityRepository
	codec      *secrets.Codec
	signer     *jwt.TokenService
	oauth      *OAuthService

	identity *domain.Identity
	client   *domain.Client
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()

	cfg := testConfig()
	codec := testCodec(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := jwt.NewTokenService(key, cfg.JWT.KeyID, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)

	f := &oauthFixture{
		clients:    memory.NewClientRepository(),
		grants:     memory.NewGrantRepository(),
		tokens:     memory.NewTokenRepository(),
		consents:   memory.NewConsentRepository(),
		identities: memory.NewIdentityRepository(),
		codec:      codec,
		signer:     signer,
	}

	bus := events.NewBus(memory.NewEventRepository(), cache.NewMemoryStore(), nil, nil, nil, "")
	f.oauth = NewOAuthService(f.clients, f.grants, f.tokens, f.consents, f.identities, codec, signer, bus, cfg)

	ctx := context.Background()
	now := time.Now()

	emailEncrypted, err := codec.Encrypt("alice@example.com")
	require.NoError(t, err)
	passwordHash, err := hash.HashPassword("correct horse battery")
	require.NoError(t, err)
	f.identity = &domain.Identity{
		ID:              uuid.New(),
		DisplayName:     "Alice",
		EmailEncrypted:  emailEncrypted,
		EmailLookupHash: codec.LookupHash("alice@example.com"),
		EmailVerified:   true,
		PasswordHash:    passwordHash,
		Status:          domain.IdentityStatusActive,
		Locale:          "en-US",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.identities.Create(ctx, f.identity))

	secretEncrypted, err := codec.Encrypt(testClientSecret)
	require.NoError(t, err)
	f.client = &domain.Client{
		ID:              uuid.New(),
		Name:            "Example App",
		ClientID:        "example-app",
		SecretEncrypted: secretEncrypted,
		RedirectURIs:    domain.StringList{testRedirectURI},
		AllowedScopes:   domain.ScopeList{"openid", "profile", "email"},
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, f.clients.Create(ctx, f.client))

	return f
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// authorize drives the consent round-trip and returns the issued code.
func (f *oauthFixture) authorize(t *testing.T, req AuthorizeRequest) string {
	t.Helper()
	ctx := context.Background()

	result, err := f.oauth.Authorize(ctx, f.identity, req)
	require.NoError(t, err)
	if result.ConsentRequired {
		result, err = f.oauth.GrantConsent(ctx, f.identity, req)
		require.NoError(t, err)
	}
	require.NotEmpty(t, result.Code)
	return result.Code
}

func defaultAuthorizeRequest() AuthorizeRequest {
	return AuthorizeRequest{
		ClientID:            "example-app",
		RedirectURI:         testRedirectURI,
		ResponseType:        "code",
		Scope:               "openid profile",
		State:               "xyzzy",
		Nonce:               "n-0S6_WzA2Mj",
		CodeChallenge:       s256Challenge(testVerifier),
		CodeChallengeMethod: domain.PKCEMethodS256,
	}
}

func TestAuthorizationCodeFlow(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	req := defaultAuthorizeRequest()

	// First authorize requires consent.
	result, err := f.oauth.Authorize(ctx, f.identity, req)
	require.NoError(t, err)
	assert.True(t, result.ConsentRequired)
	assert.Equal(t, domain.ScopeList{"openid", "profile"}, result.Scope)

	result, err = f.oauth.GrantConsent(ctx, f.identity, req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Code)
	assert.Equal(t, "xyzzy", result.State)

	set, err := f.oauth.Token(ctx, TokenRequest{
		GrantType:    "authorization_code",
		Code:         result.Code,
		RedirectURI:  testRedirectURI,
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
		CodeVerifier: testVerifier,
	}, testRC("203.0.113.10"))
	require.NoError(t, err)

	assert.Equal(t, "Bearer", set.TokenType)
	assert.NotEmpty(t, set.AccessToken)
	assert.NotEmpty(t, set.RefreshToken)
	assert.NotEmpty(t, set.IDToken, "openid scope yields an ID token")
	assert.Greater(t, set.ExpiresIn, 0)

	claims, err := f.signer.VerifyAccessToken(set.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.identity.ID.String(), claims.Subject)
	assert.Equal(t, "openid profile", claims.Scope)

	info, err := f.oauth.UserInfo(ctx, set.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.identity.ID.String(), info["sub"])
	assert.Equal(t, "alice@example.com", info["email"])
	assert.Equal(t, true, info["email_verified"])
}

func TestConsentCoversRepeatAuthorize(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	req := defaultAuthorizeRequest()
	f.authorize(t, req)

	// The recorded consent covers the same scope; no second prompt.
	result, err := f.oauth.Authorize(ctx, f.identity, req)
	require.NoError(t, err)
	assert.False(t, result.ConsentRequired)
	assert.NotEmpty(t, result.Code)

	// A broader scope re-prompts.
	wider := req
	wider.Scope = "openid profile email"
	result, err = f.oauth.Authorize(ctx, f.identity, wider)
	require.NoError(t, err)
	assert.True(t, result.ConsentRequired)
}

func TestAuthorizeValidation(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*AuthorizeRequest)
		wantErr error
	}{
		{"unknown client", func(r *AuthorizeRequest) { r.ClientID = "ghost" }, ErrInvalidClient},
		{"unregistered redirect", func(r *AuthorizeRequest) { r.RedirectURI = "https://evil.example.com/cb" }, ErrInvalidRedirectURI},
		{"implicit flow", func(r *AuthorizeRequest) { r.ResponseType = "token" }, ErrUnsupportedGrant},
		{"scope not allowed", func(r *AuthorizeRequest) { r.Scope = "openid admin" }, ErrInvalidScope},
		{"challenge method without challenge", func(r *AuthorizeRequest) { r.CodeChallenge = "" }, ErrPKCEMismatch},
		{"unknown challenge method", func(r *AuthorizeRequest) { r.CodeChallengeMethod = "S512" }, ErrPKCEMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := defaultAuthorizeRequest()
			tc.mutate(&req)
			_, err := f.oauth.Authorize(ctx, f.identity, req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestTokenExchangeRejectsWrongVerifier(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	code := f.authorize(t, defaultAuthorizeRequest())

	_, err := f.oauth.Token(ctx, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
		CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifier",
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrPKCEMismatch)

	// The claim burned the code; even the right verifier cannot save it.
	_, err = f.oauth.Token(ctx, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
		CodeVerifier: testVerifier,
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestTokenExchangeRequiresExactRedirectURI(t *testing.T) {
	f := newOAuthFixture(t)

	code := f.authorize(t, defaultAuthorizeRequest())

	_, err := f.oauth.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI + "/",
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
		CodeVerifier: testVerifier,
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidRedirectURI)
}

func TestTokenExchangeRejectsBadClientSecret(t *testing.T) {
	f := newOAuthFixture(t)

	code := f.authorize(t, defaultAuthorizeRequest())

	_, err := f.oauth.Token(context.Background(), TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     "example-app",
		ClientSecret: "guessed",
		CodeVerifier: testVerifier,
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidClient)
}

func TestAuthorizationCodeSingleUse(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	code := f.authorize(t, defaultAuthorizeRequest())

	exchange := func() error {
		_, err := f.oauth.Token(ctx, TokenRequest{
			GrantType:    "authorization_code",
			Code:         code,
			RedirectURI:  testRedirectURI,
			ClientID:     "example-app",
			ClientSecret: testClientSecret,
			CodeVerifier: testVerifier,
		}, testRC("203.0.113.10"))
		return err
	}

	require.NoError(t, exchange())
	assert.ErrorIs(t, exchange(), ErrInvalidOrExpiredToken)
}

func TestAuthorizationCodeConcurrentExchange(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	code := f.authorize(t, defaultAuthorizeRequest())

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.oauth.Token(ctx, TokenRequest{
				GrantType:    "authorization_code",
				Code:         code,
				RedirectURI:  testRedirectURI,
				ClientID:     "example-app",
				ClientSecret: testClientSecret,
				CodeVerifier: testVerifier,
			}, testRC("203.0.113.10"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestRefreshTokenRotation(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	code := f.authorize(t, defaultAuthorizeRequest())

	first, err := f.oauth.Token(ctx, TokenRequest{
		GrantType:    "authorization_code",
		Code:         code,
		RedirectURI:  testRedirectURI,
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
		CodeVerifier: testVerifier,
	}, testRC("203.0.113.10"))
	require.NoError(t, err)

	second, err := f.oauth.Token(ctx, TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
	}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	// The consumed refresh token is dead.
	_, err = f.oauth.Token(ctx, TokenRequest{
		GrantType:    "refresh_token",
		RefreshToken: first.RefreshToken,
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// Rotation also revoked the paired access token.
	_, err = f.oauth.UserInfo(ctx, first.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// The rotated pair works.
	_, err = f.oauth.UserInfo(ctx, second.AccessToken)
	assert.NoError(t, err)
}

func TestClientCredentialsGrant(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	set, err := f.oauth.Token(ctx, TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
		Scope:        "profile",
	}, testRC("203.0.113.10"))
	require.NoError(t, err)

	assert.NotEmpty(t, set.AccessToken)
	assert.Empty(t, set.RefreshToken, "machine tokens are not refreshable")
	assert.Empty(t, set.IDToken)

	claims, err := f.signer.VerifyAccessToken(set.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "example-app", claims.Subject)

	// Machine tokens have no identity behind them.
	_, err = f.oauth.UserInfo(ctx, set.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.oauth.Token(ctx, TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
		Scope:        "profile admin",
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestUnsupportedGrantType(t *testing.T) {
	f := newOAuthFixture(t)

	_, err := f.oauth.Token(context.Background(), TokenRequest{
		GrantType:    "password",
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrUnsupportedGrant)
}

func TestUserInfoRejectsForeignToken(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	// A structurally valid token signed by a different key fails
	// verification.
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forger := jwt.NewTokenService(otherKey, "other-key", "https://sso.example.com", time.Minute)
	forged, _, err := forger.SignAccessToken(jwt.AccessTokenInput{Subject: f.identity.ID.String(), Audience: "example-app"})
	require.NoError(t, err)

	_, err = f.oauth.UserInfo(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = f.oauth.UserInfo(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestInactiveClientCannotAuthorize(t *testing.T) {
	f := newOAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.clients.SetActive(ctx, f.client.ID, false))

	_, err := f.oauth.Authorize(ctx, f.identity, defaultAuthorizeRequest())
	assert.ErrorIs(t, err, ErrInvalidClient)

	_, err = f.oauth.Token(ctx, TokenRequest{
		GrantType:    "client_credentials",
		ClientID:     "example-app",
		ClientSecret: testClientSecret,
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidClient)
}
