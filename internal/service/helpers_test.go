package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/cache"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/config"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/events"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository/memory"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/mfa"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
)

type sentMail struct {
	To      string
	Name    string
	LinkURL string
	Kind    string
}

// fakeMailer records outbound mail so tests can extract link tokens.
// Setting fail simulates a provider outage.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *fakeMailer) record(mail sentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *fakeMailer) SendMagicLink(_ context.Context, to, name, linkURL string) error {
	return m.record(sentMail{To: to, Name: name, LinkURL: linkURL, Kind: "magic_link"})
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, name, linkURL string) error {
	return m.record(sentMail{To: to, Name: name, LinkURL: linkURL, Kind: "password_reset"})
}

func (m *fakeMailer) SendSecurityAlert(_ context.Context, to, name, eventKind, _ string) error {
	return m.record(sentMail{To: to, Name: name, Kind: eventKind})
}

func (m *fakeMailer) SendPasswordChanged(_ context.Context, to, name string) error {
	return m.record(sentMail{To: to, Name: name, Kind: "password_changed"})
}

func (m *fakeMailer) lastOfKind(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

func (m *fakeMailer) countOfKind(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, mail := range m.sent {
		if mail.Kind == kind {
			n++
		}
	}
	return n
}

// tokenFromLink extracts the token query parameter from a mailed link.
func tokenFromLink(t *testing.T, linkURL string) string {
	t.Helper()
	idx := strings.Index(linkURL, "token=")
	require.NotEqual(t, -1, idx, "link %q carries no token", linkURL)
	return linkURL[idx+len("token="):]
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			PublicURL: "https://sso.example.com",
		},
		JWT: config.JWTConfig{
			KeyID:             "test-key",
			Issuer:            "https://sso.example.com",
			AccessTokenExpiry: 15 * time.Minute,
			IDTokenExpiry:     5 * time.Minute,
		},
		Auth: config.AuthConfig{
			MaxFailedLogins: 5,
			LockDuration:    15 * time.Minute,
			SessionExpiry:   24 * time.Hour,
			MFAChallengeTTL: 5 * time.Minute,
			TOTPIssuer:      "Example SSO",
		},
	}
}

func testCodec(t *testing.T) *secrets.Codec {
	t.Helper()
	codec, err := secrets.NewCodec(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return codec
}

// authFixture wires the auth stack against in-memory stores.
type authFixture struct {
	identities *memory.IdentityRepository
	sessions   *memory.SessionRepository
	tokens     *memory.TokenRepository
	events     *memory.EventRepository
	links      *memory.MagicLinkRepository
	deny       *cache.MemoryStore
	codec      *secrets.Codec
	mailer     *fakeMailer
	bus        *events.Bus
	auth       *AuthService
	mfa        *MFAService
	magic      *MagicLinkService
	cfg        *config.Config
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	f := &authFixture{
		identities: memory.NewIdentityRepository(),
		sessions:   memory.NewSessionRepository(),
		tokens:     memory.NewTokenRepository(),
		events:     memory.NewEventRepository(),
		links:      memory.NewMagicLinkRepository(),
		deny:       cache.NewMemoryStore(),
		codec:      testCodec(t),
		mailer:     &fakeMailer{},
		cfg:        testConfig(),
	}

	f.bus = events.NewBus(f.events, f.deny, nil, nil, nil, "")
	f.mfa = NewMFAService(f.identities, f.codec, mfa.NewTOTPManager(f.cfg.Auth.TOTPIssuer), f.bus)
	f.auth = NewAuthService(f.identities, f.sessions, f.tokens, f.codec, f.bus, nil, nil, f.mailer, f.mfa, cache.NewMemoryStore(), f.cfg)
	f.magic = NewMagicLinkService(f.identities, f.links, f.codec, f.bus, f.mailer, f.auth, f.cfg)
	return f
}

func (f *authFixture) register(t *testing.T, address, password string) *IdentityDTO {
	t.Helper()
	dto, err := f.auth.Register(context.Background(), RegisterRequest{
		Email:       address,
		Password:    password,
		DisplayName: "Test User",
	}, testRC("203.0.113.10"))
	require.NoError(t, err)
	return dto
}

func testRC(ip string) RequestContext {
	return RequestContext{
		IP:        ip,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
	}
}
