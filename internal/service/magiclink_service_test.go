package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagicLinkRoundTrip(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	require.NoError(t, f.magic.Request(ctx, "alice@example.com", nil, testRC("203.0.113.10")))

	mail, found := f.mailer.lastOfKind("magic_link")
	require.True(t, found)
	assert.Equal(t, "alice@example.com", mail.To)
	assert.Contains(t, mail.LinkURL, f.cfg.Server.PublicURL)

	token := tokenFromLink(t, mail.LinkURL)

	result, err := f.magic.Redeem(ctx, token, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionToken)
	assert.Equal(t, dto.ID, result.Identity.ID)

	// Single use.
	_, err = f.magic.Redeem(ctx, token, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestMagicLinkUnknownAddressIsSilent(t *testing.T) {
	f := newAuthFixture(t)

	// Same outcome as a real address; no mail and no error means no
	// user-existence oracle.
	err := f.magic.Request(context.Background(), "nobody@example.com", nil, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.mailer.countOfKind("magic_link"))
}

func TestMagicLinkMailOutageStaysSilent(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "correct horse battery")
	f.mailer.fail = errors.New("provider timeout")

	// A delivery failure must not change the response; a 5xx only for
	// addresses that exist would be a user-existence oracle.
	err := f.magic.Request(ctx, "alice@example.com", nil, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.Equal(t, 0, f.mailer.countOfKind("magic_link"))
}

func TestMagicLinkGarbageToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.magic.Redeem(context.Background(), "not-a-real-token", testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestMagicLinkConcurrentRedemption(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "correct horse battery")
	require.NoError(t, f.magic.Request(ctx, "alice@example.com", nil, testRC("203.0.113.10")))

	mail, found := f.mailer.lastOfKind("magic_link")
	require.True(t, found)
	token := tokenFromLink(t, mail.LinkURL)

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.magic.Redeem(ctx, token, testRC("203.0.113.10"))
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

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "correct horse battery")

	session, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)

	require.NoError(t, f.magic.RequestPasswordReset(ctx, "alice@example.com", testRC("203.0.113.10")))

	mail, found := f.mailer.lastOfKind("password_reset")
	require.True(t, found)
	token := tokenFromLink(t, mail.LinkURL)

	// A reset token cannot be redeemed as a login link.
	_, err = f.magic.Redeem(ctx, token, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	require.NoError(t, f.magic.CompletePasswordReset(ctx, token, "an even longer passphrase", testRC("203.0.113.10")))

	// The reset revoked the existing session.
	_, _, err = f.auth.Authenticate(ctx, session.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Old password is dead, the new one works.
	_, err = f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.11"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "an even longer passphrase"}, testRC("203.0.113.12"))
	assert.NoError(t, err)

	// The token is spent.
	err = f.magic.CompletePasswordReset(ctx, token, "yet another passphrase", testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}
