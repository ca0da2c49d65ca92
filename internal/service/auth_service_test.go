package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/mfa"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "Alice@Example.com", "correct horse battery")
	assert.Equal(t, "alice@example.com", dto.Email)
	assert.False(t, dto.MFAEnabled)

	result, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.False(t, result.MFARequired)
	assert.NotEmpty(t, result.SessionToken)

	identity, session, err := f.auth.Authenticate(ctx, result.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, dto.ID, identity.ID)
	assert.Equal(t, "203.0.113.10", session.IPAddress)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)

	f.register(t, "alice@example.com", "correct horse battery")

	// Normalization means case variants collide.
	_, err := f.auth.Register(context.Background(), RegisterRequest{
		Email:       "ALICE@example.com",
		Password:    "another password",
		DisplayName: "Impostor",
	}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "correct horse battery")

	_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "wrong"}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	// Distinct source IPs keep the per-IP deny flag out of the way so
	// the account lock is what gets exercised.
	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"}, testRC(fmt.Sprintf("203.0.113.%d", 50+i)))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Even the correct password bounces while the lock is open.
	_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.99"))
	assert.ErrorIs(t, err, ErrAccountLocked)

	identity, err := f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	require.NotNil(t, identity.LockedUntil)
	assert.WithinDuration(t, time.Now().Add(f.cfg.Auth.LockDuration), *identity.LockedUntil, 5*time.Second)
}

func TestLoginAfterLockExpiry(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	for i := 0; i < 5; i++ {
		_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"}, testRC(fmt.Sprintf("203.0.113.%d", 50+i)))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Backdate the lock so it has already run out.
	identity, err := f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	expired := time.Now().Add(-time.Minute)
	identity.LockedUntil = &expired
	require.NoError(t, f.identities.Update(ctx, identity))

	result, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.99"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.SessionToken)

	identity, err = f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, identity.FailedLogins)
	assert.Nil(t, identity.LockedUntil)
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	for i := 0; i < 3; i++ {
		_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"}, testRC(fmt.Sprintf("203.0.113.%d", 50+i)))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)

	identity, err := f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, identity.FailedLogins)
	assert.Nil(t, identity.LockedUntil)
}

func TestLoginDeniedByBruteForceFlag(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "correct horse battery")
	f.register(t, "bob@example.com", "a different password!")

	// Five failures from one address trip the IP deny flag even though
	// they target different accounts.
	for i := 0; i < 3; i++ {
		_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"}, testRC("198.51.100.7"))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	for i := 0; i < 2; i++ {
		_, err := f.auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "wrong"}, testRC("198.51.100.7"))
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := f.auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "a different password!"}, testRC("198.51.100.7"))
	assert.ErrorIs(t, err, ErrRateLimited)

	// A clean address is unaffected.
	_, err = f.auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "a different password!"}, testRC("203.0.113.10"))
	assert.NoError(t, err)
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	identity, err := f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	identity.Status = domain.IdentityStatusInactive
	require.NoError(t, f.identities.Update(ctx, identity))

	_, err = f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func enrollMFA(t *testing.T, f *authFixture, dto *IdentityDTO) (secret string, recoveryCodes []string) {
	t.Helper()
	ctx := context.Background()

	enrollment, err := f.mfa.BeginEnrollment(ctx, dto.ID)
	require.NoError(t, err)

	code, err := mfa.Code(enrollment.Secret, time.Now())
	require.NoError(t, err)

	recoveryCodes, err = f.mfa.ConfirmEnrollment(ctx, dto.ID, code)
	require.NoError(t, err)
	require.Len(t, recoveryCodes, mfa.RecoveryCodeCount)

	return enrollment.Secret, recoveryCodes
}

func TestLoginWithMFAChallenge(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")
	secret, _ := enrollMFA(t, f, dto)

	result, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.True(t, result.MFARequired)
	assert.NotEmpty(t, result.ChallengeToken)
	assert.Empty(t, result.SessionToken)

	// A wrong code does not consume the challenge.
	_, err = f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: result.ChallengeToken, Code: "000000"}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	code, err := mfa.Code(secret, time.Now())
	require.NoError(t, err)

	completed, err := f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: result.ChallengeToken, Code: code}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.NotEmpty(t, completed.SessionToken)

	// Success consumed the marker; the challenge is single-use.
	_, err = f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: result.ChallengeToken, Code: code}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestCompleteMFAWithoutFactor(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")
	secret, _ := enrollMFA(t, f, dto)

	result, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	require.True(t, result.MFARequired)

	// Neither a code nor a recovery code: the caller is told a factor
	// is still required, and the challenge is not burned.
	_, err = f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: result.ChallengeToken}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrMFARequired)

	code, err := mfa.Code(secret, time.Now())
	require.NoError(t, err)
	completed, err := f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: result.ChallengeToken, Code: code}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.NotEmpty(t, completed.SessionToken)
}

func TestCompleteMFAWithRecoveryCode(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")
	_, codes := enrollMFA(t, f, dto)

	result, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	require.True(t, result.MFARequired)

	completed, err := f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: result.ChallengeToken, RecoveryCode: codes[0]}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.NotEmpty(t, completed.SessionToken)

	// The code is burned.
	second, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	_, err = f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: second.ChallengeToken, RecoveryCode: codes[0]}, testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	// A fresh one still works.
	_, err = f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: second.ChallengeToken, RecoveryCode: codes[1]}, testRC("203.0.113.10"))
	assert.NoError(t, err)
}

func TestLoginEchoesOAuthContinuation(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "correct horse battery")

	result, err := f.auth.Login(ctx, LoginRequest{
		Email:       "alice@example.com",
		Password:    "correct horse battery",
		ClientID:    "acme-dashboard",
		RedirectURI: "https://acme.example.com/callback",
		State:       "xyzzy",
	}, testRC("203.0.113.10"))
	require.NoError(t, err)
	require.NotNil(t, result.Continuation)
	assert.Equal(t, "acme-dashboard", result.Continuation.ClientID)
	assert.Equal(t, "https://acme.example.com/callback", result.Continuation.RedirectURI)
	assert.Equal(t, "xyzzy", result.Continuation.State)

	// A plain login carries no continuation.
	plain, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.Nil(t, plain.Continuation)
}

func TestOAuthContinuationSurvivesMFAGate(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")
	secret, _ := enrollMFA(t, f, dto)

	result, err := f.auth.Login(ctx, LoginRequest{
		Email:    "alice@example.com",
		Password: "correct horse battery",
		ClientID: "acme-dashboard",
		State:    "xyzzy",
	}, testRC("203.0.113.10"))
	require.NoError(t, err)
	require.True(t, result.MFARequired)
	require.NotNil(t, result.Continuation)
	assert.Equal(t, "acme-dashboard", result.Continuation.ClientID)

	code, err := mfa.Code(secret, time.Now())
	require.NoError(t, err)

	completed, err := f.auth.CompleteMFA(ctx, MFARequest{ChallengeToken: result.ChallengeToken, Code: code}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.NotEmpty(t, completed.SessionToken)
	require.NotNil(t, completed.Continuation)
	assert.Equal(t, "acme-dashboard", completed.Continuation.ClientID)
	assert.Equal(t, "xyzzy", completed.Continuation.State)
}

func TestChangePasswordRevokesEverything(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	result, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)

	_, _, err = f.auth.Authenticate(ctx, result.SessionToken)
	require.NoError(t, err)

	err = f.auth.ChangePassword(ctx, dto.ID, "correct horse battery", "an even longer passphrase", testRC("203.0.113.10"))
	require.NoError(t, err)

	// Existing session is gone.
	_, _, err = f.auth.Authenticate(ctx, result.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Old password no longer works, the new one does.
	_, err = f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.11"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "an even longer passphrase"}, testRC("203.0.113.12"))
	assert.NoError(t, err)

	// The owner got a notice.
	_, found := f.mailer.lastOfKind("password_changed")
	assert.True(t, found)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newAuthFixture(t)

	dto := f.register(t, "alice@example.com", "correct horse battery")

	err := f.auth.ChangePassword(context.Background(), dto.ID, "wrong", "an even longer passphrase", testRC("203.0.113.10"))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesAllSessions(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "correct horse battery")

	first, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	second, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.11"))
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, first.SessionToken, testRC("203.0.113.10")))

	_, _, err = f.auth.Authenticate(ctx, first.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = f.auth.Authenticate(ctx, second.SessionToken)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeSessionRequiresOwnership(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	alice := f.register(t, "alice@example.com", "correct horse battery")
	bob := f.register(t, "bob@example.com", "a different password!")

	_, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)

	sessions, err := f.auth.ListSessions(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// Bob cannot revoke Alice's session.
	err = f.auth.RevokeSession(ctx, bob.ID, sessions[0].ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, f.auth.RevokeSession(ctx, alice.ID, sessions[0].ID))

	remaining, err := f.auth.ListSessions(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
