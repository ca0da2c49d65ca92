package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Today-is-Life/sso-server-os-sub000/pkg/mfa"
)

func TestMFAEnrollmentLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	enrollment, err := f.mfa.BeginEnrollment(ctx, dto.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://")

	// Enrollment alone does not enable MFA.
	identity, err := f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.False(t, identity.MFAEnabled)

	// A wrong confirmation code leaves it disabled.
	_, err = f.mfa.ConfirmEnrollment(ctx, dto.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	code, err := mfa.Code(enrollment.Secret, time.Now())
	require.NoError(t, err)

	codes, err := f.mfa.ConfirmEnrollment(ctx, dto.ID, code)
	require.NoError(t, err)
	assert.Len(t, codes, mfa.RecoveryCodeCount)

	identity, err = f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.True(t, identity.MFAEnabled)
	assert.Len(t, identity.RecoveryCodeHashes, mfa.RecoveryCodeCount)
}

func TestConfirmEnrollmentWithoutSecret(t *testing.T) {
	f := newAuthFixture(t)

	dto := f.register(t, "alice@example.com", "correct horse battery")

	_, err := f.mfa.ConfirmEnrollment(context.Background(), dto.ID, "123456")
	assert.ErrorIs(t, err, ErrMFANotEnabled)
}

func TestDisableMFARequiresPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")
	enrollMFA(t, f, dto)

	err := f.mfa.Disable(ctx, dto.ID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, f.mfa.Disable(ctx, dto.ID, "correct horse battery"))

	identity, err := f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.False(t, identity.MFAEnabled)
	assert.Empty(t, identity.MFASecretEncrypted)
	assert.Empty(t, identity.RecoveryCodeHashes)

	// Password login goes straight to a session again.
	result, err := f.auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}, testRC("203.0.113.10"))
	require.NoError(t, err)
	assert.False(t, result.MFARequired)
}

func TestRegenerateRecoveryCodes(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	dto := f.register(t, "alice@example.com", "correct horse battery")

	// Not available until MFA is actually enabled.
	_, err := f.mfa.RegenerateRecoveryCodes(ctx, dto.ID, "correct horse battery")
	assert.ErrorIs(t, err, ErrMFANotEnabled)

	_, oldCodes := enrollMFA(t, f, dto)

	_, err = f.mfa.RegenerateRecoveryCodes(ctx, dto.ID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	newCodes, err := f.mfa.RegenerateRecoveryCodes(ctx, dto.ID, "correct horse battery")
	require.NoError(t, err)
	assert.Len(t, newCodes, mfa.RecoveryCodeCount)
	assert.NotEqual(t, oldCodes, newCodes)

	// The old set is void after regeneration.
	identity, err := f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	err = f.mfa.Verify(ctx, identity, "", oldCodes[0])
	assert.ErrorIs(t, err, ErrInvalidMFACode)

	identity, err = f.identities.GetByID(ctx, dto.ID)
	require.NoError(t, err)
	err = f.mfa.Verify(ctx, identity, "", newCodes[0])
	assert.NoError(t, err)
}
