package mfa

import (
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var ErrInvalidCode = errors.New("invalid TOTP code")

const (
	totpPeriod = 30
	totpDigits = otp.DigitsSix

	// driftPeriods accepts codes from the adjacent 30-second windows
	// on either side of "now" to absorb client clock drift.
	driftPeriods = 1
)

// TOTPManager provisions and verifies time-based one-time passwords.
type TOTPManager struct {
	issuer string
}

func NewTOTPManager(issuer string) *TOTPManager {
	return &TOTPManager{issuer: issuer}
}

// GenerateSecret creates a new shared secret and returns it together
// with the otpauth:// provisioning URI for authenticator apps.
func (m *TOTPManager) GenerateSecret(accountName string) (secret, provisioningURI string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

// Verify checks code against secret at t, accepting the current period
// and one adjacent period on either side.
func (m *TOTPManager) Verify(secret, code string, t time.Time) error {
	valid, err := totp.ValidateCustom(code, secret, t, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      driftPeriods,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidCode
	}
	return nil
}

// Code computes the code for a secret at t. Used by tests and the
// enrollment confirmation flow.
func Code(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
