package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/events"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/repository"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/hash"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/mfa"
	"github.com/Today-is-Life/sso-server-os-sub000/pkg/secrets"
)

type MFAService struct {
	identities repository.IdentityRepository
	codec      *secrets.Codec
	totp       *mfa.TOTPManager
	bus        *events.Bus
}

func NewMFAService(identities repository.IdentityRepository, codec *secrets.Codec, totp *mfa.TOTPManager, bus *events.Bus) *MFAService {
	return &MFAService{
		identities: identities,
		codec:      codec,
		totp:       totp,
		bus:        bus,
	}
}

type EnrollmentResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// BeginEnrollment provisions a TOTP secret. The secret is stored
// encrypted but MFA stays disabled until a code confirms the
// authenticator actually holds it.
func (s *MFAService) BeginEnrollment(ctx context.Context, identityID uuid.UUID) (*EnrollmentResponse, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	address, err := s.codec.Decrypt(identity.EmailEncrypted)
	if err != nil {
		return nil, err
	}

	secret, uri, err := s.totp.GenerateSecret(address)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.codec.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	identity.MFASecretEncrypted = encrypted
	identity.MFAEnabled = false
	identity.UpdatedAt = time.Now()
	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, err
	}

	return &EnrollmentResponse{Secret: secret, ProvisioningURI: uri}, nil
}

// ConfirmEnrollment enables MFA after a valid code and returns the
// plaintext recovery codes exactly once.
func (s *MFAService) ConfirmEnrollment(ctx context.Context, identityID uuid.UUID, code string) ([]string, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if len(identity.MFASecretEncrypted) == 0 {
		return nil, ErrMFANotEnabled
	}

	if err := s.verifyTOTP(identity, code); err != nil {
		return nil, err
	}

	codes, hashes, err := mfa.GenerateRecoveryCodes(mfa.RecoveryCodeCount)
	if err != nil {
		return nil, err
	}

	identity.MFAEnabled = true
	identity.RecoveryCodeHashes = hashes
	identity.UpdatedAt = time.Now()
	if err := s.identities.Update(ctx, identity); err != nil {
		return nil, err
	}

	return codes, nil
}

// Disable turns MFA off after the password re-confirms the owner.
func (s *MFAService) Disable(ctx context.Context, identityID uuid.UUID, password string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}

	valid, err := hash.VerifyPassword(password, identity.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	identity.MFAEnabled = false
	identity.MFASecretEncrypted = nil
	identity.RecoveryCodeHashes = nil
	identity.UpdatedAt = time.Now()
	return s.identities.Update(ctx, identity)
}

// RegenerateRecoveryCodes replaces the whole set and returns the new
// plaintext codes exactly once.
func (s *MFAService) RegenerateRecoveryCodes(ctx context.Context, identityID uuid.UUID, password string) ([]string, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !identity.MFAEnabled {
		return nil, ErrMFANotEnabled
	}

	valid, err := hash.VerifyPassword(password, identity.PasswordHash)
	if err != nil || !valid {
		return nil, ErrInvalidCredentials
	}

	codes, hashes, err := mfa.GenerateRecoveryCodes(mfa.RecoveryCodeCount)
	if err != nil {
		return nil, err
	}

	if err := s.identities.UpdateRecoveryCodes(ctx, identity.ID, hashes); err != nil {
		return nil, err
	}

	return codes, nil
}

// Verify checks a second factor: a TOTP code when present, otherwise a
// recovery code (consuming it).
func (s *MFAService) Verify(ctx context.Context, identity *domain.Identity, code, recoveryCode string) error {
	switch {
	case code != "":
		return s.verifyTOTP(identity, code)
	case recoveryCode != "":
		return s.consumeRecoveryCode(ctx, identity, recoveryCode)
	default:
		return ErrMFARequired
	}
}

func (s *MFAService) verifyTOTP(identity *domain.Identity, code string) error {
	secret, err := s.codec.Decrypt(identity.MFASecretEncrypted)
	if err != nil {
		return ErrInvalidMFACode
	}

	if err := s.totp.Verify(secret, code, time.Now()); err != nil {
		if errors.Is(err, mfa.ErrInvalidCode) {
			return ErrInvalidMFACode
		}
		return err
	}
	return nil
}

func (s *MFAService) consumeRecoveryCode(ctx context.Context, identity *domain.Identity, code string) error {
	remaining, ok := mfa.ConsumeRecoveryCode(code, identity.RecoveryCodeHashes)
	if !ok {
		return ErrInvalidMFACode
	}

	identity.RecoveryCodeHashes = remaining
	return s.identities.UpdateRecoveryCodes(ctx, identity.ID, remaining)
}
