package mfa

import (
	"crypto/rand"
	"math/big"

	"github.com/Today-is-Life/sso-server-os-sub000/pkg/hash"
)

// RecoveryCodeCount is how many codes a regeneration issues.
const RecoveryCodeCount = 8

const recoveryCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRecoveryCodes returns n plaintext codes and their salted
// hashes. The plaintext is shown to the user exactly once; only the
// hashes are persisted.
func GenerateRecoveryCodes(n int) (codes []string, hashes []string, err error) {
	codes = make([]string, 0, n)
	hashes = make([]string, 0, n)

	for i := 0; i < n; i++ {
		code, err := randomRecoveryCode()
		if err != nil {
			return nil, nil, err
		}

		h, err := hash.HashPassword(code)
		if err != nil {
			return nil, nil, err
		}

		codes = append(codes, code)
		hashes = append(hashes, h)
	}

	return codes, hashes, nil
}

// ConsumeRecoveryCode scans the stored hashes for a match and, on
// success, returns the remaining set with the matched entry removed.
// Each code is strictly one-time use.
func ConsumeRecoveryCode(code string, hashes []string) (remaining []string, ok bool) {
	for i, h := range hashes {
		valid, err := hash.VerifyPassword(code, h)
		if err != nil || !valid {
			continue
		}

		remaining = make([]string, 0, len(hashes)-1)
		remaining = append(remaining, hashes[:i]...)
		remaining = append(remaining, hashes[i+1:]...)
		return remaining, true
	}

	return hashes, false
}

// randomRecoveryCode builds a XXXX-XXXX-XXXX code over an alphabet
// without ambiguous characters.
func randomRecoveryCode() (string, error) {
	groups := make([]byte, 0, 14)
	for i := 0; i < 12; i++ {
		if i > 0 && i%4 == 0 {
			groups = append(groups, '-')
		}
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(recoveryCodeAlphabet))))
		if err != nil {
			return "", err
		}
		groups = append(groups, recoveryCodeAlphabet[idx.Int64()])
	}

	return string(groups), nil
}
