package mfa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, hashes, err := GenerateRecoveryCodes(RecoveryCodeCount)
	require.NoError(t, err)
	require.Len(t, codes, RecoveryCodeCount)
	require.Len(t, hashes, RecoveryCodeCount)

	seen := make(map[string]bool)
	for i, code := range codes {
		assert.Len(t, code, 14)
		assert.False(t, seen[code], "duplicate recovery code generated")
		seen[code] = true
		assert.NotEqual(t, code, hashes[i])
	}
}

func TestConsumeRecoveryCodeOneTimeUse(t *testing.T) {
	codes, hashes, err := GenerateRecoveryCodes(3)
	require.NoError(t, err)

	remaining, ok := ConsumeRecoveryCode(codes[1], hashes)
	require.True(t, ok)
	assert.Len(t, remaining, 2)

	// The same code must not verify against the remaining set.
	_, ok = ConsumeRecoveryCode(codes[1], remaining)
	assert.False(t, ok)

	// Other codes still work.
	remaining, ok = ConsumeRecoveryCode(codes[0], remaining)
	require.True(t, ok)
	assert.Len(t, remaining, 1)
}

func TestConsumeRecoveryCodeUnknown(t *testing.T) {
	_, hashes, err := GenerateRecoveryCodes(2)
	require.NoError(t, err)

	remaining, ok := ConsumeRecoveryCode("AAAA-BBBB-CCCC", hashes)
	assert.False(t, ok)
	assert.Len(t, remaining, 2)
}
