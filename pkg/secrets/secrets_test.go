package secrets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	codec, err := NewCodec(key)
	require.NoError(t, err)
	return codec
}

func TestNewCodecRejectsShortKey(t *testing.T) {
	_, err := NewCodec([]byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := testCodec(t)

	ciphertext, err := codec.Encrypt("alice@example.com")
	require.NoError(t, err)
	assert.NotContains(t, string(ciphertext), "alice")

	plaintext, err := codec.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", plaintext)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	codec := testCodec(t)

	a, err := codec.Encrypt("same input")
	require.NoError(t, err)
	b, err := codec.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsTampering(t *testing.T) {
	codec := testCodec(t)

	ciphertext, err := codec.Encrypt("payload")
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0xff

	_, err = codec.Decrypt(ciphertext)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestLookupHashIsDeterministicAndNormalized(t *testing.T) {
	codec := testCodec(t)

	a := codec.LookupHash("Alice@Example.com ")
	b := codec.LookupHash("alice@example.com")
	c := codec.LookupHash("bob@example.com")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGenerateTokenUniqueness(t *testing.T) {
	a, err := GenerateToken(60)
	require.NoError(t, err)
	b, err := GenerateToken(60)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, HashToken(a), HashToken(b))
	assert.Equal(t, HashToken(a), HashToken(a))
}
