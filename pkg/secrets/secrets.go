package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrInvalidKeySize    = errors.New("encryption key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Codec encrypts PII fields with a process-wide key and derives the
// deterministic lookup hashes used for equality queries. Equality
// lookups must always go through LookupHash; the AES-GCM ciphertext is
// non-deterministic by construction.
type Codec struct {
	aead      cipher.AEAD
	lookupKey []byte
}

func NewCodec(key []byte) (*Codec, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	// Separate key for the lookup hash so the HMAC never shares key
	// material with the cipher.
	lookupKey := sha256.Sum256(append([]byte("lookup:"), key...))

	return &Codec{aead: aead, lookupKey: lookupKey[:]}, nil
}

// Encrypt seals plaintext with a random nonce prepended to the output.
func (c *Codec) Encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (c *Codec) Decrypt(ciphertext []byte) (string, error) {
	if len(ciphertext) < c.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := ciphertext[:c.aead.NonceSize()], ciphertext[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	return string(plaintext), nil
}

// LookupHash returns the deterministic hash of a normalized value.
// Used as the indexed column for every equality query on encrypted
// fields.
func (c *Codec) LookupHash(value string) string {
	mac := hmac.New(sha256.New, c.lookupKey)
	mac.Write([]byte(NormalizeEmail(value)))
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizeEmail lowercases and trims an address so the lookup hash is
// stable across user input variations.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GenerateToken returns a URL-safe random token of n bytes entropy.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is the storage form of opaque tokens (sessions, magic
// links, authorization codes, refresh tokens). The raw token is never
// persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
