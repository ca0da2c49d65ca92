package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives a stable device identifier from passive request
// attributes. No single attribute identifies a device; the combination
// is distinctive enough to recognize a returning browser.
func Fingerprint(userAgent, acceptLanguage, acceptEncoding, screenResolution, timezone string) string {
	parts := []string{userAgent, acceptLanguage, acceptEncoding, screenResolution, timezone}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
