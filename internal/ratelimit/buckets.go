package ratelimit

import (
	"strings"
	"time"
)

// Scope is the dimension a bucket counts over.
type Scope string

const (
	ScopePerIP   Scope = "per_ip"
	ScopePerUser Scope = "per_user"
)

// Bucket names an action family with its own window and limits.
type Bucket string

const (
	BucketLogin         Bucket = "login"
	BucketRegister      Bucket = "register"
	BucketAPI           Bucket = "api"
	BucketOAuth         Bucket = "oauth"
	BucketTwoFA         Bucket = "2fa"
	BucketMagicLink     Bucket = "magic-link"
	BucketPasswordReset Bucket = "password-reset"
)

// BucketConfig is the window and per-dimension limits for one action
// family.
type BucketConfig struct {
	Window       time.Duration
	PerIPLimit   int
	PerUserLimit int
}

// DefaultBuckets are the shipped limits. Sensitive routes get tighter
// windows than general API traffic.
func DefaultBuckets() map[Bucket]BucketConfig {
	return map[Bucket]BucketConfig{
		BucketLogin:         {Window: 60 * time.Second, PerIPLimit: 10, PerUserLimit: 5},
		BucketRegister:      {Window: time.Hour, PerIPLimit: 10, PerUserLimit: 3},
		BucketAPI:           {Window: 60 * time.Second, PerIPLimit: 300, PerUserLimit: 120},
		BucketOAuth:         {Window: 60 * time.Second, PerIPLimit: 30, PerUserLimit: 20},
		BucketTwoFA:         {Window: 5 * time.Minute, PerIPLimit: 15, PerUserLimit: 5},
		BucketMagicLink:     {Window: 15 * time.Minute, PerIPLimit: 10, PerUserLimit: 3},
		BucketPasswordReset: {Window: 15 * time.Minute, PerIPLimit: 10, PerUserLimit: 3},
	}
}

// routePattern maps an endpoint pattern to its bucket. A trailing "*"
// matches any suffix; everything else is an exact match.
type routePattern struct {
	pattern string
	bucket  Bucket
}

// patternTable is consulted in order; first match wins.
var patternTable = []routePattern{
	{"/api/v1/auth/login", BucketLogin},
	{"/api/v1/auth/register", BucketRegister},
	{"/api/v1/auth/mfa/*", BucketTwoFA},
	{"/api/v1/auth/totp/*", BucketTwoFA},
	{"/api/v1/auth/recovery-codes", BucketTwoFA},
	{"/api/v1/auth/magic-link/*", BucketMagicLink},
	{"/api/v1/auth/password/reset/*", BucketPasswordReset},
	{"/api/v1/auth/password/*", BucketLogin},
	{"/oauth/*", BucketOAuth},
	{"/api/*", BucketAPI},
}

// ClassifyRoute returns the bucket for a request path. Unmatched paths
// fall back to the api bucket.
func ClassifyRoute(path string) Bucket {
	for _, rp := range patternTable {
		if strings.HasSuffix(rp.pattern, "*") {
			if strings.HasPrefix(path, strings.TrimSuffix(rp.pattern, "*")) {
				return rp.bucket
			}
		} else if path == rp.pattern {
			return rp.bucket
		}
	}
	return BucketAPI
}

// IsSensitive reports whether a path belongs to a credential-bearing
// action family with tightened limits.
func IsSensitive(path string) bool {
	switch ClassifyRoute(path) {
	case BucketLogin, BucketRegister, BucketTwoFA, BucketMagicLink, BucketPasswordReset:
		return true
	}
	return false
}
