package jwt

import (
	"crypto/rsa"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
)

var (
	ErrInvalidSigningMethod = errors.New("unexpected signing method")
	ErrInvalidToken         = errors.New("invalid token")
)

// TokenService signs and verifies RS256 access and ID tokens. The key
// pair is process-wide, generated once and reused; the key ID is fixed
// for the lifetime of the pair.
type TokenService struct {
	privateKey   *rsa.PrivateKey
	publicKey    *rsa.PublicKey
	keyID        string
	issuer       string
	accessExpiry time.Duration
}

func NewTokenService(privateKey *rsa.PrivateKey, keyID, issuer string, accessExpiry time.Duration) *TokenService {
	return &TokenService{
		privateKey:   privateKey,
		publicKey:    &privateKey.PublicKey,
		keyID:        keyID,
		issuer:       issuer,
		accessExpiry: accessExpiry,
	}
}

// AccessTokenInput carries the subject data for a signed access token.
type AccessTokenInput struct {
	Subject  string
	Audience string
	Scope    []string
	Email    string
	Name     string
	Expiry   time.Duration
}

// SignAccessToken returns the signed token and its expiry.
func (s *TokenService) SignAccessToken(in AccessTokenInput) (string, time.Time, error) {
	now := time.Now()
	expiry := in.Expiry
	if expiry <= 0 {
		expiry = s.accessExpiry
	}
	expiresAt := now.Add(expiry)

	claims := domain.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   in.Subject,
			Audience:  jwt.ClaimStrings{in.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		Scope: strings.Join(in.Scope, " "),
		Email: in.Email,
		Name:  in.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// IDTokenInput carries the subject data for an OIDC ID token.
type IDTokenInput struct {
	Subject           string
	Audience          string
	AuthTime          time.Time
	Nonce             string
	Email             string
	EmailVerified     bool
	PreferredUsername string
	Locale            string
	Expiry            time.Duration
}

func (s *TokenService) SignIDToken(in IDTokenInput) (string, error) {
	now := time.Now()
	expiry := in.Expiry
	if expiry <= 0 {
		expiry = s.accessExpiry
	}

	claims := domain.IDClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   in.Subject,
			Audience:  jwt.ClaimStrings{in.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		AuthTime:          in.AuthTime.Unix(),
		Nonce:             in.Nonce,
		Email:             in.Email,
		EmailVerified:     in.EmailVerified,
		PreferredUsername: in.PreferredUsername,
		Locale:            in.Locale,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID

	return token.SignedString(s.privateKey)
}

// VerifyAccessToken parses and validates a signed access token.
func (s *TokenService) VerifyAccessToken(tokenString string) (*domain.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &domain.AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*domain.AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetPublicKey returns the RSA public key for the JWKS endpoint.
func (s *TokenService) GetPublicKey() *rsa.PublicKey {
	return s.publicKey
}

// KeyID returns the fixed key identifier published in JWKS.
func (s *TokenService) KeyID() string {
	return s.keyID
}
