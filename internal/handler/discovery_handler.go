package handler

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"

	"github.com/gofiber/fiber/v2"
)

type DiscoveryHandler struct {
	issuer    string
	publicKey *rsa.PublicKey
	keyID     string
}

func NewDiscoveryHandler(issuer string, publicKey *rsa.PublicKey, keyID string) *DiscoveryHandler {
	return &DiscoveryHandler{
		issuer:    issuer,
		publicKey: publicKey,
		keyID:     keyID,
	}
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Configuration is the OIDC discovery document
// GET /.well-known/openid-configuration
func (h *DiscoveryHandler) Configuration(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"issuer":                                h.issuer,
		"authorization_endpoint":                h.issuer + "/oauth/authorize",
		"token_endpoint":                        h.issuer + "/oauth/token",
		"userinfo_endpoint":                     h.issuer + "/oauth/userinfo",
		"jwks_uri":                              h.issuer + "/.well-known/jwks.json",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token", "client_credentials"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "profile", "email"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post"},
		"code_challenge_methods_supported":      []string{"S256", "plain"},
		"claims_supported": []string{
			"sub", "name", "preferred_username", "email", "email_verified", "locale",
		},
	})
}

// JWKS publishes the signing key set
// GET /.well-known/jwks.json
func (h *DiscoveryHandler) JWKS(c *fiber.Ctx) error {
	n := base64.RawURLEncoding.EncodeToString(h.publicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(h.publicKey.E)).Bytes())

	return c.Status(fiber.StatusOK).JSON(JWKS{
		Keys: []JWK{
			{
				Kty: "RSA",
				Use: "sig",
				Kid: h.keyID,
				Alg: "RS256",
				N:   n,
				E:   e,
			},
		},
	})
}
