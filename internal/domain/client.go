package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StringList is a JSON-encoded list column (redirect URIs, origins).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// Client is a registered downstream application ("domain") that may
// request tokens. The client secret is encrypted at rest and only
// replaced on explicit rotation.
type Client struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	ClientID             string     `json:"client_id" db:"client_id"`
	SecretEncrypted      []byte     `json:"-" db:"secret_encrypted"`
	RedirectURIs         StringList `json:"redirect_uris" db:"redirect_uris"`
	AllowedOrigins       StringList `json:"allowed_origins" db:"allowed_origins"`
	AllowedScopes        ScopeList  `json:"allowed_scopes" db:"allowed_scopes"`
	AccessTokenLifetime  time.Duration `json:"access_token_lifetime" db:"access_token_lifetime"`
	RefreshTokenLifetime time.Duration `json:"refresh_token_lifetime" db:"refresh_token_lifetime"`
	WebhookURL           *string    `json:"webhook_url,omitempty" db:"webhook_url"`
	Active               bool       `json:"active" db:"active"`
	OwnerID              uuid.UUID  `json:"owner_id" db:"owner_id"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// AllowsRedirectURI requires an exact match against the whitelist.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, allowed := range c.RedirectURIs {
		if allowed == uri {
			return true
		}
	}
	return false
}
