// Package auth manages the credential lifecycle: normalization, expiry,
// on-disk persistence, single-flight refresh, and the OAuth login flow.
package auth

import (
	"errors"
	"strings"
	"time"
)

// DefaultExpirySkew expires credentials slightly early so an in-flight
// request never carries a token that dies mid-call.
const DefaultExpirySkew = 60 * time.Second

// Credential is the persisted OAuth record. ExpiresAt is milliseconds since
// epoch; zero means the credential never expires.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Validate checks the structural invariant every stored credential must
// satisfy.
func (c *Credential) Validate() error {
	if c == nil || strings.TrimSpace(c.AccessToken) == "" {
		return errors.New("credential has no access token")
	}
	return nil
}

// Normalize derives ExpiresAt from ExpiresIn when the server supplied only a
// lifetime. A zero ExpiresIn means the credential never expires and must not
// synthesize an ExpiresAt.
func Normalize(c Credential, now time.Time) Credential {
	if c.ExpiresAt == 0 && c.ExpiresIn > 0 {
		c.ExpiresAt = now.UnixMilli() + c.ExpiresIn*1000
	}
	return c
}

// IsExpired reports whether the credential needs a refresh, treating it as
// expired skew early. A credential without ExpiresAt never expires.
func IsExpired(c *Credential, skew time.Duration) bool {
	if c == nil {
		return true
	}
	if c.ExpiresAt == 0 {
		return false
	}
	return time.Now().UnixMilli() >= c.ExpiresAt-skew.Milliseconds()
}
