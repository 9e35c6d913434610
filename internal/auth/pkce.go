package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Code verifier character set per RFC 7636.
const codeVerifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

const codeVerifierLength = 64

// GenerateCodeVerifier produces a PKCE code verifier using rejection
// sampling over the RFC 7636 character set.
func GenerateCodeVerifier() (string, error) {
	charsetLen := len(codeVerifierCharset)
	limit := 256 - (256 % charsetLen)

	result := make([]byte, 0, codeVerifierLength)
	buf := make([]byte, codeVerifierLength*2)
	for len(result) < codeVerifierLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code verifier: %w", err)
		}
		for _, b := range buf {
			if int(b) < limit {
				result = append(result, codeVerifierCharset[int(b)%charsetLen])
				if len(result) >= codeVerifierLength {
					break
				}
			}
		}
	}
	return string(result), nil
}

// GenerateCodeChallenge derives the S256 challenge for a verifier.
func GenerateCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64URLEncode(hash[:])
}

// GenerateState produces the random state parameter binding the callback to
// this authorization attempt.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64URLEncode(buf), nil
}

func base64URLEncode(data []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(data), "=")
}

// BuildAuthorizationURL assembles the browser URL for the code flow.
func BuildAuthorizationURL(authorizeURL, clientID, redirectURI, scope, state, codeChallenge string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", scope)
	params.Set("state", state)
	params.Set("code_challenge", codeChallenge)
	params.Set("code_challenge_method", "S256")

	sep := "?"
	if strings.Contains(authorizeURL, "?") {
		sep = "&"
	}
	return authorizeURL + sep + params.Encode()
}

// TokenResponse is the token endpoint's reply for both the exchange and
// refresh grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Credential converts the response into the persisted credential shape.
// Normalization (deriving expires_at) happens on save.
func (r *TokenResponse) Credential() Credential {
	return Credential{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Scope:        r.Scope,
		ExpiresIn:    r.ExpiresIn,
	}
}
