package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/imroc/req/v3"

	"github.com/taskwire/taskwire/internal/pkg/httpclient"
	"github.com/taskwire/taskwire/internal/util/apierr"
)

// OAuthConfig carries the endpoints and client identity for the code flow.
type OAuthConfig struct {
	ClientID     string
	AuthorizeURL string
	TokenURL     string
	Scopes       string
	RedirectPort int
}

func (c OAuthConfig) validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return apierr.NewValidation("auth.client_id", "must be configured for login")
	}
	if strings.TrimSpace(c.AuthorizeURL) == "" {
		return apierr.NewValidation("auth.authorize_url", "must be configured for login")
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		return apierr.NewValidation("auth.token_url", "must be configured for login")
	}
	return nil
}

// OAuthClient talks to the token endpoint for the exchange and refresh
// grants.
type OAuthClient struct {
	cfg OAuthConfig
	rc  *req.Client
}

func NewOAuthClient(cfg OAuthConfig) *OAuthClient {
	return &OAuthClient{
		cfg: cfg,
		rc:  httpclient.GetClient(httpclient.Options{UserAgent: "taskwire-cli"}),
	}
}

// Exchange redeems an authorization code for a credential.
func (c *OAuthClient) Exchange(ctx context.Context, code, verifier, redirectURI string) (*TokenResponse, error) {
	return c.post(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     c.cfg.ClientID,
		"code":          code,
		"code_verifier": verifier,
		"redirect_uri":  redirectURI,
	})
}

// Refresh trades a refresh token for a new credential.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.post(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     c.cfg.ClientID,
		"refresh_token": refreshToken,
	})
}

func (c *OAuthClient) post(ctx context.Context, form map[string]string) (*TokenResponse, error) {
	if strings.TrimSpace(c.cfg.TokenURL) == "" {
		return nil, apierr.NewValidation("auth.token_url", "must be configured")
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetFormData(form).
		Post(c.cfg.TokenURL)
	if err != nil {
		return nil, &apierr.NetworkError{Op: "POST " + c.cfg.TokenURL, Cause: err}
	}
	if !resp.IsSuccessState() {
		return nil, apierr.NewAPIError(resp.StatusCode, resp.Bytes())
	}

	var token TokenResponse
	if err := resp.UnmarshalJson(&token); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, &apierr.AuthError{Message: "token endpoint returned no access token"}
	}
	return &token, nil
}
