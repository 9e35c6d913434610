package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taskwire/taskwire/internal/pkg/logger"
	"github.com/taskwire/taskwire/internal/util/apierr"
	"github.com/taskwire/taskwire/internal/util/logredact"
)

// TokenSource yields a usable access token for each request: an explicit
// configured token wins; otherwise the stored credential is used and,
// when expired, refreshed through the coordinator so concurrent commands
// share one refresh.
type TokenSource struct {
	explicit    string
	store       *Store
	oauth       *OAuthClient
	coordinator RefreshCoordinator
	skew        time.Duration
	log         *zap.Logger
}

func NewTokenSource(explicitToken string, store *Store, oauth *OAuthClient) *TokenSource {
	return &TokenSource{
		explicit: explicitToken,
		store:    store,
		oauth:    oauth,
		skew:     DefaultExpirySkew,
		log:      logger.With(zap.String("component", "auth")),
	}
}

func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if t.explicit != "" {
		return t.explicit, nil
	}

	cred, err := t.store.Load()
	if err != nil {
		return "", &apierr.AuthError{Message: "load credential", Cause: err}
	}
	if cred == nil {
		return "", &apierr.AuthError{Message: "not logged in; run `taskwire login`"}
	}
	if !IsExpired(cred, t.skew) {
		return cred.AccessToken, nil
	}
	if cred.RefreshToken == "" {
		return "", &apierr.AuthError{Message: "credential expired and has no refresh token; run `taskwire login`"}
	}

	fresh, err := t.coordinator.Do(ctx, func(ctx context.Context) (*Credential, error) {
		// Another caller may have completed a refresh while this one waited
		// for the slot.
		if current, loadErr := t.store.Load(); loadErr == nil && current != nil && !IsExpired(current, t.skew) {
			return current, nil
		}
		t.log.Debug("refreshing credential", zap.String("refresh_token", logredact.Token(cred.RefreshToken)))
		resp, refreshErr := t.oauth.Refresh(ctx, cred.RefreshToken)
		if refreshErr != nil {
			return nil, refreshErr
		}
		saved, saveErr := t.store.Save(resp.Credential())
		if saveErr != nil {
			return nil, saveErr
		}
		return saved, nil
	})
	if err != nil {
		return "", &apierr.AuthError{Message: "refresh credential", Cause: err}
	}
	return fresh.AccessToken, nil
}
