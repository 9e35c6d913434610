package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/util/apierr"
)

func newTokenServer(t *testing.T, refreshes *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "refresh_token":
			refreshes.Add(1)
			require.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		case "authorization_code":
			require.NotEmpty(t, r.Form.Get("code"))
			require.NotEmpty(t, r.Form.Get("code_verifier"))
		default:
			t.Errorf("unexpected grant_type %q", r.Form.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "new-access",
			RefreshToken: "new-refresh",
			TokenType:    "Bearer",
			ExpiresIn:    3600,
		})
	}))
}

func TestTokenSourceExplicitTokenWins(t *testing.T) {
	source := NewTokenSource("explicit-token", NewStore(filepath.Join(t.TempDir(), "cred.json")), nil)
	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "explicit-token", tok)
}

func TestTokenSourceNotLoggedIn(t *testing.T) {
	source := NewTokenSource("", NewStore(filepath.Join(t.TempDir(), "cred.json")), nil)
	_, err := source.Token(context.Background())
	require.Error(t, err)
	var authErr *apierr.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, apierr.ExitAuth, apierr.ExitCodeFor(err))
}

func TestTokenSourceFreshCredentialSkipsRefresh(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cred.json"))
	_, err := store.Save(Credential{AccessToken: "still-good", ExpiresIn: 3600})
	require.NoError(t, err)

	// nil OAuth client: any refresh attempt would panic the test.
	source := NewTokenSource("", store, nil)
	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still-good", tok)
}

func TestTokenSourceRefreshesExpiredCredential(t *testing.T) {
	var refreshes atomic.Int32
	srv := newTokenServer(t, &refreshes)
	defer srv.Close()

	store := NewStore(filepath.Join(t.TempDir(), "cred.json"))
	_, err := store.Save(Credential{
		AccessToken:  "stale-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().UnixMilli() - 1000,
	})
	require.NoError(t, err)

	oauth := NewOAuthClient(OAuthConfig{ClientID: "cli-1", TokenURL: srv.URL})
	source := NewTokenSource("", store, oauth)

	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok)
	assert.Equal(t, int32(1), refreshes.Load())

	// Refresh result must be persisted for later processes.
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-access", saved.AccessToken)
	assert.Equal(t, "new-refresh", saved.RefreshToken)
	assert.Greater(t, saved.ExpiresAt, time.Now().UnixMilli())
}

func TestTokenSourceExpiredWithoutRefreshToken(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cred.json"))
	_, err := store.Save(Credential{AccessToken: "stale", ExpiresAt: time.Now().UnixMilli() - 1000})
	require.NoError(t, err)

	source := NewTokenSource("", store, nil)
	_, err = source.Token(context.Background())
	var authErr *apierr.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestTokenSourceConcurrentCallersShareOneRefresh(t *testing.T) {
	var refreshes atomic.Int32
	srv := newTokenServer(t, &refreshes)
	defer srv.Close()

	store := NewStore(filepath.Join(t.TempDir(), "cred.json"))
	_, err := store.Save(Credential{
		AccessToken:  "stale-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().UnixMilli() - 1000,
	})
	require.NoError(t, err)

	oauth := NewOAuthClient(OAuthConfig{ClientID: "cli-1", TokenURL: srv.URL})
	source := NewTokenSource("", store, oauth)

	const workers = 8
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = source.Token(context.Background())
		}(i)
	}
	wg.Wait()

	// In-slot re-check means late arrivals may read the saved credential,
	// but the endpoint must never see more than one refresh.
	assert.Equal(t, int32(1), refreshes.Load())
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-access", tokens[i])
	}
}
