package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/term"

	"github.com/taskwire/taskwire/internal/util/apierr"
)

// oobRedirectURI is used for manual code entry when no local listener can
// receive the callback.
const oobRedirectURI = "urn:ietf:wg:oauth:2.0:oob"

const defaultLoginTimeout = 5 * time.Minute

type LoginOptions struct {
	OAuth   OAuthConfig
	Manual  bool          // skip the listener, prompt for the code
	Timeout time.Duration // how long to wait for the browser callback

	// Test and fallback seams; zero values use the real browser and stdio.
	OpenBrowser func(url string) error
	Input       io.Reader
	Output      io.Writer
}

// Login runs the authorization-code flow with PKCE and persists the
// resulting credential. The browser path listens on a loopback port for the
// redirect; when the listener cannot start or Manual is set, the user pastes
// the code instead.
func Login(ctx context.Context, store *Store, opts LoginOptions) (*Credential, error) {
	if err := opts.OAuth.validate(); err != nil {
		return nil, err
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = browser.OpenURL
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLoginTimeout
	}

	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return nil, err
	}
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}
	challenge := GenerateCodeChallenge(verifier)
	client := NewOAuthClient(opts.OAuth)

	if opts.Manual {
		return manualLogin(ctx, store, client, opts, verifier, state, challenge)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", opts.OAuth.RedirectPort))
	if err != nil {
		fmt.Fprintf(opts.Output, "Could not open a local callback port (%v); falling back to manual code entry.\n", err)
		return manualLogin(ctx, store, client, opts, verifier, state, challenge)
	}

	redirectURI := fmt.Sprintf("http://%s/callback", ln.Addr().String())
	authURL := BuildAuthorizationURL(opts.OAuth.AuthorizeURL, opts.OAuth.ClientID, redirectURI, opts.OAuth.Scopes, state, challenge)

	code, err := waitForCallback(ctx, ln, opts, authURL, state)
	if err != nil {
		return nil, err
	}
	return exchangeAndSave(ctx, store, client, code, verifier, redirectURI)
}

type callbackResult struct {
	code string
	err  error
}

func waitForCallback(ctx context.Context, ln net.Listener, opts LoginOptions, authURL, state string) (string, error) {
	results := make(chan callbackResult, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if errCode := q.Get("error"); errCode != "" {
			http.Error(w, "Login failed. You can close this tab.", http.StatusBadRequest)
			results <- callbackResult{err: &apierr.AuthError{Message: "authorization denied: " + errCode}}
			return
		}
		if q.Get("state") != state {
			http.Error(w, "Login failed. You can close this tab.", http.StatusBadRequest)
			results <- callbackResult{err: &apierr.AuthError{Message: "state mismatch in callback"}}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Login failed. You can close this tab.", http.StatusBadRequest)
			results <- callbackResult{err: &apierr.AuthError{Message: "callback carried no authorization code"}}
			return
		}
		fmt.Fprintln(w, "Login complete. You can close this tab.")
		results <- callbackResult{code: code}
	})}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: fmt.Errorf("callback listener: %w", err)}:
			default:
			}
		}
	}()
	defer srv.Close()

	if err := opts.OpenBrowser(authURL); err != nil {
		fmt.Fprintf(opts.Output, "Could not open a browser. Visit this URL to continue:\n\n  %s\n\n", authURL)
	} else {
		fmt.Fprintln(opts.Output, "Waiting for authorization in your browser...")
	}

	select {
	case res := <-results:
		return res.code, res.err
	case <-time.After(opts.Timeout):
		return "", &apierr.AuthError{Message: "timed out waiting for the browser callback"}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func manualLogin(ctx context.Context, store *Store, client *OAuthClient, opts LoginOptions, verifier, state, challenge string) (*Credential, error) {
	authURL := BuildAuthorizationURL(opts.OAuth.AuthorizeURL, opts.OAuth.ClientID, oobRedirectURI, opts.OAuth.Scopes, state, challenge)
	fmt.Fprintf(opts.Output, "Visit this URL and authorize access:\n\n  %s\n\n", authURL)
	fmt.Fprint(opts.Output, "Paste the authorization code: ")

	reader := bufio.NewReader(opts.Input)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return nil, &apierr.AuthError{Message: "read authorization code", Cause: err}
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return nil, &apierr.AuthError{Message: "no authorization code entered"}
	}
	return exchangeAndSave(ctx, store, client, code, verifier, oobRedirectURI)
}

func exchangeAndSave(ctx context.Context, store *Store, client *OAuthClient, code, verifier, redirectURI string) (*Credential, error) {
	token, err := client.Exchange(ctx, code, verifier, redirectURI)
	if err != nil {
		return nil, err
	}
	return store.Save(token.Credential())
}

// ReadAccessToken prompts for a raw token, suppressing echo when stdin is a
// terminal. Used by `login --token` for pre-issued API tokens.
func ReadAccessToken(in *os.File, out io.Writer) (string, error) {
	fmt.Fprint(out, "Access token: ")
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}
