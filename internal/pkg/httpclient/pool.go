// Package httpclient provides shared req clients keyed by options, so every
// component with the same transport settings reuses one connection pool.
package httpclient

import (
	"fmt"
	"strings"
	"sync"

	"github.com/imroc/req/v3"
)

// Options selects a shared client. Identical options return the same client.
type Options struct {
	ProxyURL           string
	UserAgent          string
	InsecureSkipVerify bool
}

var sharedClients sync.Map

// GetClient returns a shared req client for the given options. Request
// deadlines are owned by callers through contexts, not a client timeout.
func GetClient(opts Options) *req.Client {
	key := clientKey(opts)
	if cached, ok := sharedClients.Load(key); ok {
		if client, ok := cached.(*req.Client); ok {
			return client
		}
	}
	client := buildClient(opts)
	actual, _ := sharedClients.LoadOrStore(key, client)
	if c, ok := actual.(*req.Client); ok {
		return c
	}
	return client
}

func buildClient(opts Options) *req.Client {
	// No cookie jar: the API is token-authenticated and requests must not
	// carry ambient session state between commands.
	client := req.C().SetCookieJar(nil)

	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		client.SetUserAgent(ua)
	}
	if proxy := strings.TrimSpace(opts.ProxyURL); proxy != "" {
		client.SetProxyURL(proxy)
	}
	if opts.InsecureSkipVerify {
		client.EnableInsecureSkipVerify()
	}
	return client
}

func clientKey(opts Options) string {
	return fmt.Sprintf("%s|%s|%t",
		strings.TrimSpace(opts.ProxyURL),
		strings.TrimSpace(opts.UserAgent),
		opts.InsecureSkipVerify,
	)
}
