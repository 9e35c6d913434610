// Package urlvalidator checks user-supplied API endpoints before any
// request is attempted.
package urlvalidator

import (
	"net/url"
	"strings"
)

// Placeholder hosts that ship in sample configs. Requests against these are
// rejected up front instead of producing confusing DNS errors.
var placeholderHosts = map[string]struct{}{
	"api.example.com":      {},
	"api.taskwire.example": {},
	"localhost.invalid":    {},
}

// IsPlaceholder reports whether base is empty or points at a known sample
// endpoint rather than a real one.
func IsPlaceholder(base string) bool {
	base = strings.TrimSpace(base)
	if base == "" {
		return true
	}
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if _, ok := placeholderHosts[host]; ok {
		return true
	}
	// RFC 2606 reserved TLDs only ever appear in documentation.
	return strings.HasSuffix(host, ".example") || strings.HasSuffix(host, ".invalid") || strings.HasSuffix(host, ".test")
}

// NormalizeBaseURL validates scheme and host and strips a trailing slash.
// Returns empty when the URL cannot serve as an API base.
func NormalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return strings.TrimRight(u.String(), "/")
}
