// Package logredact scrubs credentials from values before they reach logs.
package logredact

import (
	"encoding/json"
	"strings"
)

// maxDepth bounds recursion over nested payloads.
const maxDepth = 32

var sensitiveKeys = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
	"code":          {},
	"code_verifier": {},
	"client_secret": {},
	"authorization": {},
	"password":      {},
}

// Token returns a short, non-reversible preview of a secret suitable for
// logs: the first four characters followed by an ellipsis.
func Token(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..."
}

// Map returns a deep copy of input with sensitive values replaced by "***".
func Map(input map[string]any, extraKeys ...string) map[string]any {
	if input == nil {
		return map[string]any{}
	}
	keys := keySet(extraKeys)
	out, ok := redact(input, keys, 0).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return out
}

// JSON re-encodes raw JSON with sensitive values replaced by "***".
// Non-JSON input is withheld entirely rather than logged verbatim.
func JSON(raw []byte, extraKeys ...string) string {
	if len(raw) == 0 {
		return ""
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "<non-json payload redacted>"
	}
	encoded, err := json.Marshal(redact(value, keySet(extraKeys), 0))
	if err != nil {
		return "<redacted>"
	}
	return string(encoded)
}

func keySet(extra []string) map[string]struct{} {
	keys := make(map[string]struct{}, len(sensitiveKeys)+len(extra))
	for k := range sensitiveKeys {
		keys[k] = struct{}{}
	}
	for _, k := range extra {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}

func redact(value any, keys map[string]struct{}, depth int) any {
	if depth > maxDepth {
		return "<depth limit exceeded>"
	}
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if _, sensitive := keys[strings.ToLower(strings.TrimSpace(k))]; sensitive {
				out[k] = "***"
				continue
			}
			out[k] = redact(val, keys, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redact(item, keys, depth+1)
		}
		return out
	default:
		return value
	}
}
