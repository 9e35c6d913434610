package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached value. Immutable once written; a Set for the same key
// supersedes it wholesale. Timestamps are milliseconds since epoch.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CachedAt  int64           `json:"cached_at"`
	ExpiresAt int64           `json:"expires_at"`
}

// StaleAt reports whether the entry is past its TTL at the given instant.
// Strict inequality: an entry expiring exactly now is still fresh.
func (e *Entry) StaleAt(nowMillis int64) bool {
	return nowMillis > e.ExpiresAt
}

// valid performs the structural checks applied to disk reads. A stored key
// that does not match the lookup key means hash-collision or corruption and
// is treated as a miss by the caller.
func (e *Entry) valid(key string) bool {
	if e.Key != key {
		return false
	}
	if e.CachedAt <= 0 || e.ExpiresAt < e.CachedAt {
		return false
	}
	return len(e.Value) > 0
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
