// Package cache implements the two-tier result cache behind read commands:
// a ristretto memory tier in front of one JSON file per key on disk, with
// TTL staleness, per-key single-flight fetch, and a stale-if-error window.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/taskwire/taskwire/internal/pkg/logger"
)

// Source identifies where a lookup or fetch result came from.
type Source string

const (
	SourceMemory Source = "memory"
	SourceDisk   Source = "disk"
	SourceNone   Source = "none"
	SourceCache  Source = "cache"
	SourceOrigin Source = "origin"
)

type Options struct {
	Dir          string
	DefaultTTL   time.Duration
	StaleIfError time.Duration
	MaxEntries   int64
}

// Cache is safe for concurrent use. The in-flight registry guarantees at
// most one origin fetch per key at a time; waiters share its result.
type Cache struct {
	dir         string
	defaultTTL  time.Duration
	staleWindow time.Duration
	mem         *ristretto.Cache
	group       singleflight.Group
	log         *zap.Logger
}

func New(opts Options) (*Cache, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("cache: dir must not be empty")
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1024
	}
	mem, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.MaxEntries * 10,
		MaxCost:     opts.MaxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: init memory tier: %w", err)
	}
	return &Cache{
		dir:         opts.Dir,
		defaultTTL:  opts.DefaultTTL,
		staleWindow: opts.StaleIfError,
		mem:         mem,
		log:         logger.With(zap.String("component", "cache")),
	}, nil
}

// Lookup is the result of Get: the entry if present, where it came from,
// and whether it is past its TTL.
type Lookup struct {
	Entry  *Entry
	Source Source
	Stale  bool
}

// Get checks memory first, then disk. A disk hit is promoted into memory.
// Unparseable, structurally invalid, or key-mismatched disk entries are
// misses, not errors.
func (c *Cache) Get(key string) Lookup {
	now := nowMillis()
	if v, ok := c.mem.Get(key); ok {
		if entry, ok := v.(*Entry); ok && entry.valid(key) {
			return Lookup{Entry: entry, Source: SourceMemory, Stale: entry.StaleAt(now)}
		}
	}
	entry := c.readDisk(key)
	if entry == nil {
		return Lookup{Source: SourceNone}
	}
	c.mem.Set(key, entry, 1)
	return Lookup{Entry: entry, Source: SourceDisk, Stale: entry.StaleAt(now)}
}

// Set writes the entry to disk first, then to memory. A ttl of zero uses the
// cache-wide default.
func (c *Cache) Set(key string, value json.RawMessage, ttl time.Duration) (*Entry, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := nowMillis()
	entry := &Entry{
		Key:       key,
		Value:     value,
		CachedAt:  now,
		ExpiresAt: now + ttl.Milliseconds(),
	}
	if err := c.writeDisk(entry); err != nil {
		return nil, err
	}
	c.mem.Set(key, entry, 1)
	c.mem.Wait()
	return entry, nil
}

// FetchFunc loads a value from origin on miss or staleness.
type FetchFunc func(ctx context.Context) (json.RawMessage, error)

type FetchOptions struct {
	TTL          time.Duration // zero uses the cache default
	StaleIfError time.Duration // zero uses the cache default
	ForceRefresh bool          // skip the freshness check, always hit origin
}

// FetchResult carries the value plus provenance. Err is non-nil only when a
// stale cached value absorbed an origin failure within the stale window.
type FetchResult struct {
	Value    json.RawMessage
	Source   Source
	Stale    bool
	CachedAt int64
	Err      error
}

// Fetch returns a fresh cached value when one exists, otherwise runs fn at
// most once per key across concurrent callers and caches its result. When fn
// fails and a cached entry expired no longer ago than the stale-if-error
// window, that entry is returned stale with the error attached instead of
// propagating; otherwise the error propagates unchanged.
func (c *Cache) Fetch(ctx context.Context, key string, fn FetchFunc, opts FetchOptions) (FetchResult, error) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	window := opts.StaleIfError
	if window <= 0 {
		window = c.staleWindow
	}

	if !opts.ForceRefresh {
		if l := c.Get(key); l.Entry != nil && !l.Stale {
			return FetchResult{
				Value:    l.Entry.Value,
				Source:   SourceCache,
				CachedAt: l.Entry.CachedAt,
			}, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		prior := c.Get(key)

		value, fetchErr := fn(ctx)
		if fetchErr != nil {
			if prior.Entry != nil && nowMillis()-prior.Entry.ExpiresAt <= window.Milliseconds() {
				c.log.Debug("origin fetch failed, serving stale entry",
					zap.String("key", key), zap.Error(fetchErr))
				return FetchResult{
					Value:    prior.Entry.Value,
					Source:   SourceCache,
					Stale:    true,
					CachedAt: prior.Entry.CachedAt,
					Err:      fetchErr,
				}, nil
			}
			return nil, fetchErr
		}

		entry, setErr := c.Set(key, value, ttl)
		if setErr != nil {
			// The origin value is good; a persistence failure must not lose it.
			c.log.Warn("cache write failed", zap.String("key", key), zap.Error(setErr))
			return FetchResult{Value: value, Source: SourceOrigin, CachedAt: nowMillis()}, nil
		}
		return FetchResult{Value: entry.Value, Source: SourceOrigin, CachedAt: entry.CachedAt}, nil
	})
	if err != nil {
		return FetchResult{Source: SourceNone}, err
	}
	return v.(FetchResult), nil
}

// Invalidate removes the key from memory and disk. A missing disk file is
// not an error.
func (c *Cache) Invalidate(key string) error {
	c.mem.Del(key)
	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cache: invalidate %s: %w", key, err)
	}
	return nil
}

// Purge clears the memory tier and removes the cache directory.
func (c *Cache) Purge() error {
	c.mem.Clear()
	if err := os.RemoveAll(c.dir); err != nil {
		return fmt.Errorf("cache: purge: %w", err)
	}
	return nil
}

type Stats struct {
	Dir           string        `json:"dir"`
	DiskEntries   int           `json:"disk_entries"`
	MemoryEntries int64         `json:"memory_entries"` // estimate from ristretto metrics
	DefaultTTL    time.Duration `json:"default_ttl"`
	StaleIfError  time.Duration `json:"stale_if_error"`
}

func (c *Cache) Stats() Stats {
	stats := Stats{
		Dir:          c.dir,
		DefaultTTL:   c.defaultTTL,
		StaleIfError: c.staleWindow,
	}
	if m := c.mem.Metrics; m != nil {
		added := int64(m.KeysAdded()) - int64(m.KeysEvicted())
		if added > 0 {
			stats.MemoryEntries = added
		}
	}
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return stats
	}
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
			stats.DiskEntries++
		}
	}
	return stats
}

// Entries scans the disk tier and returns every valid entry whose key starts
// with prefix. Used by offline search; never touches origin.
func (c *Cache) Entries(prefix string) []*Entry {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var out []*Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, f.Name()))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		if !entry.valid(entry.Key) || !strings.HasPrefix(entry.Key, prefix) {
			continue
		}
		out = append(out, &entry)
	}
	return out
}

func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

func (c *Cache) readDisk(key string) *Entry {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Debug("discarding unparseable cache file", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !entry.valid(key) {
		c.log.Debug("discarding invalid cache file", zap.String("key", key))
		return nil
	}
	return &entry
}

func (c *Cache) writeDisk(entry *Entry) error {
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return fmt.Errorf("cache: create dir: %w", err)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: encode entry %s: %w", entry.Key, err)
	}
	if err := os.WriteFile(c.path(entry.Key), data, 0o600); err != nil {
		return fmt.Errorf("cache: write entry %s: %w", entry.Key, err)
	}
	return nil
}
