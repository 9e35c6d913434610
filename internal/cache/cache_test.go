package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestGetMissingKey(t *testing.T) {
	c := newTestCache(t, Options{})
	l := c.Get("projects:list")
	require.Nil(t, l.Entry)
	require.Equal(t, SourceNone, l.Source)
	require.False(t, l.Stale)
}

func TestSetThenGet(t *testing.T) {
	c := newTestCache(t, Options{})
	_, err := c.Set("projects:list", json.RawMessage(`["p1","p2"]`), time.Minute)
	require.NoError(t, err)

	l := c.Get("projects:list")
	require.NotNil(t, l.Entry)
	require.Equal(t, SourceMemory, l.Source)
	require.False(t, l.Stale)
	require.JSONEq(t, `["p1","p2"]`, string(l.Entry.Value))
	require.Equal(t, l.Entry.CachedAt+time.Minute.Milliseconds(), l.Entry.ExpiresAt)
}

func TestDiskTierPromotion(t *testing.T) {
	dir := t.TempDir()
	c1 := newTestCache(t, Options{Dir: dir})
	_, err := c1.Set("tasks:get-all:p1", json.RawMessage(`[{"id":"t1"}]`), time.Minute)
	require.NoError(t, err)

	// A fresh cache over the same directory has an empty memory tier.
	c2 := newTestCache(t, Options{Dir: dir})
	l := c2.Get("tasks:get-all:p1")
	require.Equal(t, SourceDisk, l.Source)
	require.JSONEq(t, `[{"id":"t1"}]`, string(l.Entry.Value))

	// Promotion makes the next read a memory hit.
	c2.mem.Wait()
	l = c2.Get("tasks:get-all:p1")
	require.Equal(t, SourceMemory, l.Source)
}

func TestStalenessAfterTTL(t *testing.T) {
	c := newTestCache(t, Options{})
	_, err := c.Set("k", json.RawMessage(`"v"`), 50*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	l := c.Get("k")
	require.NotNil(t, l.Entry, "data must survive past expiry until overwritten")
	require.True(t, l.Stale)
	require.JSONEq(t, `"v"`, string(l.Entry.Value))
}

func TestDiskCorruptionIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Options{Dir: dir})

	pathFor := func(key string) string {
		sum := sha256.Sum256([]byte(key))
		return filepath.Join(dir, hex.EncodeToString(sum[:])+".json")
	}

	// Unparseable file.
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(pathFor("bad-json"), []byte("{not json"), 0o600))
	require.Equal(t, SourceNone, c.Get("bad-json").Source)

	// Stored key differs from the lookup key (collision guard).
	entry := Entry{Key: "other-key", Value: json.RawMessage(`1`), CachedAt: nowMillis(), ExpiresAt: nowMillis() + 60000}
	data, _ := json.Marshal(entry)
	require.NoError(t, os.WriteFile(pathFor("mismatched"), data, 0o600))
	require.Equal(t, SourceNone, c.Get("mismatched").Source)

	// Structurally invalid entry.
	entry = Entry{Key: "no-timestamps", Value: json.RawMessage(`1`)}
	data, _ = json.Marshal(entry)
	require.NoError(t, os.WriteFile(pathFor("no-timestamps"), data, 0o600))
	require.Equal(t, SourceNone, c.Get("no-timestamps").Source)
}

func TestFetchSingleFlight(t *testing.T) {
	c := newTestCache(t, Options{})

	var calls atomic.Int32
	slowFetch := func(ctx context.Context) (json.RawMessage, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return json.RawMessage(`{"n":1}`), nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]FetchResult, waiters)
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Fetch(context.Background(), "projects:list", slowFetch, FetchOptions{TTL: time.Minute})
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, calls.Load(), "concurrent fetches must share one origin call")
	for i := 0; i < waiters; i++ {
		require.NoError(t, errs[i])
		require.JSONEq(t, `{"n":1}`, string(results[i].Value))
	}
}

func TestFetchFreshHitSkipsOrigin(t *testing.T) {
	c := newTestCache(t, Options{})
	_, err := c.Set("k", json.RawMessage(`"cached"`), time.Minute)
	require.NoError(t, err)

	res, err := c.Fetch(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		t.Fatal("fetch fn must not run on a fresh hit")
		return nil, nil
	}, FetchOptions{})
	require.NoError(t, err)
	require.Equal(t, SourceCache, res.Source)
	require.False(t, res.Stale)
	require.JSONEq(t, `"cached"`, string(res.Value))
}

func TestFetchOriginSuccessPersists(t *testing.T) {
	c := newTestCache(t, Options{})

	res, err := c.Fetch(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`"origin"`), nil
	}, FetchOptions{TTL: time.Minute})
	require.NoError(t, err)
	require.Equal(t, SourceOrigin, res.Source)
	require.False(t, res.Stale)

	l := c.Get("k")
	require.Equal(t, SourceMemory, l.Source)
	require.JSONEq(t, `"origin"`, string(l.Entry.Value))
}

func TestFetchStaleIfError(t *testing.T) {
	c := newTestCache(t, Options{StaleIfError: 500 * time.Millisecond})
	_, err := c.Set("k", json.RawMessage(`"v1"`), 50*time.Millisecond)
	require.NoError(t, err)

	fetchErr := errors.New("origin down")
	failing := func(ctx context.Context) (json.RawMessage, error) { return nil, fetchErr }

	// Expired by ~10ms, well inside the 500ms window: stale value absorbs the failure.
	time.Sleep(60 * time.Millisecond)
	res, err := c.Fetch(context.Background(), "k", failing, FetchOptions{TTL: 50 * time.Millisecond})
	require.NoError(t, err)
	require.True(t, res.Stale)
	require.JSONEq(t, `"v1"`, string(res.Value))
	require.ErrorIs(t, res.Err, fetchErr)

	// Now well past the window: the original error propagates unchanged.
	time.Sleep(600 * time.Millisecond)
	_, err = c.Fetch(context.Background(), "k", failing, FetchOptions{TTL: 50 * time.Millisecond})
	require.ErrorIs(t, err, fetchErr)
}

func TestFetchErrorWithoutEntry(t *testing.T) {
	c := newTestCache(t, Options{StaleIfError: time.Hour})
	fetchErr := errors.New("origin down")
	_, err := c.Fetch(context.Background(), "never-written", func(ctx context.Context) (json.RawMessage, error) {
		return nil, fetchErr
	}, FetchOptions{})
	require.ErrorIs(t, err, fetchErr)
}

func TestFetchForceRefresh(t *testing.T) {
	c := newTestCache(t, Options{})
	_, err := c.Set("k", json.RawMessage(`"old"`), time.Minute)
	require.NoError(t, err)

	var calls atomic.Int32
	res, err := c.Fetch(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		calls.Add(1)
		return json.RawMessage(`"new"`), nil
	}, FetchOptions{ForceRefresh: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, SourceOrigin, res.Source)
	require.JSONEq(t, `"new"`, string(res.Value))
}

func TestFetchRetriesAfterSettled(t *testing.T) {
	c := newTestCache(t, Options{})
	fetchErr := errors.New("first failure")

	_, err := c.Fetch(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		return nil, fetchErr
	}, FetchOptions{})
	require.ErrorIs(t, err, fetchErr)

	// The in-flight marker is gone; a later fetch runs fresh and can succeed.
	res, err := c.Fetch(context.Background(), "k", func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`"recovered"`), nil
	}, FetchOptions{})
	require.NoError(t, err)
	require.JSONEq(t, `"recovered"`, string(res.Value))
}

func TestInvalidate(t *testing.T) {
	c := newTestCache(t, Options{})
	_, err := c.Set("k", json.RawMessage(`1`), time.Minute)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate("k"))
	require.Equal(t, SourceNone, c.Get("k").Source)

	// Missing file is not an error.
	require.NoError(t, c.Invalidate("k"))
	require.NoError(t, c.Invalidate("never-written"))
}

func TestPurgeAndStats(t *testing.T) {
	dir := t.TempDir()
	c := newTestCache(t, Options{Dir: dir, DefaultTTL: time.Minute, StaleIfError: time.Hour})

	_, err := c.Set("a", json.RawMessage(`1`), 0)
	require.NoError(t, err)
	_, err = c.Set("b", json.RawMessage(`2`), 0)
	require.NoError(t, err)

	stats := c.Stats()
	require.Equal(t, dir, stats.Dir)
	require.Equal(t, 2, stats.DiskEntries)
	require.Equal(t, time.Minute, stats.DefaultTTL)
	require.Equal(t, time.Hour, stats.StaleIfError)

	require.NoError(t, c.Purge())
	require.Equal(t, SourceNone, c.Get("a").Source)
	require.Equal(t, 0, c.Stats().DiskEntries)

	// Purging an already-missing directory is tolerated.
	require.NoError(t, c.Purge())
}

func TestEntriesPrefixScan(t *testing.T) {
	c := newTestCache(t, Options{})
	_, err := c.Set("tasks:get-all:p1", json.RawMessage(`[1]`), time.Minute)
	require.NoError(t, err)
	_, err = c.Set("tasks:get-all:p2", json.RawMessage(`[2]`), time.Minute)
	require.NoError(t, err)
	_, err = c.Set("projects:list", json.RawMessage(`[3]`), time.Minute)
	require.NoError(t, err)

	tasks := c.Entries("tasks:")
	require.Len(t, tasks, 2)
	all := c.Entries("")
	require.Len(t, all, 3)
	require.Empty(t, c.Entries("nothing:"))
}
