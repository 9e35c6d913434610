package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskwire/taskwire/internal/cache"
	"github.com/taskwire/taskwire/internal/util/apierr"
)

func seedSearchCache(t *testing.T) *cache.Cache {
	t.Helper()
	rc, err := cache.New(cache.Options{Dir: t.TempDir(), DefaultTTL: time.Minute, MaxEntries: 64})
	require.NoError(t, err)

	projects, _ := json.Marshal([]Project{
		{ID: "p1", Name: "Website relaunch"},
		{ID: "p2", Name: "Backend cleanup"},
	})
	_, err = rc.Set(keyProjectsList, projects, time.Minute)
	require.NoError(t, err)

	p1Tasks, _ := json.Marshal([]Task{
		{ID: "t1", ProjectID: "p1", Title: "Ship login page", Notes: "blocked on design", Status: StatusOpen, Priority: 3},
		{ID: "t2", ProjectID: "p1", Title: "Fix footer", Status: StatusDone},
	})
	_, err = rc.Set(keyProjectTasks("p1"), p1Tasks, time.Minute)
	require.NoError(t, err)

	p2Tasks, _ := json.Marshal([]Task{
		{ID: "t3", ProjectID: "p2", Title: "Rotate login secrets", Status: StatusOpen, Priority: 1},
	})
	_, err = rc.Set(keyProjectTasks("p2"), p2Tasks, time.Minute)
	require.NoError(t, err)
	return rc
}

func TestSearchByQuery(t *testing.T) {
	rc := seedSearchCache(t)

	hits, err := Search(rc, SearchOptions{Query: "login"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, "task", h.Kind)
	}
}

func TestSearchMatchesNotesAndProjectNames(t *testing.T) {
	rc := seedSearchCache(t)

	hits, err := Search(rc, SearchOptions{Query: "design"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "t1", hits[0].ID)

	hits, err = Search(rc, SearchOptions{Query: "backend"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "project", hits[0].Kind)
	assert.Equal(t, "p2", hits[0].ID)
}

func TestSearchPathFilter(t *testing.T) {
	rc := seedSearchCache(t)

	hits, err := Search(rc, SearchOptions{Path: `status=="open"`})
	require.NoError(t, err)
	require.Len(t, hits, 2)

	hits, err = Search(rc, SearchOptions{Query: "login", Path: `priority>2`})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "t1", hits[0].ID)
}

func TestSearchScopedToProject(t *testing.T) {
	rc := seedSearchCache(t)

	hits, err := Search(rc, SearchOptions{Query: "login", ProjectID: "p2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "t3", hits[0].ID)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	rc := seedSearchCache(t)
	_, err := Search(rc, SearchOptions{})
	var valErr *apierr.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestSearchColdCacheReturnsNothing(t *testing.T) {
	rc, err := cache.New(cache.Options{Dir: t.TempDir(), DefaultTTL: time.Minute, MaxEntries: 8})
	require.NoError(t, err)

	hits, err := Search(rc, SearchOptions{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchMarksStaleEntries(t *testing.T) {
	rc, err := cache.New(cache.Options{Dir: t.TempDir(), DefaultTTL: time.Minute, MaxEntries: 8})
	require.NoError(t, err)

	tasks, _ := json.Marshal([]Task{{ID: "t1", ProjectID: "p1", Title: "Old task", Status: StatusOpen}})
	_, err = rc.Set(keyProjectTasks("p1"), tasks, 30*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	hits, err := Search(rc, SearchOptions{Query: "old"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Stale)
}
