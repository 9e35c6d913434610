package api

import (
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/taskwire/taskwire/internal/cache"
	"github.com/taskwire/taskwire/internal/util/apierr"
)

// SearchOptions filter a local search. Query is matched case-insensitively
// against project names and task titles/notes; Path is an optional gjson
// filter expression evaluated against each cached record.
type SearchOptions struct {
	Query     string
	Path      string // e.g. `status=="open"` or `priority>2`
	ProjectID string // restrict task matches to one project
}

// SearchHit is one matching record from the local cache.
type SearchHit struct {
	Kind      string `json:"kind"` // "project" or "task"
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title"`
	Status    string `json:"status,omitempty"`
	Stale     bool   `json:"stale,omitempty"`
}

// Search scans cached project and task lists without touching the network.
// It sees exactly what earlier commands cached; run a list first to warm it.
func Search(rc *cache.Cache, opts SearchOptions) ([]SearchHit, error) {
	query := strings.ToLower(strings.TrimSpace(opts.Query))
	if query == "" && opts.Path == "" {
		return nil, apierr.NewValidation("query", "must not be empty")
	}

	var hits []SearchHit
	for _, entry := range rc.Entries(keyProjectsList) {
		stale := entry.StaleAt(nowMillis())
		gjson.ParseBytes(entry.Value).ForEach(func(_, rec gjson.Result) bool {
			if matches(rec, query, opts.Path, "name") {
				hits = append(hits, SearchHit{
					Kind:  "project",
					ID:    rec.Get("id").String(),
					Title: rec.Get("name").String(),
					Stale: stale,
				})
			}
			return true
		})
	}
	for _, entry := range rc.Entries(keyTasksPrefix) {
		projectID := strings.TrimPrefix(entry.Key, keyTasksPrefix)
		if opts.ProjectID != "" && projectID != opts.ProjectID {
			continue
		}
		stale := entry.StaleAt(nowMillis())
		gjson.ParseBytes(entry.Value).ForEach(func(_, rec gjson.Result) bool {
			if matches(rec, query, opts.Path, "title", "notes") {
				hits = append(hits, SearchHit{
					Kind:      "task",
					ID:        rec.Get("id").String(),
					ProjectID: projectID,
					Title:     rec.Get("title").String(),
					Status:    rec.Get("status").String(),
					Stale:     stale,
				})
			}
			return true
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Kind != hits[j].Kind {
			return hits[i].Kind < hits[j].Kind
		}
		return hits[i].Title < hits[j].Title
	})
	return hits, nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }

func matches(rec gjson.Result, query, path string, textFields ...string) bool {
	if path != "" {
		// Wrap the record so a gjson filter expression can run against it.
		if !gjson.Parse("["+rec.Raw+"]").Get("#("+path+")").Exists() {
			return false
		}
	}
	if query == "" {
		return true
	}
	for _, field := range textFields {
		if strings.Contains(strings.ToLower(rec.Get(field).String()), query) {
			return true
		}
	}
	return false
}
