package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskwire/taskwire/internal/cache"
	"github.com/taskwire/taskwire/internal/transport"
	"github.com/taskwire/taskwire/internal/util/apierr"
)

// Cache key namespaces. Mutations invalidate by these exact keys.
const (
	keyProjectsList = "projects:list"

	keyProjectPrefix = "projects:get:"
	keyTasksPrefix   = "tasks:get-all:"
)

func keyProject(id string) string      { return keyProjectPrefix + id }
func keyProjectTasks(id string) string { return keyTasksPrefix + id }

// Options wires the access layer into the API client. TTLs are per
// namespace; the cache itself stays type-agnostic.
type Options struct {
	Transport *transport.Client
	Cache     *cache.Cache

	ProjectsTTL  time.Duration
	TasksTTL     time.Duration
	StaleIfError time.Duration
	NoCache      bool // force origin on every read
}

// Client performs project and task operations against the Taskwire API,
// reading through the cache and invalidating it on writes.
type Client struct {
	tc   *transport.Client
	rc   *cache.Cache
	opts Options
}

func New(opts Options) (*Client, error) {
	if opts.Transport == nil {
		return nil, apierr.NewValidation("transport", "must be configured")
	}
	if opts.Cache == nil {
		return nil, apierr.NewValidation("cache", "must be configured")
	}
	return &Client{tc: opts.Transport, rc: opts.Cache, opts: opts}, nil
}

// Meta reports where a read was served from, so the command layer can tell
// the user when data is stale.
type Meta struct {
	Source   cache.Source
	Stale    bool
	CachedAt int64
}

func (c *Client) fetch(ctx context.Context, key, path string, ttl time.Duration, out any) (Meta, error) {
	res, err := c.rc.Fetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return c.tc.GetJSON(ctx, path)
	}, cache.FetchOptions{
		TTL:          ttl,
		StaleIfError: c.opts.StaleIfError,
		ForceRefresh: c.opts.NoCache,
	})
	if err != nil {
		return Meta{}, err
	}
	if err := json.Unmarshal(res.Value, out); err != nil {
		return Meta{}, fmt.Errorf("decode cached response for %s: %w", key, err)
	}
	return Meta{Source: res.Source, Stale: res.Stale, CachedAt: res.CachedAt}, nil
}

// ListProjects returns all projects visible to the credential.
func (c *Client) ListProjects(ctx context.Context) ([]Project, Meta, error) {
	var projects []Project
	meta, err := c.fetch(ctx, keyProjectsList, "/v1/projects", c.opts.ProjectsTTL, &projects)
	return projects, meta, err
}

// GetProject returns one project by id.
func (c *Client) GetProject(ctx context.Context, id string) (*Project, Meta, error) {
	if err := requireID("project", id); err != nil {
		return nil, Meta{}, err
	}
	var project Project
	meta, err := c.fetch(ctx, keyProject(id), "/v1/projects/"+id, c.opts.ProjectsTTL, &project)
	if err != nil {
		return nil, Meta{}, notFound("project", id, err)
	}
	return &project, meta, nil
}

func (c *Client) CreateProject(ctx context.Context, input CreateProjectInput) (*Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apierr.NewValidation("name", "must not be empty")
	}
	resp, err := c.tc.Request(ctx, "POST", "/v1/projects", input)
	if err != nil {
		return nil, err
	}
	var project Project
	if err := resp.Decode(&project); err != nil {
		return nil, err
	}
	c.invalidate(keyProjectsList)
	return &project, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, input UpdateProjectInput) (*Project, error) {
	if err := requireID("project", id); err != nil {
		return nil, err
	}
	resp, err := c.tc.Request(ctx, "PATCH", "/v1/projects/"+id, input)
	if err != nil {
		return nil, notFound("project", id, err)
	}
	var project Project
	if err := resp.Decode(&project); err != nil {
		return nil, err
	}
	c.invalidate(keyProjectsList, keyProject(id))
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	if err := requireID("project", id); err != nil {
		return err
	}
	if _, err := c.tc.Request(ctx, "DELETE", "/v1/projects/"+id, nil); err != nil {
		return notFound("project", id, err)
	}
	c.invalidate(keyProjectsList, keyProject(id), keyProjectTasks(id))
	return nil
}

// ListTasks returns the tasks of one project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, Meta, error) {
	if err := requireID("project", projectID); err != nil {
		return nil, Meta{}, err
	}
	var tasks []Task
	meta, err := c.fetch(ctx, keyProjectTasks(projectID), "/v1/projects/"+projectID+"/tasks", c.opts.TasksTTL, &tasks)
	if err != nil {
		return nil, Meta{}, notFound("project", projectID, err)
	}
	return tasks, meta, nil
}

// GetTask reads one task directly from the origin. Single-task reads are
// not cached; only the per-project task list is.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	if err := requireID("task", id); err != nil {
		return nil, err
	}
	resp, err := c.tc.Request(ctx, "GET", "/v1/tasks/"+id, nil)
	if err != nil {
		return nil, notFound("task", id, err)
	}
	var task Task
	if err := resp.Decode(&task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CreateTask(ctx context.Context, projectID string, input CreateTaskInput) (*Task, error) {
	if err := requireID("project", projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, apierr.NewValidation("title", "must not be empty")
	}
	resp, err := c.tc.Request(ctx, "POST", "/v1/projects/"+projectID+"/tasks", input)
	if err != nil {
		return nil, notFound("project", projectID, err)
	}
	var task Task
	if err := resp.Decode(&task); err != nil {
		return nil, err
	}
	c.invalidate(keyProjectTasks(projectID))
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, projectID, id string, input UpdateTaskInput) (*Task, error) {
	if err := requireID("project", projectID); err != nil {
		return nil, err
	}
	if err := requireID("task", id); err != nil {
		return nil, err
	}
	resp, err := c.tc.Request(ctx, "PATCH", "/v1/tasks/"+id, input)
	if err != nil {
		return nil, notFound("task", id, err)
	}
	var task Task
	if err := resp.Decode(&task); err != nil {
		return nil, err
	}
	c.invalidate(keyProjectTasks(projectID))
	return &task, nil
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, projectID, id string) (*Task, error) {
	status := StatusDone
	return c.UpdateTask(ctx, projectID, id, UpdateTaskInput{Status: &status})
}

func (c *Client) DeleteTask(ctx context.Context, projectID, id string) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}
	if err := requireID("task", id); err != nil {
		return err
	}
	if _, err := c.tc.Request(ctx, "DELETE", "/v1/tasks/"+id, nil); err != nil {
		return notFound("task", id, err)
	}
	c.invalidate(keyProjectTasks(projectID))
	return nil
}

// invalidate drops keys best-effort: a failed invalidation must not turn a
// successful mutation into an error. The next read re-fetches anyway once
// the entry goes stale.
func (c *Client) invalidate(keys ...string) {
	for _, key := range keys {
		_ = c.rc.Invalidate(key)
	}
}

func requireID(resource, id string) error {
	if strings.TrimSpace(id) == "" {
		return apierr.NewValidation(resource+" id", "must not be empty")
	}
	return nil
}

// notFound rewrites a 404 into the typed not-found error carrying the
// resource context the transport layer does not have.
func notFound(resource, id string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *apierr.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
		return &apierr.NotFoundError{Resource: resource, ID: id}
	}
	return err
}
