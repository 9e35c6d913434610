// Package api implements the Taskwire project and task operations on top of
// the transport client and result cache.
package api

// Project is a Taskwire project as returned by the remote API.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TaskCount   int    `json:"task_count,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Task statuses used by the API. Complete transitions a task to StatusDone.
const (
	StatusOpen = "open"
	StatusDone = "done"
)

// Task is a single task within a project.
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status,omitempty"`
	Priority  int    `json:"priority,omitempty"`
	DueDate   string `json:"due_date,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// CreateProjectInput carries the writable project fields.
type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectInput uses pointers so omitted fields are left untouched by
// the server.
type UpdateProjectInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateTaskInput struct {
	Title    string `json:"title"`
	Notes    string `json:"notes,omitempty"`
	Priority int    `json:"priority,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
}

type UpdateTaskInput struct {
	Title    *string `json:"title,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	Status   *string `json:"status,omitempty"`
	Priority *int    `json:"priority,omitempty"`
	DueDate  *string `json:"due_date,omitempty"`
}
