package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// TaskFilter narrows ListTasks. Empty fields are not sent.
type TaskFilter struct {
	ProjectID  string
	Status     model.TaskStatus
	AssigneeID string
	Search     string
}

func (f TaskFilter) values() url.Values {
	q := url.Values{}
	setIf(q, "project_id", f.ProjectID)
	setIf(q, "status", string(f.Status))
	setIf(q, "assignee_id", f.AssigneeID)
	setIf(q, "search", f.Search)
	return q
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

// ListTasks fetches tasks matching f.
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	raw, err := c.do(ctx, http.MethodGet, "/tasks", f.values(), nil)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return normalize.Tasks(raw), nil
}

// CreateTask posts t and returns the server's canonical record.
func (c *Client) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	payload, err := toWire(t, true)
	if err != nil {
		return model.Task{}, fmt.Errorf("encoding task: %w", err)
	}
	delete(payload, "comment_count")

	raw, err := c.do(ctx, http.MethodPost, "/tasks", nil, payload)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	created := normalize.Task(entityOf(raw, "task"))
	if created.ID == "" {
		return model.Task{}, fmt.Errorf("creating task: response has no id")
	}
	return created, nil
}

// UpdateTask sends a partial update and returns the canonical record.
func (c *Client) UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	payload, err := toWire(patch, false)
	if err != nil {
		return model.Task{}, fmt.Errorf("encoding task patch: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), nil, payload)
	if err != nil {
		return model.Task{}, fmt.Errorf("updating task %s: %w", id, err)
	}
	return normalize.Task(entityOf(raw, "task")), nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}
