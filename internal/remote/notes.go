package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// ListNotes fetches notes. Empty ids mean no filter.
func (c *Client) ListNotes(ctx context.Context, taskID, projectID string) ([]model.Note, error) {
	q := url.Values{}
	setIf(q, "task_id", taskID)
	setIf(q, "project_id", projectID)
	raw, err := c.do(ctx, http.MethodGet, "/notes", q, nil)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return normalize.Notes(raw), nil
}

// CreateNote posts n and returns the canonical record. Timestamps are
// assigned by the backend.
func (c *Client) CreateNote(ctx context.Context, n model.Note) (model.Note, error) {
	payload, err := toWire(n, true)
	if err != nil {
		return model.Note{}, fmt.Errorf("encoding note: %w", err)
	}
	delete(payload, "created_at")
	delete(payload, "updated_at")

	raw, err := c.do(ctx, http.MethodPost, "/notes", nil, payload)
	if err != nil {
		return model.Note{}, fmt.Errorf("creating note: %w", err)
	}
	created := normalize.Note(entityOf(raw, "note"))
	if created.ID == "" {
		return model.Note{}, fmt.Errorf("creating note: response has no id")
	}
	return created, nil
}

// UpdateNote sends a partial update and returns the canonical record.
func (c *Client) UpdateNote(ctx context.Context, id string, patch model.NotePatch) (model.Note, error) {
	payload, err := toWire(patch, false)
	if err != nil {
		return model.Note{}, fmt.Errorf("encoding note patch: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(id), nil, payload)
	if err != nil {
		return model.Note{}, fmt.Errorf("updating note %s: %w", id, err)
	}
	return normalize.Note(entityOf(raw, "note")), nil
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	return nil
}

// ListComments fetches the discussion on a task.
func (c *Client) ListComments(ctx context.Context, taskID string) ([]model.Comment, error) {
	raw, err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/comments", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing comments on task %s: %w", taskID, err)
	}
	return normalize.Comments(raw), nil
}

// CreateComment posts a comment on a task.
func (c *Client) CreateComment(ctx context.Context, taskID, body string) (model.Comment, error) {
	path := "/tasks/" + url.PathEscape(taskID) + "/comments"
	raw, err := c.do(ctx, http.MethodPost, path, nil, map[string]any{"body": body})
	if err != nil {
		return model.Comment{}, fmt.Errorf("commenting on task %s: %w", taskID, err)
	}
	created := normalize.Comment(entityOf(raw, "comment"))
	if created.TaskID == "" {
		created.TaskID = taskID
	}
	return created, nil
}
