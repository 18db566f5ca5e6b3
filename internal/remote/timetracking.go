package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// TimeEntryFilter narrows ListTimeEntries. From and To are ISO dates.
type TimeEntryFilter struct {
	TaskID string
	UserID string
	From   string
	To     string
}

func (f TimeEntryFilter) values() url.Values {
	q := url.Values{}
	setIf(q, "task_id", f.TaskID)
	setIf(q, "user_id", f.UserID)
	setIf(q, "from", f.From)
	setIf(q, "to", f.To)
	return q
}

// ListTimeEntries fetches time entries matching f.
func (c *Client) ListTimeEntries(ctx context.Context, f TimeEntryFilter) ([]model.TimeEntry, error) {
	raw, err := c.do(ctx, http.MethodGet, "/time-entries", f.values(), nil)
	if err != nil {
		return nil, fmt.Errorf("listing time entries: %w", err)
	}
	return normalize.TimeEntries(raw), nil
}

// CreateTimeEntry posts a manual entry and returns the canonical record.
func (c *Client) CreateTimeEntry(ctx context.Context, e model.TimeEntry) (model.TimeEntry, error) {
	payload, err := toWire(e, true)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("encoding time entry: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, "/time-entries", nil, payload)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("creating time entry: %w", err)
	}
	created := normalize.TimeEntry(entityOf(raw, "time_entry"))
	if created.ID == "" {
		return model.TimeEntry{}, fmt.Errorf("creating time entry: response has no id")
	}
	return created, nil
}

// DeleteTimeEntry removes a time entry.
func (c *Client) DeleteTimeEntry(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/time-entries/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting time entry %s: %w", id, err)
	}
	return nil
}

// StartTimer starts the server-side timer for a task and returns the
// server's record, including its start timestamp.
func (c *Client) StartTimer(ctx context.Context, taskID, projectID, description string) (model.ActiveTimer, error) {
	payload := map[string]any{
		"task_id":     taskID,
		"project_id":  projectID,
		"description": description,
	}
	raw, err := c.do(ctx, http.MethodPost, "/timer/start", nil, payload)
	if err != nil {
		return model.ActiveTimer{}, fmt.Errorf("starting timer: %w", err)
	}
	active := normalize.ActiveTimer(entityOf(raw, "timer"))
	if active.StartedAt.IsZero() {
		return model.ActiveTimer{}, fmt.Errorf("starting timer: response has no start time")
	}
	if active.TaskID == "" {
		active.TaskID = taskID
	}
	if active.ProjectID == "" {
		active.ProjectID = projectID
	}
	return active, nil
}

// StopTimer stops the running timer and returns the finalized entry with
// server-computed hours.
func (c *Client) StopTimer(ctx context.Context) (model.TimeEntry, error) {
	raw, err := c.do(ctx, http.MethodPost, "/timer/stop", nil, nil)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("stopping timer: %w", err)
	}
	entry := normalize.TimeEntry(entityOf(raw, "time_entry", "entry"))
	if entry.ID == "" {
		return model.TimeEntry{}, fmt.Errorf("stopping timer: response has no entry id")
	}
	return entry, nil
}

// ActiveTimer returns the running timer, or nil when none is running.
func (c *Client) ActiveTimer(ctx context.Context) (*model.ActiveTimer, error) {
	raw, err := c.do(ctx, http.MethodGet, "/timer/active", nil, nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching active timer: %w", err)
	}
	active := normalize.ActiveTimer(entityOf(raw, "timer"))
	if active.StartedAt.IsZero() {
		return nil, nil
	}
	return &active, nil
}
