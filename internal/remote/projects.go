package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// ListProjects fetches every project visible to the user.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	raw, err := c.do(ctx, http.MethodGet, "/projects", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return normalize.Projects(raw), nil
}

// CreateProject posts p and returns the canonical record.
func (c *Client) CreateProject(ctx context.Context, p model.Project) (model.Project, error) {
	payload, err := toWire(p, true)
	if err != nil {
		return model.Project{}, fmt.Errorf("encoding project: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, "/projects", nil, payload)
	if err != nil {
		return model.Project{}, fmt.Errorf("creating project: %w", err)
	}
	created := normalize.Project(entityOf(raw, "project"))
	if created.ID == "" {
		return model.Project{}, fmt.Errorf("creating project: response has no id")
	}
	return created, nil
}

// UpdateProject sends a partial update and returns the canonical record.
func (c *Client) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (model.Project, error) {
	payload, err := toWire(patch, false)
	if err != nil {
		return model.Project{}, fmt.Errorf("encoding project patch: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPut, "/projects/"+url.PathEscape(id), nil, payload)
	if err != nil {
		return model.Project{}, fmt.Errorf("updating project %s: %w", id, err)
	}
	return normalize.Project(entityOf(raw, "project")), nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/projects/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}
	return nil
}
