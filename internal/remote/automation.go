package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// ListAutomationRules fetches rules, optionally for one project.
func (c *Client) ListAutomationRules(ctx context.Context, projectID string) ([]model.AutomationRule, error) {
	q := url.Values{}
	setIf(q, "project_id", projectID)
	raw, err := c.do(ctx, http.MethodGet, "/automation-rules", q, nil)
	if err != nil {
		return nil, fmt.Errorf("listing automation rules: %w", err)
	}
	return normalize.AutomationRules(raw), nil
}

// CreateAutomationRule posts r and returns the canonical record.
func (c *Client) CreateAutomationRule(ctx context.Context, r model.AutomationRule) (model.AutomationRule, error) {
	payload, err := toWire(r, true)
	if err != nil {
		return model.AutomationRule{}, fmt.Errorf("encoding automation rule: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPost, "/automation-rules", nil, payload)
	if err != nil {
		return model.AutomationRule{}, fmt.Errorf("creating automation rule: %w", err)
	}
	created := normalize.AutomationRule(entityOf(raw, "rule"))
	if created.ID == "" {
		return model.AutomationRule{}, fmt.Errorf("creating automation rule: response has no id")
	}
	return created, nil
}

// UpdateAutomationRule sends a partial update and returns the canonical
// record.
func (c *Client) UpdateAutomationRule(ctx context.Context, id string, patch model.RulePatch) (model.AutomationRule, error) {
	payload, err := toWire(patch, false)
	if err != nil {
		return model.AutomationRule{}, fmt.Errorf("encoding rule patch: %w", err)
	}
	raw, err := c.do(ctx, http.MethodPut, "/automation-rules/"+url.PathEscape(id), nil, payload)
	if err != nil {
		return model.AutomationRule{}, fmt.Errorf("updating automation rule %s: %w", id, err)
	}
	return normalize.AutomationRule(entityOf(raw, "rule")), nil
}

// DeleteAutomationRule removes a rule.
func (c *Client) DeleteAutomationRule(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/automation-rules/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting automation rule %s: %w", id, err)
	}
	return nil
}
