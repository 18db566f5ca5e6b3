package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
)

// CurrentUser returns the signed-in user. A 401 or 404 means "anonymous"
// and yields (nil, nil) rather than an error.
func (c *Client) CurrentUser(ctx context.Context) (*model.CurrentUser, error) {
	raw, err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil)
	if err != nil {
		if IsAuthError(err) || IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	u := normalize.CurrentUser(entityOf(raw, "user"))
	if u.ID == "" {
		return nil, nil
	}
	return &u, nil
}

// LoginURL returns the redirect URL that starts an OAuth login with the
// given provider (for example "microsoft").
func (c *Client) LoginURL(provider string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if provider == "" {
		return "", errors.New("login provider is required")
	}
	return c.baseURL + "/auth/login/" + url.PathEscape(provider), nil
}

// Logout ends the server session. The cookie jar drops the session cookie
// when the backend expires it.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// ListTeamMembers fetches the team roster.
func (c *Client) ListTeamMembers(ctx context.Context) ([]model.TeamMember, error) {
	raw, err := c.do(ctx, http.MethodGet, "/team-members", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing team members: %w", err)
	}
	return normalize.TeamMembers(raw), nil
}

// ListNotifications fetches the user's notifications.
func (c *Client) ListNotifications(ctx context.Context) ([]model.Notification, error) {
	raw, err := c.do(ctx, http.MethodGet, "/notifications", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return normalize.Notifications(raw), nil
}

// MarkNotificationRead flags a notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := "/notifications/" + url.PathEscape(id) + "/read"
	if _, err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}
