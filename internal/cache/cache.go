// Package cache persists the replica's collections to a store.Store and
// rehydrates them on startup.
//
// Every collection lives whole under one namespaced key and every save
// replaces it in a single write, so an interrupted session loses at most
// the in-flight mutation. Loading runs each namespace through the
// normalizer; empty or unreadable namespaces fall back to the bundled
// default dataset.
package cache

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/normalize"
	"github.com/nhle/teamboard/internal/store"
)

// Namespace suffixes. The full key is "<namespace>.<suffix>".
const (
	keyTheme           = "theme"
	keyCurrentUser     = "currentUser"
	keyTasks           = "tasks"
	keyProjects        = "projects"
	keyTeamMembers     = "teamMembers"
	keySelectedProject = "selectedProject"
	keyTimeEntries     = "timeEntries"
	keyRules           = "automationRules"
	keyNotes           = "notes"
)

//go:embed defaults/seed.json
var seedJSON []byte

// Snapshot is everything the replica needs to start from.
type Snapshot struct {
	Theme           string
	CurrentUser     *model.CurrentUser
	Tasks           []model.Task
	Projects        []model.Project
	Members         []model.TeamMember
	SelectedProject string
	TimeEntries     []model.TimeEntry
	Rules           []model.AutomationRule
	Notes           []model.Note
}

// Defaults returns the bundled dataset.
func Defaults() Snapshot {
	seed, _ := normalize.Decode(seedJSON).(map[string]any)
	return Snapshot{
		Tasks:       normalize.Tasks(seed["tasks"]),
		Projects:    normalize.Projects(seed["projects"]),
		Members:     normalize.TeamMembers(seed["teamMembers"]),
		TimeEntries: []model.TimeEntry{},
		Rules:       []model.AutomationRule{},
		Notes:       []model.Note{},
	}
}

// Cache is the typed view over a store.Store.
type Cache struct {
	store     store.Store
	namespace string
	logger    *log.Logger
}

// New returns a Cache writing under namespace.
func New(s store.Store, namespace string, logger *log.Logger) *Cache {
	return &Cache{store: s, namespace: namespace, logger: logging.OrDiscard(logger)}
}

// Key returns the full storage key for a namespace suffix.
func (c *Cache) Key(suffix string) string {
	return c.namespace + "." + suffix
}

// read returns the decoded value under suffix, or nil when the namespace is
// empty or unreadable.
func (c *Cache) read(ctx context.Context, suffix string) any {
	data, err := c.store.Get(ctx, c.Key(suffix))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.logger.Warn("cache read failed, using defaults", "key", c.Key(suffix), "err", err)
		}
		return nil
	}
	v := normalize.Decode(data)
	if v == nil {
		c.logger.Warn("cache entry unreadable, using defaults", "key", c.Key(suffix))
	}
	return v
}

// Load rehydrates a Snapshot. It never fails: every namespace that cannot
// be read is replaced by its default.
func (c *Cache) Load(ctx context.Context) Snapshot {
	def := Defaults()
	snap := def

	if v := c.read(ctx, keyTasks); v != nil {
		snap.Tasks = normalize.Tasks(v)
	}
	if v := c.read(ctx, keyProjects); v != nil {
		snap.Projects = normalize.Projects(v)
	}
	if v := c.read(ctx, keyTeamMembers); v != nil {
		snap.Members = normalize.TeamMembers(v)
	}
	if v := c.read(ctx, keyTimeEntries); v != nil {
		snap.TimeEntries = normalize.TimeEntries(v)
	}
	if v := c.read(ctx, keyRules); v != nil {
		snap.Rules = normalize.AutomationRules(v)
	}
	if v := c.read(ctx, keyNotes); v != nil {
		snap.Notes = normalize.Notes(v)
	}
	if v, ok := c.read(ctx, keyTheme).(string); ok {
		snap.Theme = v
	}
	if v, ok := c.read(ctx, keySelectedProject).(string); ok {
		snap.SelectedProject = v
	}
	if v, ok := c.read(ctx, keyCurrentUser).(map[string]any); ok {
		if u := normalize.CurrentUser(v); u.ID != "" {
			snap.CurrentUser = &u
		}
	}
	return snap
}

func (c *Cache) write(ctx context.Context, suffix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", suffix, err)
	}
	if err := c.store.Put(ctx, c.Key(suffix), data); err != nil {
		return fmt.Errorf("saving %s: %w", suffix, err)
	}
	return nil
}

// SaveTasks replaces the persisted task collection.
func (c *Cache) SaveTasks(ctx context.Context, tasks []model.Task) error {
	return c.write(ctx, keyTasks, tasks)
}

// SaveProjects replaces the persisted project collection.
func (c *Cache) SaveProjects(ctx context.Context, projects []model.Project) error {
	return c.write(ctx, keyProjects, projects)
}

// SaveMembers replaces the persisted team member collection.
func (c *Cache) SaveMembers(ctx context.Context, members []model.TeamMember) error {
	return c.write(ctx, keyTeamMembers, members)
}

// SaveTimeEntries replaces the persisted time entries.
func (c *Cache) SaveTimeEntries(ctx context.Context, entries []model.TimeEntry) error {
	return c.write(ctx, keyTimeEntries, entries)
}

// SaveRules replaces the persisted automation rules.
func (c *Cache) SaveRules(ctx context.Context, rules []model.AutomationRule) error {
	return c.write(ctx, keyRules, rules)
}

// SaveNotes replaces the persisted notes.
func (c *Cache) SaveNotes(ctx context.Context, notes []model.Note) error {
	return c.write(ctx, keyNotes, notes)
}

// SaveTheme persists the theme preference.
func (c *Cache) SaveTheme(ctx context.Context, theme string) error {
	return c.write(ctx, keyTheme, theme)
}

// SaveSelectedProject persists the selected project id.
func (c *Cache) SaveSelectedProject(ctx context.Context, id string) error {
	return c.write(ctx, keySelectedProject, id)
}

// SaveCurrentUser persists the signed-in user. nil signs out.
func (c *Cache) SaveCurrentUser(ctx context.Context, u *model.CurrentUser) error {
	if u == nil {
		if err := c.store.Delete(ctx, c.Key(keyCurrentUser)); err != nil {
			return fmt.Errorf("clearing current user: %w", err)
		}
		return nil
	}
	return c.write(ctx, keyCurrentUser, u)
}
