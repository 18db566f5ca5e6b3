package replica

import (
	"context"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
)

// Backend is the remote surface the replica mirrors. *remote.Client
// implements it.
type Backend interface {
	ListTasks(ctx context.Context, f remote.TaskFilter) ([]model.Task, error)
	CreateTask(ctx context.Context, t model.Task) (model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error

	ListProjects(ctx context.Context) ([]model.Project, error)
	CreateProject(ctx context.Context, p model.Project) (model.Project, error)
	UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (model.Project, error)
	DeleteProject(ctx context.Context, id string) error

	ListTimeEntries(ctx context.Context, f remote.TimeEntryFilter) ([]model.TimeEntry, error)
	CreateTimeEntry(ctx context.Context, e model.TimeEntry) (model.TimeEntry, error)
	DeleteTimeEntry(ctx context.Context, id string) error

	ListAutomationRules(ctx context.Context, projectID string) ([]model.AutomationRule, error)
	CreateAutomationRule(ctx context.Context, r model.AutomationRule) (model.AutomationRule, error)
	UpdateAutomationRule(ctx context.Context, id string, patch model.RulePatch) (model.AutomationRule, error)
	DeleteAutomationRule(ctx context.Context, id string) error

	ListNotes(ctx context.Context, taskID, projectID string) ([]model.Note, error)
	CreateNote(ctx context.Context, n model.Note) (model.Note, error)
	UpdateNote(ctx context.Context, id string, patch model.NotePatch) (model.Note, error)
	DeleteNote(ctx context.Context, id string) error

	ListTeamMembers(ctx context.Context) ([]model.TeamMember, error)
	CurrentUser(ctx context.Context) (*model.CurrentUser, error)
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

var _ Backend = (*remote.Client)(nil)
