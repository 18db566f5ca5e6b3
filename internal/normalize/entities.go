package normalize

import (
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nhle/teamboard/internal/model"
)

var taskStatusAliases = map[string]string{
	"review":    string(model.StatusInReview),
	"inreview":  string(model.StatusInReview),
	"completed": string(model.StatusDone),
	"complete":  string(model.StatusDone),
	"open":      string(model.StatusTodo),
	"doing":     string(model.StatusInProgress),
}

var projectStatusAliases = map[string]string{
	"hold":     string(model.ProjectOnHold),
	"paused":   string(model.ProjectOnHold),
	"done":     string(model.ProjectCompleted),
	"complete": string(model.ProjectCompleted),
}

var roleAliases = map[string]string{
	"pm":      string(model.RoleProjectManager),
	"manager": string(model.RoleProjectManager),
}

// Task coerces raw into a Task. Unknown status defaults to todo, unknown
// priority to medium; blockedBy never contains the task's own id.
func Task(raw any) model.Task {
	r, _ := asRecord(raw)

	t := model.Task{
		ID:           r.id("id"),
		Title:        r.str("title"),
		Description:  r.str("description"),
		Status:       model.TaskStatus(enum(r.str("status"), taskStatusAliases)),
		Priority:     model.Priority(enum(r.str("priority"), nil)),
		AssigneeIDs:  taskAssignees(r),
		ProjectID:    r.id("projectId", "project_id", "project"),
		DueDate:      r.date("dueDate", "due_date"),
		Labels:       r.strs("labels", "tags"),
		Attachments:  attachments(r.list("attachments")),
		Subtasks:     subtasks(r.list("subtasks", "sub_tasks")),
		CommentCount: r.count("commentCount", "comment_count", "comments_count", "comments"),
		SortOrder:    r.integer("sortOrder", "sort_order", "position", "order"),
	}
	if !t.Status.Valid() {
		t.Status = model.StatusTodo
	}
	if !t.Priority.Valid() {
		t.Priority = model.PriorityMedium
	}
	t.SetBlockedBy(r.ids("blockedBy", "blocked_by"))
	return t
}

// taskAssignees accepts an id list, a list of member objects, or a single
// assignee id.
func taskAssignees(r record) []string {
	ids := r.ids("assigneeIds", "assignee_ids", "assignees")
	if len(ids) > 0 {
		return ids
	}
	if single := r.id("assigneeId", "assignee_id", "assignee"); single != "" {
		return []string{single}
	}
	return []string{}
}

func attachments(list []any) []model.Attachment {
	out := make([]model.Attachment, 0, len(list))
	for _, item := range list {
		if !conforms(attachmentShape, item) {
			continue
		}
		r, _ := asRecord(item)
		out = append(out, model.Attachment{
			ID:   r.id("id"),
			Name: r.str("name"),
			URL:  r.str("url"),
			Size: int64(r.float("size")),
			Type: r.str("type", "mime_type", "content_type"),
		})
	}
	return out
}

func subtasks(list []any) []model.Subtask {
	out := make([]model.Subtask, 0, len(list))
	for _, item := range list {
		if !conforms(subtaskShape, item) {
			continue
		}
		r, _ := asRecord(item)
		out = append(out, model.Subtask{
			ID:        r.id("id"),
			Title:     r.str("title"),
			Completed: r.flag("completed", "done", "is_completed"),
		})
	}
	return out
}

// Project coerces raw into a Project. Unknown status defaults to active;
// progress is clamped to 0..100.
func Project(raw any) model.Project {
	r, _ := asRecord(raw)

	p := model.Project{
		ID:          r.id("id"),
		Name:        r.str("name"),
		Description: r.str("description"),
		Status:      model.ProjectStatus(enum(r.str("status"), projectStatusAliases)),
		Color:       r.str("color"),
		StartDate:   r.date("startDate", "start_date"),
		DueDate:     r.date("dueDate", "due_date", "end_date"),
		MemberIDs:   r.ids("memberIds", "member_ids", "members"),
		Progress:    model.ClampProgress(r.integer("progress")),
	}
	if !p.Status.Valid() {
		p.Status = model.ProjectActive
	}
	return p
}

// TeamMember coerces raw into a TeamMember. Unknown role defaults to
// member, unknown presence to offline.
func TeamMember(raw any) model.TeamMember {
	r, _ := asRecord(raw)

	m := model.TeamMember{
		ID:     r.id("id"),
		Name:   r.str("name", "full_name", "display_name"),
		Email:  r.str("email"),
		Role:   model.Role(enum(r.str("role"), roleAliases)),
		Status: model.Presence(enum(r.str("status", "presence"), nil)),
	}
	if !m.Role.Valid() {
		m.Role = model.RoleMember
	}
	if !m.Status.Valid() {
		m.Status = model.PresenceOffline
	}
	return m
}

// CurrentUser coerces raw into a CurrentUser.
func CurrentUser(raw any) model.CurrentUser {
	r, _ := asRecord(raw)

	u := model.CurrentUser{
		ID:    r.id("id"),
		Name:  r.str("name", "full_name", "display_name"),
		Email: r.str("email"),
		Role:  model.Role(enum(r.str("role"), roleAliases)),
	}
	if !u.Role.Valid() {
		u.Role = model.RoleMember
	}
	return u
}

// TimeEntry coerces raw into a TimeEntry. Negative hours become 0.
func TimeEntry(raw any) model.TimeEntry {
	r, _ := asRecord(raw)

	e := model.TimeEntry{
		ID:          r.id("id"),
		TaskID:      r.id("taskId", "task_id", "task"),
		UserID:      r.id("userId", "user_id", "user"),
		Hours:       model.RoundHours(r.float("hours")),
		Date:        r.date("date", "entry_date"),
		Description: r.str("description"),
		Billable:    r.flag("billable", "is_billable"),
	}
	if e.Hours < 0 {
		e.Hours = 0
	}
	return e
}

// AutomationRule coerces raw into an AutomationRule. Unknown trigger
// defaults to task_created, unknown action to notify.
func AutomationRule(raw any) model.AutomationRule {
	r, _ := asRecord(raw)

	rule := model.AutomationRule{
		ID:           r.id("id"),
		Name:         r.str("name"),
		Trigger:      model.TriggerKind(enum(r.str("trigger", "trigger_type"), nil)),
		TriggerValue: r.str("triggerValue", "trigger_value"),
		Action:       model.ActionKind(enum(r.str("action", "action_type"), nil)),
		ActionValue:  r.str("actionValue", "action_value"),
		Enabled:      r.flag("enabled", "is_enabled", "is_active"),
		ProjectID:    r.id("projectId", "project_id", "project"),
	}
	if !rule.Trigger.Valid() {
		rule.Trigger = model.TriggerTaskCreated
	}
	if !rule.Action.Valid() {
		rule.Action = model.ActionNotify
	}
	return rule
}

// Note coerces raw into a Note.
func Note(raw any) model.Note {
	r, _ := asRecord(raw)

	return model.Note{
		ID:        r.id("id"),
		Content:   r.str("content", "body"),
		TaskID:    r.id("taskId", "task_id", "task"),
		ProjectID: r.id("projectId", "project_id", "project"),
		AuthorID:  r.id("authorId", "author_id", "author", "created_by"),
		CreatedAt: r.timestamp("createdAt", "created_at"),
		UpdatedAt: r.timestamp("updatedAt", "updated_at"),
	}
}

// Comment coerces raw into a Comment.
func Comment(raw any) model.Comment {
	r, _ := asRecord(raw)

	return model.Comment{
		ID:        r.id("id"),
		TaskID:    r.id("taskId", "task_id", "task"),
		AuthorID:  r.id("authorId", "author_id", "author", "user"),
		Body:      r.str("body", "content", "text"),
		CreatedAt: r.timestamp("createdAt", "created_at"),
	}
}

// Notification coerces raw into a Notification.
func Notification(raw any) model.Notification {
	r, _ := asRecord(raw)

	return model.Notification{
		ID:        r.id("id"),
		Kind:      r.str("kind", "type"),
		Message:   r.str("message", "title", "body"),
		TaskID:    r.id("taskId", "task_id", "task"),
		Read:      r.flag("read", "is_read"),
		CreatedAt: r.timestamp("createdAt", "created_at"),
	}
}

// collect filters raw elements by shape and converts the survivors.
func collect[T any](raw any, shape *jsonschema.Schema, convert func(any) T) []T {
	list := unwrapList(raw)
	out := make([]T, 0, len(list))
	for _, item := range list {
		if !conforms(shape, item) {
			continue
		}
		out = append(out, convert(item))
	}
	return out
}

// Tasks parses a task collection, dropping malformed elements.
func Tasks(raw any) []model.Task { return collect(raw, taskShape, Task) }

// Projects parses a project collection, dropping malformed elements.
func Projects(raw any) []model.Project { return collect(raw, projectShape, Project) }

// TeamMembers parses a member collection, dropping malformed elements.
func TeamMembers(raw any) []model.TeamMember { return collect(raw, memberShape, TeamMember) }

// TimeEntries parses a time entry collection, dropping malformed elements.
func TimeEntries(raw any) []model.TimeEntry { return collect(raw, timeEntryShape, TimeEntry) }

// AutomationRules parses a rule collection, dropping malformed elements.
func AutomationRules(raw any) []model.AutomationRule {
	return collect(raw, ruleShape, AutomationRule)
}

// Notes parses a note collection, dropping malformed elements.
func Notes(raw any) []model.Note { return collect(raw, noteShape, Note) }

// Comments parses a comment collection, dropping malformed elements.
func Comments(raw any) []model.Comment { return collect(raw, commentShape, Comment) }

// Notifications parses a notification collection, dropping malformed
// elements.
func Notifications(raw any) []model.Notification {
	return collect(raw, notificationShape, Notification)
}

// ActiveTimer coerces raw into an ActiveTimer. A record without a start
// time yields the zero value.
func ActiveTimer(raw any) model.ActiveTimer {
	r, _ := asRecord(raw)

	return model.ActiveTimer{
		TaskID:      r.id("taskId", "task_id", "task"),
		ProjectID:   r.id("projectId", "project_id", "project"),
		Description: r.str("description"),
		StartedAt:   r.timestamp("startedAt", "started_at", "start_time", "startTime"),
	}
}

// ReportRow coerces one aggregated report bucket. key is used when the
// record does not name its own bucket (breakdown maps key rows by group).
func ReportRow(raw any, key string) model.ReportRow {
	r, _ := asRecord(raw)
	if r == nil {
		// Breakdown maps may carry bare hour totals.
		f, _ := number(raw)
		return model.ReportRow{Key: key, Label: key, Hours: model.RoundHours(f)}
	}

	row := model.ReportRow{
		Key:           r.id("key", "group", "id"),
		Label:         r.str("label", "name", "title"),
		Hours:         model.RoundHours(r.float("hours", "total_hours", "totalHours")),
		BillableHours: model.RoundHours(r.float("billableHours", "billable_hours")),
		Entries:       r.count("entries", "entry_count", "count"),
	}
	if row.Key == "" {
		row.Key = key
	}
	if row.Label == "" {
		row.Label = row.Key
	}
	return row
}
