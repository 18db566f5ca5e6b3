package model

import "sort"

// TaskStatus is the kanban column a task sits in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists the kanban columns in board order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Attachment is metadata for a file attached to a task. The bytes live on
// the backend.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Subtask is a checklist entry owned by a task.
type Subtask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Task is a unit of work on the kanban board.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`

	// AssigneeIDs holds one or more team member ids.
	AssigneeIDs []string `json:"assigneeIds"`

	ProjectID string `json:"projectId"`

	// DueDate is an ISO date (YYYY-MM-DD) or empty.
	DueDate string `json:"dueDate"`

	Labels      []string     `json:"labels"`
	Attachments []Attachment `json:"attachments"`
	Subtasks    []Subtask    `json:"subtasks"`

	// BlockedBy never contains the task's own id.
	BlockedBy []string `json:"blockedBy"`

	CommentCount int `json:"commentCount"`

	// SortOrder is unique within a status column; larger sorts later.
	SortOrder int `json:"sortOrder"`
}

// SetBlockedBy replaces the blocking set, dropping self references,
// blanks and duplicates.
func (t *Task) SetBlockedBy(ids []string) {
	t.BlockedBy = FilterBlockedBy(t.ID, ids)
}

// FilterBlockedBy returns ids without selfID, empty strings or repeats.
// The result is never nil.
func FilterBlockedBy(selfID string, ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || id == selfID || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// IsDone reports whether the task is in the done column.
func (t Task) IsDone() bool { return t.Status == StatusDone }

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Status      *TaskStatus `json:"status,omitempty"`
	Priority    *Priority   `json:"priority,omitempty"`
	AssigneeIDs []string    `json:"assigneeIds,omitempty"`
	ProjectID   *string     `json:"projectId,omitempty"`
	DueDate     *string     `json:"dueDate,omitempty"`
	Labels      []string    `json:"labels,omitempty"`
	Subtasks    []Subtask   `json:"subtasks,omitempty"`
	BlockedBy   []string    `json:"blockedBy,omitempty"`
	SortOrder   *int        `json:"sortOrder,omitempty"`
}

// Apply merges the patch into t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil && p.Status.Valid() {
		t.Status = *p.Status
	}
	if p.Priority != nil && p.Priority.Valid() {
		t.Priority = *p.Priority
	}
	if p.AssigneeIDs != nil {
		t.AssigneeIDs = append([]string{}, p.AssigneeIDs...)
	}
	if p.ProjectID != nil {
		t.ProjectID = *p.ProjectID
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Labels != nil {
		t.Labels = append([]string{}, p.Labels...)
	}
	if p.Subtasks != nil {
		t.Subtasks = append([]Subtask{}, p.Subtasks...)
	}
	if p.BlockedBy != nil {
		t.SetBlockedBy(p.BlockedBy)
	}
	if p.SortOrder != nil {
		t.SortOrder = *p.SortOrder
	}
}

// TaskColumns groups tasks by status, each column ordered by SortOrder.
// Every known status has an entry, possibly empty.
func TaskColumns(tasks []Task) map[TaskStatus][]Task {
	cols := make(map[TaskStatus][]Task, len(TaskStatuses))
	for _, s := range TaskStatuses {
		cols[s] = []Task{}
	}
	for _, t := range tasks {
		cols[t.Status] = append(cols[t.Status], t)
	}
	for s := range cols {
		col := cols[s]
		sort.SliceStable(col, func(i, j int) bool {
			return col[i].SortOrder < col[j].SortOrder
		})
	}
	return cols
}

// NextSortOrder returns one past the largest sort order in the column.
func NextSortOrder(tasks []Task, status TaskStatus) int {
	max := 0
	for _, t := range tasks {
		if t.Status == status && t.SortOrder > max {
			max = t.SortOrder
		}
	}
	return max + 1
}

// Patch returns a patch that sets every editable field to t's values.
// Used to push a full local copy to the backend.
func (t Task) Patch() TaskPatch {
	status, priority := t.Status, t.Priority
	title, desc, project, due, order := t.Title, t.Description, t.ProjectID, t.DueDate, t.SortOrder
	return TaskPatch{
		Title:       &title,
		Description: &desc,
		Status:      &status,
		Priority:    &priority,
		AssigneeIDs: append([]string{}, t.AssigneeIDs...),
		ProjectID:   &project,
		DueDate:     &due,
		Labels:      append([]string{}, t.Labels...),
		Subtasks:    append([]Subtask{}, t.Subtasks...),
		BlockedBy:   append([]string{}, t.BlockedBy...),
		SortOrder:   &order,
	}
}
