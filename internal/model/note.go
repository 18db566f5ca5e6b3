package model

import "time"

// Note is free-form text optionally linked to a task or a project.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	TaskID    string    `json:"taskId"`
	ProjectID string    `json:"projectId"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotePatch is a partial update. Nil fields are left untouched.
type NotePatch struct {
	Content   *string `json:"content,omitempty"`
	TaskID    *string `json:"taskId,omitempty"`
	ProjectID *string `json:"projectId,omitempty"`
}

// Apply merges the patch into n.
func (p NotePatch) Apply(n *Note) {
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.TaskID != nil {
		n.TaskID = *p.TaskID
	}
	if p.ProjectID != nil {
		n.ProjectID = *p.ProjectID
	}
}

// Patch returns a patch that sets every editable field to n's values.
func (n Note) Patch() NotePatch {
	content, task, project := n.Content, n.TaskID, n.ProjectID
	return NotePatch{Content: &content, TaskID: &task, ProjectID: &project}
}

// Comment is a discussion entry on a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
