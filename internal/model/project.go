package model

import "math"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

// Project is a grouping container for related tasks.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`

	// Color is a theme color token such as "blue" or "emerald".
	Color string `json:"color"`

	StartDate string   `json:"startDate"`
	DueDate   string   `json:"dueDate"`
	MemberIDs []string `json:"memberIds"`

	// Progress is the stored fallback used when the project has no tasks.
	Progress int `json:"progress"`
}

// EffectiveProgress derives completion from the project's tasks when any
// exist and falls back to the stored value otherwise. Always 0..100.
func (p Project) EffectiveProgress(tasks []Task) int {
	total, done := 0, 0
	for _, t := range tasks {
		if t.ProjectID != p.ID {
			continue
		}
		total++
		if t.IsDone() {
			done++
		}
	}
	if total == 0 {
		return ClampProgress(p.Progress)
	}
	return int(math.Round(float64(done) * 100 / float64(total)))
}

// ClampProgress bounds v to 0..100.
func ClampProgress(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ProjectPatch is a partial update. Nil fields are left untouched.
type ProjectPatch struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Status      *ProjectStatus `json:"status,omitempty"`
	Color       *string        `json:"color,omitempty"`
	StartDate   *string        `json:"startDate,omitempty"`
	DueDate     *string        `json:"dueDate,omitempty"`
	MemberIDs   []string       `json:"memberIds,omitempty"`
	Progress    *int           `json:"progress,omitempty"`
}

// Apply merges the patch into p.
func (pp ProjectPatch) Apply(p *Project) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Status != nil && pp.Status.Valid() {
		p.Status = *pp.Status
	}
	if pp.Color != nil {
		p.Color = *pp.Color
	}
	if pp.StartDate != nil {
		p.StartDate = *pp.StartDate
	}
	if pp.DueDate != nil {
		p.DueDate = *pp.DueDate
	}
	if pp.MemberIDs != nil {
		p.MemberIDs = append([]string{}, pp.MemberIDs...)
	}
	if pp.Progress != nil {
		p.Progress = ClampProgress(*pp.Progress)
	}
}

// Patch returns a patch that sets every editable field to p's values.
func (p Project) Patch() ProjectPatch {
	name, desc, status, color := p.Name, p.Description, p.Status, p.Color
	start, due, progress := p.StartDate, p.DueDate, p.Progress
	return ProjectPatch{
		Name:        &name,
		Description: &desc,
		Status:      &status,
		Color:       &color,
		StartDate:   &start,
		DueDate:     &due,
		MemberIDs:   append([]string{}, p.MemberIDs...),
		Progress:    &progress,
	}
}
