package model

import (
	"reflect"
	"testing"
)

func TestFilterBlockedBy(t *testing.T) {
	tests := []struct {
		name string
		self string
		in   []string
		want []string
	}{
		{"nil input", "t1", nil, []string{}},
		{"drops self", "t1", []string{"t1", "t2"}, []string{"t2"}},
		{"drops blanks and repeats", "t1", []string{"", "t3", "t3", "t2"}, []string{"t3", "t2"}},
		{"only self", "t1", []string{"t1", "t1"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterBlockedBy(tt.self, tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterBlockedBy(%q, %v) = %v, want %v", tt.self, tt.in, got, tt.want)
			}
		})
	}
}

func TestTaskPatchApply(t *testing.T) {
	task := Task{ID: "t1", Title: "Old", Status: StatusTodo, Priority: PriorityLow}

	status := StatusInProgress
	bogus := Priority("whenever")
	title := "New"
	TaskPatch{
		Title:     &title,
		Status:    &status,
		Priority:  &bogus,
		BlockedBy: []string{"t1", "t9"},
	}.Apply(&task)

	if task.Title != "New" {
		t.Errorf("Title: got %q, want New", task.Title)
	}
	if task.Status != StatusInProgress {
		t.Errorf("Status: got %q, want in_progress", task.Status)
	}
	if task.Priority != PriorityLow {
		t.Errorf("invalid priority should be ignored, got %q", task.Priority)
	}
	if !reflect.DeepEqual(task.BlockedBy, []string{"t9"}) {
		t.Errorf("BlockedBy: got %v, want [t9]", task.BlockedBy)
	}
}

func TestTaskColumns(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: StatusTodo, SortOrder: 2},
		{ID: "b", Status: StatusDone, SortOrder: 1},
		{ID: "c", Status: StatusTodo, SortOrder: 1},
	}

	cols := TaskColumns(tasks)
	if len(cols) != len(TaskStatuses) {
		t.Fatalf("columns: got %d, want %d", len(cols), len(TaskStatuses))
	}
	todo := cols[StatusTodo]
	if len(todo) != 2 || todo[0].ID != "c" || todo[1].ID != "a" {
		t.Errorf("todo column order: got %+v", todo)
	}
	if len(cols[StatusInReview]) != 0 {
		t.Errorf("in_review should be empty, got %d", len(cols[StatusInReview]))
	}
	if got := NextSortOrder(tasks, StatusTodo); got != 3 {
		t.Errorf("NextSortOrder(todo) = %d, want 3", got)
	}
	if got := NextSortOrder(tasks, StatusInReview); got != 1 {
		t.Errorf("NextSortOrder(in_review) = %d, want 1", got)
	}
}

func TestEffectiveProgress(t *testing.T) {
	p := Project{ID: "p1", Progress: 40}

	if got := p.EffectiveProgress(nil); got != 40 {
		t.Errorf("no tasks: got %d, want stored 40", got)
	}

	tasks := []Task{
		{ID: "a", ProjectID: "p1", Status: StatusDone},
		{ID: "b", ProjectID: "p1", Status: StatusTodo},
		{ID: "c", ProjectID: "p1", Status: StatusDone},
		{ID: "d", ProjectID: "other", Status: StatusDone},
	}
	if got := p.EffectiveProgress(tasks); got != 67 {
		t.Errorf("2/3 done: got %d, want 67", got)
	}

	p.Progress = 250
	if got := p.EffectiveProgress(nil); got != 100 {
		t.Errorf("clamped stored value: got %d, want 100", got)
	}
}

func TestSecondsToHours(t *testing.T) {
	tests := []struct {
		seconds int64
		want    float64
	}{
		{1800, 0.5},
		{3600, 1},
		{0, 0},
		{100, 0.03},
		{5400, 1.5},
	}
	for _, tt := range tests {
		if got := SecondsToHours(tt.seconds); got != tt.want {
			t.Errorf("SecondsToHours(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}
