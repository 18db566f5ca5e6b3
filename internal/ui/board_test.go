package ui

import (
	"strings"
	"testing"

	"github.com/nhle/teamboard/internal/model"
)

func TestTaskLine(t *testing.T) {
	tests := []struct {
		name    string
		task    model.Task
		pending bool
		want    []string
		notWant []string
	}{
		{
			name:    "confirmed task",
			task:    model.Task{ID: "t1", Title: "Write docs", Priority: model.PriorityLow},
			want:    []string{"Write docs"},
			notWant: []string{"not synced", "blocked"},
		},
		{
			name:    "pending and blocked",
			task:    model.Task{ID: "tmp-1", Title: "Ship", Priority: model.PriorityUrgent, BlockedBy: []string{"t1", "t2"}},
			pending: true,
			want:    []string{"Ship", "!!", "blocked by 2", "not synced"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TaskLine(tt.task, tt.pending)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("TaskLine() = %q, missing %q", got, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("TaskLine() = %q, unexpected %q", got, w)
				}
			}
		})
	}
}

func TestRenderBoardListsEveryColumn(t *testing.T) {
	cols := model.TaskColumns([]model.Task{
		{ID: "a", Title: "Alpha", Status: model.StatusTodo, SortOrder: 1},
		{ID: "b", Title: "Beta", Status: model.StatusDone, SortOrder: 1},
	})
	got := RenderBoard(cols, 24, func(id string) bool { return id == "b" })

	for _, w := range []string{"To do (1)", "In progress (0)", "In review (0)", "Done (1)", "Alpha", "Beta", "not synced"} {
		if !strings.Contains(got, w) {
			t.Errorf("board missing %q:\n%s", w, got)
		}
	}
}
