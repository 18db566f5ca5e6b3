package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/theme"
)

// columnTitles labels the kanban columns.
var columnTitles = map[model.TaskStatus]string{
	model.StatusTodo:       "To do",
	model.StatusInProgress: "In progress",
	model.StatusInReview:   "In review",
	model.StatusDone:       "Done",
}

// ColumnTitle returns the display label of a status column.
func ColumnTitle(s model.TaskStatus) string {
	if t, ok := columnTitles[s]; ok {
		return t
	}
	return string(s)
}

// TaskLine renders one task as a single line: priority marker, title and
// a pending marker when pending is true.
func TaskLine(t model.Task, pending bool) string {
	var b strings.Builder
	b.WriteString(theme.PriorityStyle(t.Priority).Render(priorityMarker(t.Priority)))
	b.WriteString(" ")
	b.WriteString(t.Title)
	if len(t.BlockedBy) > 0 {
		b.WriteString(theme.HelpStyle.Render(fmt.Sprintf(" (blocked by %d)", len(t.BlockedBy))))
	}
	if pending {
		b.WriteString(theme.PendingStyle.Render(" ⟳ not synced"))
	}
	return b.String()
}

func priorityMarker(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return "!!"
	case model.PriorityHigh:
		return "! "
	case model.PriorityLow:
		return "· "
	default:
		return "• "
	}
}

// RenderBoard lays the columns out side by side, each colWidth wide.
// pending reports whether a task still has unconfirmed local changes.
func RenderBoard(columns map[model.TaskStatus][]model.Task, colWidth int, pending func(id string) bool) string {
	if colWidth < 12 {
		colWidth = 12
	}
	rendered := make([]string, 0, len(model.TaskStatuses))
	for _, status := range model.TaskStatuses {
		tasks := columns[status]
		lines := []string{
			theme.StatusStyle(status).Render(fmt.Sprintf("%s (%d)", ColumnTitle(status), len(tasks))),
		}
		for _, t := range tasks {
			line := TaskLine(t, pending != nil && pending(t.ID))
			lines = append(lines, lipgloss.NewStyle().MaxWidth(colWidth).Render(line))
		}
		rendered = append(rendered, lipgloss.NewStyle().
			Width(colWidth).
			MarginRight(1).
			Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}
