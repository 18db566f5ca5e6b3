package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/replica"
)

// Theme preference values persisted by the replica. Anything else follows
// the terminal background.
const (
	Dark   = "dark"
	Light  = "light"
	System = "system"
)

// Palette roles. Each pair is {dark background, light background}.
var (
	Accent  = lipgloss.AdaptiveColor{Dark: "#7AA2F7", Light: "#1E56A0"}
	Success = lipgloss.AdaptiveColor{Dark: "#9ECE6A", Light: "#2E7D32"}
	Caution = lipgloss.AdaptiveColor{Dark: "#E0AF68", Light: "#A66A00"}
	Danger  = lipgloss.AdaptiveColor{Dark: "#F7768E", Light: "#B3261E"}
	Review  = lipgloss.AdaptiveColor{Dark: "#BB9AF7", Light: "#6A3FB5"}
	Muted   = lipgloss.AdaptiveColor{Dark: "#787C99", Light: "#6B7280"}
	Text    = lipgloss.AdaptiveColor{Dark: "#E6E9F5", Light: "#111827"}
	Surface = lipgloss.AdaptiveColor{Dark: "#3B4261", Light: "#D1D5DB"}
)

var statusColors = map[model.TaskStatus]lipgloss.AdaptiveColor{
	model.StatusTodo:       Accent,
	model.StatusInProgress: Caution,
	model.StatusInReview:   Review,
	model.StatusDone:       Success,
}

var priorityColors = map[model.Priority]lipgloss.AdaptiveColor{
	model.PriorityUrgent: Danger,
	model.PriorityHigh:   Caution,
	model.PriorityMedium: Text,
	model.PriorityLow:    Muted,
}

// Apply pins the adaptive colors to the preferred background. It reports
// whether the preference was recognised.
func Apply(pref string) bool {
	switch pref {
	case Dark:
		lipgloss.SetHasDarkBackground(true)
	case Light:
		lipgloss.SetHasDarkBackground(false)
	case System, "":
	default:
		return false
	}
	return true
}

var (
	HeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(Text).Background(Accent).Padding(0, 1)
	StatusBarStyle = lipgloss.NewStyle().Foreground(Text).Background(Surface).Padding(0, 1)
	HelpStyle      = lipgloss.NewStyle().Foreground(Muted).Italic(true)
	BorderStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(Surface).Padding(1, 2)

	// ClockStyle renders the running timer's elapsed time.
	ClockStyle = lipgloss.NewStyle().Bold(true).Foreground(Success)
	// PendingStyle marks entities the backend has not confirmed yet.
	PendingStyle = lipgloss.NewStyle().Foreground(Caution).Italic(true)
)

// StatusStyle colors a kanban column title.
func StatusStyle(status model.TaskStatus) lipgloss.Style {
	c, ok := statusColors[status]
	if !ok {
		c = Muted
	}
	return lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(c)
}

// PriorityStyle colors a task's priority marker.
func PriorityStyle(p model.Priority) lipgloss.Style {
	c, ok := priorityColors[p]
	if !ok {
		c = Muted
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

func NoticeStyle(level replica.NoticeLevel) lipgloss.Style {
	switch level {
	case replica.NoticeError:
		return lipgloss.NewStyle().Foreground(Danger)
	case replica.NoticeWarning:
		return lipgloss.NewStyle().Foreground(Caution)
	default:
		return lipgloss.NewStyle().Foreground(Success)
	}
}
