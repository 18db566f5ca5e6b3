// Package timerview is the live timer screen of `teamboard timer watch`.
package timerview

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/teamboard/internal/keys"
	"github.com/nhle/teamboard/internal/replica"
	"github.com/nhle/teamboard/internal/theme"
	"github.com/nhle/teamboard/internal/timer"
	"github.com/nhle/teamboard/internal/ui"
)

type tickMsg time.Duration

type ticksEndedMsg struct{}

type resumedMsg struct {
	running bool
	err     error
}

type startedMsg struct{ err error }

type stoppedMsg struct {
	res timer.StopResult
	err error
}

// Model shows the elapsed time of the running timer and starts or stops it.
type Model struct {
	ctx     context.Context
	tracker *timer.Tracker
	sel     timer.Selection
	label   string

	keys   *keys.KeyMap
	help   help.Model
	layout ui.Layout

	running bool
	elapsed time.Duration
	ticks   <-chan time.Duration
	notice  *replica.Notice
}

// New returns the view for sel. label names the task in the header.
func New(ctx context.Context, tracker *timer.Tracker, sel timer.Selection, label string) Model {
	if label == "" {
		label = sel.TaskID
	}
	return Model{
		ctx:     ctx,
		tracker: tracker,
		sel:     sel,
		label:   label,
		keys:    keys.DefaultKeyMap(),
		help:    help.New(),
		layout:  ui.NewLayout(60, 10),
	}
}

// Init re-fetches the backend's running timer.
func (m Model) Init() tea.Cmd {
	return m.resume()
}

// Update handles key presses and timer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Resume):
			return m, m.resume()
		case key.Matches(msg, m.keys.Toggle):
			if m.running {
				return m, m.stop()
			}
			return m, m.start()
		}
		return m, nil

	case resumedMsg:
		if msg.err != nil {
			m.notice = &replica.Notice{Level: replica.NoticeWarning, Message: "could not reach the backend; timer state may be stale"}
		}
		return m.setRunning(msg.running)

	case startedMsg:
		if msg.err != nil {
			m.notice = &replica.Notice{Level: replica.NoticeError, Message: msg.err.Error()}
			return m, nil
		}
		m.notice = &replica.Notice{Level: replica.NoticeInfo, Message: "timer started"}
		return m.setRunning(true)

	case stoppedMsg:
		if msg.err != nil {
			m.notice = &replica.Notice{Level: replica.NoticeError, Message: msg.err.Error()}
			return m, nil
		}
		m.notice = stopNotice(msg.res)
		m.elapsed = 0
		return m.setRunning(false)

	case tickMsg:
		m.elapsed = time.Duration(msg)
		return m, waitTick(m.ticks)

	case ticksEndedMsg:
		m.ticks = nil
		return m, nil
	}
	return m, nil
}

// View renders the timer screen.
func (m Model) View() string {
	status := "idle"
	if m.running {
		status = "running"
	}
	header := m.layout.RenderHeader("teamboard timer", status)

	body := lipgloss.JoinVertical(lipgloss.Left,
		"Task: "+m.label,
		theme.ClockStyle.Render(FormatElapsed(m.elapsed)),
	)
	if m.notice != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "",
			theme.NoticeStyle(m.notice.Level).Render(m.notice.Message))
	}

	return m.layout.RenderWithFrame(header,
		theme.BorderStyle.Render(body),
		m.layout.RenderStatusBar(m.help.View(m.keys)))
}

// setRunning switches the tick subscription on or off.
func (m Model) setRunning(running bool) (Model, tea.Cmd) {
	m.running = running
	if !running || m.ticks != nil {
		return m, nil
	}
	ch := make(chan time.Duration, 1)
	m.ticks = ch
	go func() {
		defer close(ch)
		m.tracker.Run(m.ctx, func(d time.Duration) {
			select {
			case ch <- d:
			default:
				// The view is behind; it reads the next tick instead.
			}
		})
	}()
	return m, waitTick(ch)
}

func waitTick(ch <-chan time.Duration) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		d, ok := <-ch
		if !ok {
			return ticksEndedMsg{}
		}
		return tickMsg(d)
	}
}

func (m Model) resume() tea.Cmd {
	return func() tea.Msg {
		running, err := m.tracker.Resume(m.ctx)
		return resumedMsg{running: running, err: err}
	}
}

func (m Model) start() tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: m.tracker.Start(m.ctx, m.sel)}
	}
}

func (m Model) stop() tea.Cmd {
	return func() tea.Msg {
		res, err := m.tracker.Stop(m.ctx)
		return stoppedMsg{res: res, err: err}
	}
}

func stopNotice(res timer.StopResult) *replica.Notice {
	if res.Fallback {
		return &replica.Notice{
			Level:   replica.NoticeWarning,
			Message: fmt.Sprintf("backend unreachable: %.2fh estimated and saved on this device only", res.Entry.Hours),
		}
	}
	return &replica.Notice{
		Level:   replica.NoticeInfo,
		Message: fmt.Sprintf("%.2fh logged", res.Entry.Hours),
	}
}

// FormatElapsed renders d as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	d = max(d, 0).Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
