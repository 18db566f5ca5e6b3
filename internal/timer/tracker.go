// Package timer tracks the server-side work timer. The backend's start
// timestamp is the only source of truth; the local clock only drives the
// elapsed-time display.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/teamboard/internal/clock"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/replica"
	"github.com/nhle/teamboard/internal/store"
)

var (
	// ErrNoSelection is returned by Start when no task or project is chosen.
	ErrNoSelection = errors.New("select a task and its project before starting the timer")
	// ErrTimerRunning is returned by Start while a timer is already running.
	ErrTimerRunning = errors.New("timer already running")
	// ErrTimerIdle is returned by Stop when no timer is running.
	ErrTimerIdle = errors.New("no timer running")
)

// Backend is the slice of the remote client the tracker drives.
type Backend interface {
	StartTimer(ctx context.Context, taskID, projectID, description string) (model.ActiveTimer, error)
	StopTimer(ctx context.Context) (model.TimeEntry, error)
	ActiveTimer(ctx context.Context) (*model.ActiveTimer, error)
}

// Entries receives the time entry produced when the timer stops.
type Entries interface {
	ConfirmTimeEntry(e model.TimeEntry)
	RecordTimeEntry(e model.TimeEntry) model.TimeEntry
}

// Selection names what the timer runs against.
type Selection struct {
	TaskID      string
	ProjectID   string
	Description string
}

// StopResult is the entry a stopped timer produced. Fallback is true when
// the backend could not be reached and Entry is a local estimate that is
// kept on this device only.
type StopResult struct {
	Entry    model.TimeEntry
	Fallback bool
}

// Tracker is the Idle -> Running -> Idle timer state machine.
type Tracker struct {
	backend  Backend
	entries  Entries
	clock    clock.Clock
	notifier replica.Notifier
	logger   *log.Logger

	mu      sync.Mutex
	active  *model.ActiveTimer
	stopped chan struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithNotifier sets where start and stop notices go.
func WithNotifier(n replica.Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(t *Tracker) { t.logger = logging.OrDiscard(l) }
}

// New returns an idle Tracker.
func New(backend Backend, entries Entries, opts ...Option) *Tracker {
	t := &Tracker{
		backend:  backend,
		entries:  entries,
		clock:    clock.Real(),
		notifier: replica.NotifierFunc(func(replica.Notice) {}),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start asks the backend to start a timer for sel. On failure the tracker
// stays idle and the error is returned.
func (t *Tracker) Start(ctx context.Context, sel Selection) error {
	if sel.TaskID == "" || sel.ProjectID == "" {
		return ErrNoSelection
	}
	if t.Running() {
		return ErrTimerRunning
	}

	active, err := t.backend.StartTimer(ctx, sel.TaskID, sel.ProjectID, sel.Description)
	if err != nil {
		t.notifier.Notify(replica.Notice{Level: replica.NoticeError, Message: "could not start the timer"})
		t.logger.Error("starting timer failed", "task", sel.TaskID, "err", err)
		return fmt.Errorf("starting timer: %w", err)
	}
	if !t.set(&active) {
		return ErrTimerRunning
	}
	t.logger.Info("timer started", "task", active.TaskID, "started_at", active.StartedAt)
	return nil
}

// Resume re-fetches the backend's running timer, if any, so the display
// picks up where it left off after a restart. It reports whether a timer
// is running.
func (t *Tracker) Resume(ctx context.Context) (bool, error) {
	active, err := t.backend.ActiveTimer(ctx)
	if err != nil {
		return t.Running(), fmt.Errorf("resuming timer: %w", err)
	}
	if active == nil {
		t.clear()
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		t.stopped = make(chan struct{})
	}
	t.active = active
	return true, nil
}

// Stop asks the backend to stop the timer and merges the finalized entry.
// When the backend cannot be reached the elapsed time is recorded as a
// local estimate instead; either way the tracker ends up idle.
func (t *Tracker) Stop(ctx context.Context) (StopResult, error) {
	active := t.Active()
	if active == nil {
		return StopResult{}, ErrTimerIdle
	}
	// Measured before the call so timeouts and retries are not billed.
	stopAt := t.clock.Now()

	entry, err := t.backend.StopTimer(ctx)
	if err == nil {
		t.clear()
		t.entries.ConfirmTimeEntry(entry)
		t.notifier.Notify(replica.Notice{
			Level:    replica.NoticeInfo,
			Message:  fmt.Sprintf("timer stopped: %.2fh logged", entry.Hours),
			Kind:     store.KindTimeEntry,
			EntityID: entry.ID,
		})
		return StopResult{Entry: entry}, nil
	}

	t.logger.Warn("stopping timer failed, recording a local estimate", "task", active.TaskID, "err", err)
	seconds := int64(max(stopAt.Sub(active.StartedAt), 0) / time.Second)
	estimate := t.entries.RecordTimeEntry(model.TimeEntry{
		TaskID:      active.TaskID,
		Hours:       model.SecondsToHours(seconds),
		Date:        stopAt.UTC().Format("2006-01-02"),
		Description: active.Description,
	})
	t.clear()
	t.notifier.Notify(replica.Notice{
		Level:    replica.NoticeWarning,
		Message:  fmt.Sprintf("timer stopped: %.2fh estimated and saved locally only", estimate.Hours),
		Kind:     store.KindTimeEntry,
		EntityID: estimate.ID,
	})
	return StopResult{Entry: estimate, Fallback: true}, nil
}

// Running reports whether a timer is running.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil
}

// Active returns a copy of the running timer, or nil.
func (t *Tracker) Active() *model.ActiveTimer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	a := *t.active
	return &a
}

// Elapsed returns now minus the server's start timestamp, or zero when
// idle.
func (t *Tracker) Elapsed() time.Duration {
	active := t.Active()
	if active == nil {
		return 0
	}
	return t.elapsed(active)
}

func (t *Tracker) elapsed(a *model.ActiveTimer) time.Duration {
	return max(t.clock.Now().Sub(a.StartedAt), 0)
}

// Run calls onTick with the elapsed time once a second until the timer
// stops or ctx is cancelled. It returns immediately when idle.
func (t *Tracker) Run(ctx context.Context, onTick func(time.Duration)) {
	t.mu.Lock()
	stopped := t.stopped
	running := t.active != nil
	t.mu.Unlock()
	if !running {
		return
	}

	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()

	onTick(t.Elapsed())
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopped:
			return
		case <-ticker.C:
			onTick(t.Elapsed())
		}
	}
}

func (t *Tracker) set(a *model.ActiveTimer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		return false
	}
	t.active = a
	t.stopped = make(chan struct{})
	return true
}

func (t *Tracker) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return
	}
	t.active = nil
	close(t.stopped)
}
