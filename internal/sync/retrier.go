// Package sync retries remote mutations that failed while the backend was
// unreachable. Mutations are read from the outbox and replayed through the
// replica, parents before children.
package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/nhle/teamboard/internal/clock"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/internal/replica"
	"github.com/nhle/teamboard/internal/store"
)

// SyncState represents the current state of the retry loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "idle"
	}
}

// SyncStatus is a snapshot of the retry loop.
type SyncStatus struct {
	State   SyncState
	LastRun time.Time
	Pending int
	Error   error
}

// SyncResultMsg is a tea.Msg sent when a retry cycle completes.
type SyncResultMsg struct {
	Sent      int
	Failed    int
	Deferred  int
	Abandoned int
	Pending   int
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the backend rejects the credentials.
type AuthErrorMsg struct {
	Message string
}

// Replayer sends one queued mutation and gives up on ones that keep
// failing. *replica.Replica implements it.
type Replayer interface {
	Replay(ctx context.Context, m store.Mutation) error
	Abandon(m store.Mutation, cause error)
}

// replayTimeout is the maximum time allowed for a single replay.
const replayTimeout = 30 * time.Second

// Retrier periodically drains the outbox.
type Retrier struct {
	outbox      store.Store
	replayer    Replayer
	clock       clock.Clock
	interval    time.Duration
	maxAttempts int
	notifier    replica.Notifier
	logger      *log.Logger

	status    SyncStatus
	resultCh  chan SyncResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}
	mu        gosync.Mutex
	running   bool
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithClock replaces the wall clock driving the interval.
func WithClock(c clock.Clock) Option {
	return func(r *Retrier) { r.clock = c }
}

// WithNotifier sets where the auth-failure notice goes.
func WithNotifier(n replica.Notifier) Option {
	return func(r *Retrier) { r.notifier = n }
}

// WithMaxAttempts abandons a mutation once it has failed n times. Zero or
// less retries forever.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) { r.maxAttempts = max(n, 0) }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Retrier) { r.logger = logging.OrDiscard(l) }
}

// New creates a Retrier replaying the outbox every interval. A
// non-positive interval defaults to 30 seconds.
func New(outbox store.Store, replayer Replayer, interval time.Duration, opts ...Option) *Retrier {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	r := &Retrier{
		outbox:    outbox,
		replayer:  replayer,
		clock:     clock.Real(),
		interval:  interval,
		notifier:  replica.NotifierFunc(func(replica.Notice) {}),
		logger:    logging.Discard(),
		resultCh:  make(chan SyncResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the retry loop and returns a tea.Cmd that waits for the
// first cycle's result. It is a no-op when already running.
func (r *Retrier) Start() tea.Cmd {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()
	return r.waitForResult()
}

// Stop halts the loop and waits for the current cycle to finish.
func (r *Retrier) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()
	<-r.done
}

// Trigger asks the loop to run a cycle now.
func (r *Retrier) Trigger() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
		// A cycle is already requested.
	}
}

// Status returns the current state of the loop.
func (r *Retrier) Status() SyncStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Retrier) loop() {
	defer close(r.done)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	r.sendResult(r.RunOnce(ctx))
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sendResult(r.RunOnce(ctx))
		case <-r.triggerCh:
			r.sendResult(r.RunOnce(ctx))
		}
	}
}

// RunOnce replays every pending mutation once, in replay rank order. It
// stops early when the backend is not configured or rejects the
// credentials, since every further call would fail the same way.
func (r *Retrier) RunOnce(ctx context.Context) SyncResultMsg {
	r.setStatus(SyncRunning, nil, -1)

	var res SyncResultMsg
	pending, err := r.outbox.PendingMutations(ctx)
	if err != nil {
		res.Error = fmt.Errorf("reading outbox: %w", err)
		r.setStatus(SyncError, res.Error, -1)
		return res
	}
	slices.SortStableFunc(pending, func(a, b store.Mutation) int {
		return store.ReplayRank(a.Kind) - store.ReplayRank(b.Kind)
	})

cycle:
	for _, m := range pending {
		mctx, cancel := context.WithTimeout(ctx, replayTimeout)
		err := r.replayer.Replay(mctx, m)
		cancel()

		switch {
		case err == nil:
			res.Sent++
		case errors.Is(err, replica.ErrDeferred):
			res.Deferred++
		case errors.Is(err, replica.ErrAbandoned):
			res.Abandoned++
			r.logger.Warn("backend refused mutation, dropped it", "kind", m.Kind, "op", m.Op, "id", m.EntityID, "err", err)
		case errors.Is(err, remote.ErrNotConfigured):
			r.logger.Debug("remote sync not configured, leaving outbox untouched")
			break cycle
		case remote.IsAuthError(err):
			r.recordAttempt(ctx, m, err)
			res.Failed++
			res.Error = err
			res.AuthError = &AuthErrorMsg{Message: "sign-in expired; run 'teamboard login' to resume syncing"}
			r.notifier.Notify(replica.Notice{Level: replica.NoticeError, Message: res.AuthError.Message})
			break cycle
		case ctx.Err() != nil:
			res.Error = ctx.Err()
			break cycle
		case r.maxAttempts > 0 && m.Attempts+1 >= r.maxAttempts:
			r.replayer.Abandon(m, fmt.Errorf("gave up after %d attempts: %w", m.Attempts+1, err))
			res.Abandoned++
			r.logger.Warn("replay keeps failing, dropped it", "kind", m.Kind, "op", m.Op, "id", m.EntityID, "attempts", m.Attempts+1, "err", err)
		default:
			r.recordAttempt(ctx, m, err)
			res.Failed++
			res.Error = err
			r.logger.Warn("replay failed", "kind", m.Kind, "op", m.Op, "id", m.EntityID, "attempts", m.Attempts+1, "err", err)
		}
	}

	if left, err := r.outbox.PendingMutations(ctx); err == nil {
		res.Pending = len(left)
	}
	if res.Error != nil {
		r.setStatus(SyncError, res.Error, res.Pending)
	} else {
		r.setStatus(SyncIdle, nil, res.Pending)
	}
	if res.Sent > 0 || res.Failed > 0 || res.Abandoned > 0 {
		r.logger.Info("outbox replayed", "sent", res.Sent, "failed", res.Failed, "abandoned", res.Abandoned, "pending", res.Pending)
	}
	return res
}

func (r *Retrier) recordAttempt(ctx context.Context, m store.Mutation, cause error) {
	if err := r.outbox.RecordAttempt(ctx, m.ID, cause.Error()); err != nil {
		r.logger.Error("recording replay attempt failed", "id", m.ID, "err", err)
	}
}

// setStatus updates the loop status. A negative pending count keeps the
// previous one.
func (r *Retrier) setStatus(state SyncState, err error, pending int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.State = state
	r.status.Error = err
	if pending >= 0 {
		r.status.Pending = pending
	}
	if state != SyncRunning {
		r.status.LastRun = r.clock.Now()
	}
}

// sendResult sends a SyncResultMsg without blocking.
func (r *Retrier) sendResult(msg SyncResultMsg) {
	select {
	case r.resultCh <- msg:
	default:
		// Drop if nobody is listening.
	}
}

func (r *Retrier) waitForResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case result := <-r.resultCh:
			return result
		case <-r.done:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next cycle's
// result. Call it after handling a SyncResultMsg to keep listening.
func (r *Retrier) WaitForNextResult() tea.Cmd {
	return r.waitForResult()
}

// Results exposes cycle results to non-bubbletea callers.
func (r *Retrier) Results() <-chan SyncResultMsg {
	return r.resultCh
}
