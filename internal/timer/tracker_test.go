package timer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nhle/teamboard/internal/cache"
	"github.com/nhle/teamboard/internal/clock"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/internal/replica"
	"github.com/nhle/teamboard/internal/timer"
	"github.com/nhle/teamboard/tests/testutil"
)

var nine = time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)

type fixture struct {
	backend *testutil.FakeBackend
	client  *remote.Client
	replica *replica.Replica
	clock   *clock.FakeClock
	notices *replica.ChanNotifier
	tracker *timer.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := testutil.NewFakeBackend(t)
	b.SetNow(func() time.Time { return nine })

	client, err := remote.New(model.APIConfig{BaseURL: b.URL(), TimeoutSec: 5}, nil)
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	s := testutil.NewTestStore(t)
	fake := clock.NewFake(nine)
	r := replica.New(context.Background(), client, cache.New(s, "test", nil), s,
		replica.WithNow(fake.Now))
	t.Cleanup(r.Close)

	notices := replica.NewChanNotifier(8)
	return &fixture{
		backend: b,
		client:  client,
		replica: r,
		clock:   fake,
		notices: notices,
		tracker: timer.New(client, r, timer.WithClock(fake), timer.WithNotifier(notices)),
	}
}

func (f *fixture) entry(id string) (model.TimeEntry, bool) {
	for _, e := range f.replica.TimeEntries() {
		if e.ID == id {
			return e, true
		}
	}
	return model.TimeEntry{}, false
}

var selection = timer.Selection{TaskID: "t1", ProjectID: "p1", Description: "pairing"}

func TestStartRequiresSelection(t *testing.T) {
	tests := []struct {
		name string
		sel  timer.Selection
	}{
		{"nothing selected", timer.Selection{}},
		{"task without project", timer.Selection{TaskID: "t1"}},
		{"project without task", timer.Selection{ProjectID: "p1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if err := f.tracker.Start(context.Background(), tt.sel); !errors.Is(err, timer.ErrNoSelection) {
				t.Errorf("Start: got %v, want ErrNoSelection", err)
			}
			if f.tracker.Running() {
				t.Error("tracker running after rejected start")
			}
		})
	}
}

func TestStartAndStopTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.tracker.Stop(ctx); !errors.Is(err, timer.ErrTimerIdle) {
		t.Fatalf("Stop while idle: got %v, want ErrTimerIdle", err)
	}
	if err := f.tracker.Start(ctx, selection); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.tracker.Start(ctx, selection); !errors.Is(err, timer.ErrTimerRunning) {
		t.Errorf("second Start: got %v, want ErrTimerRunning", err)
	}
	if got := f.tracker.Active(); got == nil || !got.StartedAt.Equal(nine) || got.TaskID != "t1" {
		t.Errorf("Active: got %+v", got)
	}
}

func TestStartFailureStaysIdle(t *testing.T) {
	f := newFixture(t)
	f.backend.SetDown(true)

	if err := f.tracker.Start(context.Background(), selection); err == nil {
		t.Fatal("Start succeeded against a down backend")
	}
	if f.tracker.Running() {
		t.Error("tracker running after failed start")
	}
	select {
	case n := <-f.notices.C:
		if n.Level != replica.NoticeError {
			t.Errorf("notice level: got %v, want error", n.Level)
		}
	default:
		t.Error("failed start produced no notice")
	}
}

func TestStopUsesServerHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.tracker.Start(ctx, selection); err != nil {
		t.Fatalf("Start: %v", err)
	}
	half := nine.Add(30 * time.Minute)
	f.backend.SetNow(func() time.Time { return half })
	f.clock.Advance(30 * time.Minute)

	res, err := f.tracker.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if res.Fallback {
		t.Error("Fallback: got true, want false")
	}
	if res.Entry.Hours != 0.5 || model.IsTransient(res.Entry.ID) {
		t.Errorf("entry: got %+v, want 0.5h with a server id", res.Entry)
	}
	if _, ok := f.entry(res.Entry.ID); !ok {
		t.Error("server entry not merged into the replica")
	}
	if f.tracker.Running() {
		t.Error("tracker still running after stop")
	}
}

func TestStopFallsBackToLocalEstimate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.tracker.Start(ctx, selection); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.backend.SetDown(true)
	f.clock.Advance(30 * time.Minute)

	res, err := f.tracker.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !res.Fallback {
		t.Error("Fallback: got false, want true")
	}
	if res.Entry.Hours != 0.5 {
		t.Errorf("Hours: got %v, want 0.5", res.Entry.Hours)
	}
	if !model.IsTransient(res.Entry.ID) || res.Entry.TaskID != "t1" || res.Entry.Date != "2026-02-27" {
		t.Errorf("entry: got %+v", res.Entry)
	}
	if _, ok := f.entry(res.Entry.ID); !ok {
		t.Error("estimate not recorded in the replica")
	}
	if f.replica.PendingCount() != 0 {
		t.Errorf("PendingCount: got %d, want 0 (estimates are never sent)", f.replica.PendingCount())
	}

	var warned bool
	for len(f.notices.C) > 0 {
		if n := <-f.notices.C; n.Level == replica.NoticeWarning && n.EntityID == res.Entry.ID {
			warned = true
		}
	}
	if !warned {
		t.Error("fallback stop produced no warning notice")
	}
}

// slowStop fails StopTimer only after the request has taken a while.
type slowStop struct {
	*remote.Client
	clock *clock.FakeClock
	delay time.Duration
}

func (s slowStop) StopTimer(context.Context) (model.TimeEntry, error) {
	s.clock.Advance(s.delay)
	return model.TimeEntry{}, errors.New("request timed out")
}

func TestFallbackExcludesRequestLatency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tracker := timer.New(slowStop{Client: f.client, clock: f.clock, delay: 30 * time.Second}, f.replica,
		timer.WithClock(f.clock), timer.WithNotifier(f.notices))

	if err := tracker.Start(ctx, selection); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(30 * time.Minute)

	res, err := tracker.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !res.Fallback || res.Entry.Hours != 0.5 {
		t.Errorf("Stop at 09:30: got fallback=%v hours=%v, want fallback 0.5h", res.Fallback, res.Entry.Hours)
	}
}

func TestResumeRestoresElapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.tracker.Start(ctx, selection); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.clock.Advance(10 * time.Minute)

	restarted := timer.New(f.client, f.replica, timer.WithClock(f.clock))
	running, err := restarted.Resume(ctx)
	if err != nil || !running {
		t.Fatalf("Resume: running=%v err=%v", running, err)
	}
	if got := restarted.Elapsed(); got != 10*time.Minute {
		t.Errorf("Elapsed: got %v, want 10m", got)
	}

	if _, err := f.tracker.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	running, err = restarted.Resume(ctx)
	if err != nil || running {
		t.Errorf("Resume after stop: running=%v err=%v", running, err)
	}
}

func TestRunTicksUntilStopped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.tracker.Start(ctx, selection); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ticks := make(chan time.Duration, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.tracker.Run(ctx, func(d time.Duration) { ticks <- d })
	}()

	want := []time.Duration{0, time.Second, 2 * time.Second}
	for i, w := range want {
		if i > 0 {
			f.clock.WaitForWaiters(1)
			f.clock.Advance(time.Second)
		}
		select {
		case got := <-ticks:
			if got != w {
				t.Errorf("tick %d: got %v, want %v", i, got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("tick %d never arrived", i)
		}
	}

	if _, err := f.tracker.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestElapsedNeverNegative(t *testing.T) {
	f := newFixture(t)
	if got := f.tracker.Elapsed(); got != 0 {
		t.Errorf("idle Elapsed: got %v, want 0", got)
	}
}
