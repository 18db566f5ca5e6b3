package remote_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/tests/testutil"
)

func newClient(t *testing.T, baseURL string, tokens remote.TokenSource) *remote.Client {
	t.Helper()
	c, err := remote.New(model.APIConfig{BaseURL: baseURL, TimeoutSec: 5, MaxRetries: 2}, tokens)
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	return c
}

func TestNotConfiguredFailsFast(t *testing.T) {
	c := newClient(t, "  ", nil)
	ctx := context.Background()

	calls := map[string]func() error{
		"ListTasks": func() error { _, err := c.ListTasks(ctx, remote.TaskFilter{}); return err },
		"CreateTask": func() error {
			_, err := c.CreateTask(ctx, model.Task{Title: "x"})
			return err
		},
		"DeleteProject": func() error { return c.DeleteProject(ctx, "p1") },
		"StopTimer":     func() error { _, err := c.StopTimer(ctx); return err },
		"CurrentUser":   func() error { _, err := c.CurrentUser(ctx); return err },
		"LoginURL":      func() error { _, err := c.LoginURL("microsoft"); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, remote.ErrNotConfigured) {
				t.Errorf("got %v, want ErrNotConfigured", err)
			}
		})
	}
}

func TestTaskCRUD(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newClient(t, b.URL(), nil)
	ctx := context.Background()

	created, err := c.CreateTask(ctx, model.Task{
		ID:          "tmp-abc",
		Title:       "Ship it",
		Status:      model.StatusTodo,
		Priority:    model.PriorityHigh,
		AssigneeIDs: []string{"u1"},
		ProjectID:   "p1",
		DueDate:     "2026-03-01",
		BlockedBy:   []string{},
		SortOrder:   3,
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if created.ID == "" || created.ID == "tmp-abc" {
		t.Fatalf("expected a server id, got %q", created.ID)
	}
	if created.ProjectID != "p1" || created.SortOrder != 3 || created.DueDate != "2026-03-01" {
		t.Errorf("canonical record lost fields: %+v", created)
	}

	reqs := b.Requests()
	body := reqs[len(reqs)-1].Body
	for _, key := range []string{"project_id", "assignee_ids", "due_date", "sort_order", "blocked_by"} {
		if _, ok := body[key]; !ok {
			t.Errorf("wire body missing %s: %v", key, body)
		}
	}
	if _, ok := body["id"]; ok {
		t.Error("transient id leaked to the backend")
	}

	status := model.StatusInProgress
	updated, err := c.UpdateTask(ctx, created.ID, model.TaskPatch{Status: &status})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Status != model.StatusInProgress || updated.Title != "Ship it" {
		t.Errorf("UpdateTask: got %+v", updated)
	}

	tasks, err := c.ListTasks(ctx, remote.TaskFilter{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("ListTasks: got %+v", tasks)
	}
	if q := b.Requests()[len(b.Requests())-1].Query; q != "project_id=p1" {
		t.Errorf("filter query: got %q", q)
	}

	if err := c.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := c.DeleteTask(ctx, created.ID); !remote.IsNotFound(err) {
		t.Errorf("second delete: got %v, want 404", err)
	}
}

func TestErrorsAreTyped(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newClient(t, b.URL(), nil)
	ctx := context.Background()

	b.Fail(http.MethodGet, "/projects", http.StatusInternalServerError)
	_, err := c.ListProjects(ctx)
	var statusErr *remote.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Errorf("ListProjects: got %v, want StatusError 500", err)
	}

	b.Fail(http.MethodGet, "/team-members", http.StatusUnauthorized)
	if _, err := c.ListTeamMembers(ctx); !remote.IsAuthError(err) {
		t.Errorf("ListTeamMembers: got %v, want AuthError", err)
	}
}

func TestCurrentUserAnonymous(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newClient(t, b.URL(), nil)
	ctx := context.Background()

	user, err := c.CurrentUser(ctx)
	if err != nil || user != nil {
		t.Fatalf("401 should mean anonymous: user=%v err=%v", user, err)
	}

	b.Fail(http.MethodGet, "/auth/me", http.StatusNotFound)
	if user, err := c.CurrentUser(ctx); err != nil || user != nil {
		t.Fatalf("404 should mean anonymous: user=%v err=%v", user, err)
	}
	b.ClearFailures()

	b.SetCurrentUser(map[string]any{"id": 7, "full_name": "Alex", "email": "a@example.com", "role": "admin"})
	user, err = c.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	want := &model.CurrentUser{ID: "7", Name: "Alex", Email: "a@example.com", Role: model.RoleAdmin}
	if !reflect.DeepEqual(user, want) {
		t.Errorf("got %+v, want %+v", user, want)
	}

	b.Fail(http.MethodGet, "/auth/me", http.StatusBadGateway)
	if _, err := c.CurrentUser(ctx); err == nil {
		t.Error("other failures must still be errors")
	}
}

func TestCredentialsOnEveryRequest(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newClient(t, b.URL(), remote.StaticToken("pat_123"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.ListProjects(ctx); err != nil {
			t.Fatalf("ListProjects: %v", err)
		}
	}
	reqs := b.Requests()
	if reqs[0].Authorization != "Bearer pat_123" || reqs[1].Authorization != "Bearer pat_123" {
		t.Errorf("bearer header missing: %+v", reqs)
	}
	if reqs[0].HasSession || !reqs[1].HasSession {
		t.Errorf("session cookie should be set by the first response and sent after: %+v", reqs)
	}
	if len(c.Cookies()) != 1 || c.AuthHeader().Get("Authorization") == "" {
		t.Errorf("side-channel headers incomplete: %v", c.AuthHeader())
	}
}

func TestRetriesOnRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"id": "p1", "name": "Core"}]}`))
	}))
	t.Cleanup(srv.Close)

	c := newClient(t, srv.URL, nil)
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 || hits.Load() != 2 {
		t.Errorf("got %d projects after %d hits", len(projects), hits.Load())
	}
}

func TestNegativeMaxRetriesStillSendsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": "p1", "name": "Core"}]`))
	}))
	t.Cleanup(srv.Close)

	c, err := remote.New(model.APIConfig{BaseURL: srv.URL, TimeoutSec: 5, MaxRetries: -1}, nil)
	if err != nil {
		t.Fatalf("remote.New: %v", err)
	}
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 1 || hits.Load() != 1 {
		t.Errorf("got %d projects after %d hits, want 1 after 1", len(projects), hits.Load())
	}
}

func TestIsRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bad request", &remote.StatusError{Code: http.StatusBadRequest}, true},
		{"conflict", &remote.StatusError{Code: http.StatusConflict}, true},
		{"unprocessable", fmt.Errorf("creating task: %w", &remote.StatusError{Code: http.StatusUnprocessableEntity}), true},
		{"not found", &remote.StatusError{Code: http.StatusNotFound}, false},
		{"rate limited", &remote.StatusError{Code: http.StatusTooManyRequests}, false},
		{"timeout", &remote.StatusError{Code: http.StatusRequestTimeout}, false},
		{"server error", &remote.StatusError{Code: http.StatusBadGateway}, false},
		{"auth", &remote.AuthError{Message: "expired"}, false},
		{"transport", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := remote.IsRejected(tt.err); got != tt.want {
				t.Errorf("IsRejected(%v): got %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTimerEndpoints(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newClient(t, b.URL(), nil)
	ctx := context.Background()

	start := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	b.SetNow(func() time.Time { return start })

	if active, err := c.ActiveTimer(ctx); err != nil || active != nil {
		t.Fatalf("no timer yet: active=%v err=%v", active, err)
	}

	active, err := c.StartTimer(ctx, "t1", "p1", "focus")
	if err != nil {
		t.Fatalf("StartTimer: %v", err)
	}
	if !active.StartedAt.Equal(start) || active.TaskID != "t1" {
		t.Errorf("StartTimer: got %+v", active)
	}

	resumed, err := c.ActiveTimer(ctx)
	if err != nil || resumed == nil || !resumed.StartedAt.Equal(start) {
		t.Fatalf("ActiveTimer: got %+v err=%v", resumed, err)
	}

	b.SetNow(func() time.Time { return start.Add(30 * time.Minute) })
	entry, err := c.StopTimer(ctx)
	if err != nil {
		t.Fatalf("StopTimer: %v", err)
	}
	if entry.Hours != 0.5 || entry.TaskID != "t1" || entry.ID == "" {
		t.Errorf("StopTimer: got %+v", entry)
	}
}

func TestReportShapes(t *testing.T) {
	want := []model.ReportRow{
		{Key: "p1", Label: "Core", Hours: 3.5, BillableHours: 2, Entries: 3},
		{Key: "p2", Label: "p2", Hours: 1.25, BillableHours: 0, Entries: 1},
	}
	bodies := map[string]any{
		"flat rows": []any{
			map[string]any{"key": "p2", "hours": 1.25, "entries": 1},
			map[string]any{"key": "p1", "label": "Core", "hours": 1.5, "billable_hours": 1, "entries": 1},
			map[string]any{"key": "p1", "label": "Core", "hours": 2, "billable_hours": 1, "entries": 2},
		},
		"rows envelope": map[string]any{"rows": []any{
			map[string]any{"group": "p1", "name": "Core", "total_hours": 3.5, "billable_hours": 2, "count": 3},
			map[string]any{"group": "p2", "total_hours": 1.25, "count": 1},
		}},
		"breakdown map": map[string]any{
			"p2": map[string]any{"hours": 1.25, "entries": 1},
			"p1": map[string]any{"label": "Core", "hours": 3.5, "billable_hours": 2, "entries": 3},
		},
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			b := testutil.NewFakeBackend(t)
			b.SetReport(body)
			c := newClient(t, b.URL(), nil)

			rows, err := c.Report(context.Background(), remote.ReportQuery{GroupBy: model.GroupByProject})
			if err != nil {
				t.Fatalf("Report: %v", err)
			}
			if !reflect.DeepEqual(rows, want) {
				t.Errorf("\n got: %+v\nwant: %+v", rows, want)
			}
		})
	}
}

func TestDecodeReport(t *testing.T) {
	if _, err := remote.DecodeReport("nope"); err == nil {
		t.Error("scalar body should not decode")
	}
	p, err := remote.DecodeReport(map[string]any{"billable": 4.0, "non_billable": 1.0})
	if err != nil || p.Kind != remote.PayloadBreakdown {
		t.Fatalf("got %+v err=%v", p, err)
	}
	rows := p.Canonical()
	if len(rows) != 2 || rows[0].Key != "billable" || rows[0].Hours != 4 {
		t.Errorf("bare-number breakdown: got %+v", rows)
	}

	if _, err := newClient(t, "http://unused", nil).Report(context.Background(), remote.ReportQuery{GroupBy: "daily"}); err == nil {
		t.Error("unknown grouping should be rejected before any request")
	}
}

func TestNotesAndComments(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newClient(t, b.URL(), nil)
	ctx := context.Background()

	note, err := c.CreateNote(ctx, model.Note{ID: "tmp-n", Content: "remember", TaskID: "t1"})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.ID == "" || note.CreatedAt.IsZero() || note.TaskID != "t1" {
		t.Errorf("CreateNote: got %+v", note)
	}

	comment, err := c.CreateComment(ctx, "t1", "looks good")
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	comments, err := c.ListComments(ctx, "t1")
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != comment.ID || comments[0].Body != "looks good" {
		t.Errorf("ListComments: got %+v", comments)
	}
}
