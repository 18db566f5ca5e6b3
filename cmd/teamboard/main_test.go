package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nhle/teamboard/internal/app"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/tests/testutil"
)

type cli struct {
	t    *testing.T
	opts app.Options
}

func newCLI(t *testing.T, baseURL string) *cli {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &model.AppConfig{
		API:   model.APIConfig{BaseURL: baseURL, TimeoutSec: 5},
		Cache: model.CacheConfig{Driver: "sqlite", Path: filepath.Join(dir, "cache.db"), Namespace: "cli"},
		Sync:  model.SyncConfig{RetryIntervalSec: 30},
		Log:   model.LogConfig{Level: "error", Format: "text"},
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	return &cli{t: t, opts: app.Options{ConfigPath: path, Tokens: remote.StaticToken("")}}
}

// exec runs one invocation, like a separate process sharing the cache.
func (c *cli) exec(args ...string) (string, string, error) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	opts := c.opts
	opts.LogWriter = &stderr
	err := run(context.Background(), args, &stdout, &stderr, opts)
	return stdout.String(), stderr.String(), err
}

func (c *cli) mustExec(args ...string) string {
	c.t.Helper()
	out, errOut, err := c.exec(args...)
	if err != nil {
		c.t.Fatalf("teamboard %s: %v\n%s", strings.Join(args, " "), err, errOut)
	}
	return out
}

func TestUsage(t *testing.T) {
	c := newCLI(t, "")
	tests := []struct {
		name      string
		args      []string
		wantUsage bool
		wantErr   string
	}{
		{name: "no command", args: nil},
		{name: "help flag", args: []string{"--help"}},
		{name: "unknown command", args: []string{"frobnicate"}, wantUsage: true},
		{name: "unknown subcommand", args: []string{"tasks", "explode"}, wantUsage: true},
		{name: "missing title", args: []string{"tasks", "add"}, wantUsage: true},
		{name: "bad status", args: []string{"tasks", "move", "t1", "someday"}, wantUsage: true},
		{name: "bad theme", args: []string{"theme", "neon"}, wantUsage: true},
		{name: "subcommand help", args: []string{"tasks", "add", "--help"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.exec(tt.args...)
			if got := errors.Is(err, errUsage); got != tt.wantUsage {
				t.Errorf("usage error: got %v (%v), want %v", got, err, tt.wantUsage)
			}
			if !tt.wantUsage && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTasksRoundTrip(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newCLI(t, b.URL())

	id := strings.TrimSpace(c.mustExec("tasks", "add", "--title", "Plan sprint", "--project", "p1", "--priority", "high"))
	if model.IsTransient(id) {
		t.Fatalf("tasks add printed %q, want the server id", id)
	}

	c.mustExec("tasks", "move", id, "in_review")
	out := c.mustExec("tasks", "list", "--flat", "--all")
	if !strings.Contains(out, id) || !strings.Contains(out, "in_review") || !strings.Contains(out, "Plan sprint") {
		t.Errorf("tasks list:\n%s", out)
	}

	records := b.Records("tasks")
	if len(records) != 1 || records[0]["status"] != "in_review" {
		t.Errorf("backend tasks: got %+v", records)
	}
}

func TestOfflineAddThenSync(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newCLI(t, b.URL())

	b.SetDown(true)
	_, stderr, err := c.exec("projects", "add", "--name", "Launch")
	if err != nil {
		t.Fatalf("projects add: %v", err)
	}
	if !strings.Contains(stderr, "saved locally") {
		t.Errorf("stderr missing the saved-locally notice:\n%s", stderr)
	}
	if out := c.mustExec("projects"); !strings.Contains(out, "not synced") {
		t.Errorf("projects list should flag the pending project:\n%s", out)
	}

	b.SetDown(false)
	if out := c.mustExec("sync"); !strings.Contains(out, "sent 1") || !strings.Contains(out, "still pending 0") {
		t.Errorf("sync output: %s", out)
	}
	if got := len(b.Records("projects")); got != 1 {
		t.Errorf("backend projects: got %d, want 1", got)
	}
	c.mustExec("sync")
	if got := len(b.Records("projects")); got != 1 {
		t.Errorf("backend projects after second sync: got %d, want 1", got)
	}
}

func TestTimerAcrossInvocations(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newCLI(t, b.URL())

	if out := c.mustExec("timer", "status"); !strings.Contains(out, "no timer running") {
		t.Errorf("idle status: %s", out)
	}
	if _, _, err := c.exec("timer", "start"); err == nil {
		t.Error("timer start without a task succeeded")
	}
	c.mustExec("timer", "start", "--task", "t1", "--project", "p1")
	if out := c.mustExec("timer", "status"); !strings.Contains(out, "on t1") {
		t.Errorf("running status: %s", out)
	}
	if out := c.mustExec("timer", "stop"); !strings.Contains(out, "logged as") {
		t.Errorf("stop output: %s", out)
	}
}

func TestReportBreakdown(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.SetReport(map[string]any{
		"u2": map[string]any{"hours": 1.25, "billable_hours": 1, "entries": 2},
		"u1": map[string]any{"hours": 3.5, "billable_hours": 2, "entries": 4},
	})
	c := newCLI(t, b.URL())

	out := c.mustExec("report", "--group-by", "user")
	u1, u2 := strings.Index(out, "u1"), strings.Index(out, "u2")
	if u1 < 0 || u2 < 0 || u1 > u2 {
		t.Errorf("rows missing or unsorted:\n%s", out)
	}
	if !strings.Contains(out, "4.75") {
		t.Errorf("total missing:\n%s", out)
	}
}

func TestThemePreferencePersists(t *testing.T) {
	c := newCLI(t, "")
	c.mustExec("theme", "light")
	if out := strings.TrimSpace(c.mustExec("theme")); out != "light" {
		t.Errorf("theme: got %q, want light", out)
	}
}
