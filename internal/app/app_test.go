package app_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/nhle/teamboard/internal/app"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/tests/testutil"
)

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &model.AppConfig{
		API:   model.APIConfig{BaseURL: baseURL, TimeoutSec: 5},
		Cache: model.CacheConfig{Driver: "sqlite", Path: filepath.Join(dir, "cache.db"), Namespace: "test"},
		Sync:  model.SyncConfig{RetryIntervalSec: 30},
		Log:   model.LogConfig{Level: "debug", Format: "text"},
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	return path
}

func open(t *testing.T, path string) *app.App {
	t.Helper()
	a, err := app.Open(context.Background(), app.Options{
		ConfigPath: path,
		LogWriter:  io.Discard,
		Tokens:     remote.StaticToken(""),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a
}

func TestOfflineCreateSurvivesRestartAndSyncs(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	path := writeConfig(t, b.URL())
	ctx := context.Background()

	b.SetDown(true)
	first := open(t, path)
	id := first.Replica.CreateTask(model.Task{Title: "Draft roadmap", ProjectID: "p1"})
	first.Replica.Wait()
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b.SetDown(false)
	second := open(t, path)
	defer second.Close()

	if _, ok := second.Replica.Task(id); !ok {
		t.Fatalf("task %s lost across restart", id)
	}

	res, err := second.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Sent != 1 || res.Pending != 0 {
		t.Errorf("sync result: got %+v, want 1 sent and nothing pending", res)
	}
	if got := len(b.Records("tasks")); got != 1 {
		t.Errorf("backend tasks: got %d, want 1", got)
	}

	tasks := second.Replica.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "Draft roadmap" || model.IsTransient(tasks[0].ID) {
		t.Errorf("replica tasks after sync: got %+v", tasks)
	}
}

func TestSyncWithoutBackendIsLocalOnly(t *testing.T) {
	a := open(t, writeConfig(t, ""))
	defer a.Close()

	id := a.Replica.CreateProject(model.Project{Name: "Offline"})
	a.Replica.Wait()

	res, err := a.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Sent != 0 || res.Pending != 1 {
		t.Errorf("sync result: got %+v, want the create still pending", res)
	}
	if _, ok := a.Replica.Project(id); !ok {
		t.Error("project dropped")
	}
	if err := a.ListenEvents(context.Background()); err == nil {
		t.Error("ListenEvents without a backend: got nil error")
	}
}
