package remote

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/teamboard/internal/model"
)

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"title":        "title",
		"assigneeIds":  "assignee_ids",
		"blockedBy":    "blocked_by",
		"sortOrder":    "sort_order",
		"commentCount": "comment_count",
		"triggerValue": "trigger_value",
	}
	for in, want := range tests {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToWireNestedAndWithoutID(t *testing.T) {
	task := model.Task{
		ID:       "tmp-1",
		Title:    "x",
		Subtasks: []model.Subtask{{ID: "s1", Title: "a"}},
	}
	payload, err := toWire(task, true)
	if err != nil {
		t.Fatalf("toWire: %v", err)
	}
	if _, ok := payload["id"]; ok {
		t.Error("create payload must not carry the transient id")
	}
	subtasks, ok := payload["subtasks"].([]any)
	if !ok || len(subtasks) != 1 {
		t.Fatalf("subtasks: got %#v", payload["subtasks"])
	}
	if _, ok := subtasks[0].(map[string]any)["id"]; !ok {
		t.Error("nested ids are kept")
	}

	status := model.StatusDone
	patch, err := toWire(model.TaskPatch{Status: &status, BlockedBy: []string{"t2"}}, false)
	if err != nil {
		t.Fatalf("toWire patch: %v", err)
	}
	if len(patch) != 2 || patch["status"] != "done" || patch["blocked_by"] == nil {
		t.Errorf("patch payload: got %#v", patch)
	}
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return tok
}

func TestUsableToken(t *testing.T) {
	now := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty", "", false},
		{"opaque", "pat_abc123", true},
		{"jwt without exp", signed(t, jwt.MapClaims{"sub": "u1"}), true},
		{"valid jwt", signed(t, jwt.MapClaims{"sub": "u1", "exp": now.Add(time.Hour).Unix()}), true},
		{"expired jwt", signed(t, jwt.MapClaims{"sub": "u1", "exp": now.Add(-time.Minute).Unix()}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usableToken(tt.token, now); got != tt.want {
				t.Errorf("usableToken = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInspectToken(t *testing.T) {
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	claims, ok := InspectToken(signed(t, jwt.MapClaims{"sub": "u7", "exp": exp.Unix()}))
	if !ok || claims.Subject != "u7" || !claims.ExpiresAt.Equal(exp) {
		t.Errorf("got %+v ok=%v", claims, ok)
	}
	if _, ok := InspectToken("not-a-jwt"); ok {
		t.Error("opaque token should not parse")
	}
}
