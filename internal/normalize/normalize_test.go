package normalize

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/nhle/teamboard/internal/model"
)

func TestTaskDefaultsForMalformedInput(t *testing.T) {
	inputs := map[string]any{
		"nil":          nil,
		"string":       "not an object",
		"number":       42.0,
		"empty object": map[string]any{},
		"wrong types": map[string]any{
			"id":          7.0,
			"title":       []any{"x"},
			"status":      true,
			"priority":    3.0,
			"assigneeIds": "u1",
			"labels":      map[string]any{},
			"sortOrder":   "NaN",
			"dueDate":     "next tuesday",
		},
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			task := Task(raw)
			if task.Status != model.StatusTodo {
				t.Errorf("Status: got %q, want todo", task.Status)
			}
			if task.Priority != model.PriorityMedium {
				t.Errorf("Priority: got %q, want medium", task.Priority)
			}
			if task.AssigneeIDs == nil || task.Labels == nil || task.BlockedBy == nil ||
				task.Attachments == nil || task.Subtasks == nil {
				t.Errorf("slices must be non-nil: %+v", task)
			}
			if task.Title != "" || task.DueDate != "" || task.SortOrder != 0 {
				t.Errorf("scalars must default: %+v", task)
			}
		})
	}
}

func TestTaskWireSpellings(t *testing.T) {
	raw := Decode([]byte(`{
		"id": 12,
		"title": "Ship it",
		"status": "In Review",
		"priority": "HIGH",
		"assignees": [{"id": 3, "name": "Ana"}, {"id": "u9"}],
		"project": {"id": "p1", "name": "Core"},
		"due_date": "2026-03-01T17:00:00Z",
		"blocked_by": [12, "t4", "t4"],
		"comments": [{}, {}],
		"sort_order": "5",
		"subtasks": [{"title": "a", "completed": true}, {"done": true}, "junk"],
		"attachments": [{"name": "design.pdf", "size": 2048}, {"size": 1}]
	}`))

	got := Task(raw)
	want := model.Task{
		ID:           "12",
		Title:        "Ship it",
		Status:       model.StatusInReview,
		Priority:     model.PriorityHigh,
		AssigneeIDs:  []string{"3", "u9"},
		ProjectID:    "p1",
		DueDate:      "2026-03-01",
		Labels:       []string{},
		Attachments:  []model.Attachment{{Name: "design.pdf", Size: 2048}},
		Subtasks:     []model.Subtask{{Title: "a", Completed: true}},
		BlockedBy:    []string{"t4"},
		CommentCount: 2,
		SortOrder:    5,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Task mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestTasksFiltersMalformedElements(t *testing.T) {
	raw := Decode([]byte(`[
		{"id": "t1", "title": "ok"},
		{"id": "t2"},
		{"title": "no id"},
		{"id": "", "title": "blank id"},
		"garbage",
		null,
		{"id": 99, "title": "numeric id"}
	]`))

	tasks := Tasks(raw)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2: %+v", len(tasks), tasks)
	}
	if tasks[0].ID != "t1" || tasks[1].ID != "99" {
		t.Errorf("ids: got %q, %q", tasks[0].ID, tasks[1].ID)
	}
}

func TestCollectionsAcceptEnvelopeAndGarbage(t *testing.T) {
	if got := Projects(Decode([]byte(`{"data": [{"id": "p1", "name": "A"}]}`))); len(got) != 1 {
		t.Errorf("envelope: got %d projects, want 1", len(got))
	}
	if got := Projects(Decode([]byte(`{corrupt`))); got == nil || len(got) != 0 {
		t.Errorf("corrupt input: got %v, want empty non-nil", got)
	}
	if got := TeamMembers(nil); got == nil || len(got) != 0 {
		t.Errorf("nil input: got %v, want empty non-nil", got)
	}
}

func TestEnumDefaults(t *testing.T) {
	p := Project(map[string]any{"id": "p", "name": "n", "status": "archived", "progress": 140.0})
	if p.Status != model.ProjectActive {
		t.Errorf("project status: got %q, want active", p.Status)
	}
	if p.Progress != 100 {
		t.Errorf("progress: got %d, want clamped 100", p.Progress)
	}
	if s := Project(map[string]any{"status": "On-Hold"}).Status; s != model.ProjectOnHold {
		t.Errorf("on-hold alias: got %q", s)
	}

	m := TeamMember(map[string]any{"role": "PM", "presence": "AWAY"})
	if m.Role != model.RoleProjectManager || m.Status != model.PresenceAway {
		t.Errorf("member: got %+v", m)
	}
	if m := TeamMember(map[string]any{"role": "owner"}); m.Role != model.RoleMember || m.Status != model.PresenceOffline {
		t.Errorf("member defaults: got %+v", m)
	}

	r := AutomationRule(map[string]any{"trigger_type": "cron", "action_type": "set-status"})
	if r.Trigger != model.TriggerTaskCreated || r.Action != model.ActionSetStatus {
		t.Errorf("rule: got %+v", r)
	}
}

func TestTimeEntryCoercion(t *testing.T) {
	e := TimeEntry(Decode([]byte(`{"id": 5, "task_id": 9, "user": {"id": "u1"}, "hours": "1.256", "is_billable": "true", "date": "2026-02-27"}`)))
	want := model.TimeEntry{ID: "5", TaskID: "9", UserID: "u1", Hours: 1.26, Date: "2026-02-27", Billable: true}
	if e != want {
		t.Errorf("got %+v, want %+v", e, want)
	}
	if neg := TimeEntry(map[string]any{"hours": -3.0}); neg.Hours != 0 {
		t.Errorf("negative hours: got %v, want 0", neg.Hours)
	}
}

func TestTimestamps(t *testing.T) {
	n := Note(Decode([]byte(`{"id": "n1", "created_at": "2026-02-27T10:00:00+01:00", "updated_at": 1772186400}`)))
	wantCreated := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	if !n.CreatedAt.Equal(wantCreated) || n.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt: got %v, want %v in UTC", n.CreatedAt, wantCreated)
	}
	if n.UpdatedAt.Unix() != 1772186400 {
		t.Errorf("UpdatedAt from unix seconds: got %v", n.UpdatedAt)
	}
	if bad := Note(map[string]any{"created_at": "yesterday"}); !bad.CreatedAt.IsZero() {
		t.Errorf("bad timestamp should be zero, got %v", bad.CreatedAt)
	}
}

// roundTrip serializes v the way the cache does and parses it back.
func roundTrip[T any](t *testing.T, v T, parse func(any) T) T {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return parse(Decode(data))
}

func TestRoundTrip(t *testing.T) {
	stamp := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)

	task := model.Task{
		ID:           "t1",
		Title:        "Write docs",
		Description:  "all of them",
		Status:       model.StatusInProgress,
		Priority:     model.PriorityUrgent,
		AssigneeIDs:  []string{"u1", "u2"},
		ProjectID:    "p1",
		DueDate:      "2026-03-15",
		Labels:       []string{"docs"},
		Attachments:  []model.Attachment{{ID: "a1", Name: "x.png", URL: "https://cdn/x.png", Size: 10, Type: "image/png"}},
		Subtasks:     []model.Subtask{{ID: "s1", Title: "outline", Completed: true}},
		BlockedBy:    []string{"t0"},
		CommentCount: 4,
		SortOrder:    3,
	}
	if got := roundTrip(t, task, Task); !reflect.DeepEqual(got, task) {
		t.Errorf("task\n got: %+v\nwant: %+v", got, task)
	}

	project := model.Project{
		ID: "p1", Name: "Core", Description: "d", Status: model.ProjectOnHold, Color: "blue",
		StartDate: "2026-01-01", DueDate: "2026-06-30", MemberIDs: []string{"u1"}, Progress: 35,
	}
	if got := roundTrip(t, project, Project); !reflect.DeepEqual(got, project) {
		t.Errorf("project\n got: %+v\nwant: %+v", got, project)
	}

	member := model.TeamMember{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: model.RoleAdmin, Status: model.PresenceOnline}
	if got := roundTrip(t, member, TeamMember); got != member {
		t.Errorf("member: got %+v, want %+v", got, member)
	}

	entry := model.TimeEntry{ID: "e1", TaskID: "t1", UserID: "u1", Hours: 1.75, Date: "2026-02-27", Description: "pairing", Billable: true}
	if got := roundTrip(t, entry, TimeEntry); got != entry {
		t.Errorf("entry: got %+v, want %+v", got, entry)
	}

	rule := model.AutomationRule{
		ID: "r1", Name: "Escalate", Trigger: model.TriggerDueDate, TriggerValue: "1d",
		Action: model.ActionSetPriority, ActionValue: "urgent", Enabled: true, ProjectID: "p1",
	}
	if got := roundTrip(t, rule, AutomationRule); got != rule {
		t.Errorf("rule: got %+v, want %+v", got, rule)
	}

	note := model.Note{ID: "n1", Content: "hi", TaskID: "t1", AuthorID: "u1", CreatedAt: stamp, UpdatedAt: stamp.Add(time.Hour)}
	if got := roundTrip(t, note, Note); !reflect.DeepEqual(got, note) {
		t.Errorf("note: got %+v, want %+v", got, note)
	}

	notification := model.Notification{ID: "x1", Kind: "task_assigned", Message: "m", TaskID: "t1", Read: true, CreatedAt: stamp}
	if got := roundTrip(t, notification, Notification); !reflect.DeepEqual(got, notification) {
		t.Errorf("notification: got %+v, want %+v", got, notification)
	}
}
