package replica

import (
	"context"
	"slices"

	"github.com/nhle/teamboard/internal/model"
)

// === Tasks ===

// CreateTask inserts t optimistically and returns its transient id. The task
// lands at the end of its status column.
func (r *Replica) CreateTask(t model.Task) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !t.Status.Valid() {
		t.Status = model.StatusTodo
	}
	if !t.Priority.Valid() {
		t.Priority = model.PriorityMedium
	}
	t.AssigneeIDs = nonNil(t.AssigneeIDs)
	t.Labels = nonNil(t.Labels)
	t.Attachments = nonNil(t.Attachments)
	t.Subtasks = nonNil(t.Subtasks)
	t.BlockedBy = model.FilterBlockedBy("", t.BlockedBy)
	t.SortOrder = model.NextSortOrder(r.tasks, t.Status)
	return taskOps.createLocked(r, t)
}

// UpdateTask applies patch to a task. It reports whether the task exists.
// A status change without an explicit sort order moves the task to the end
// of its new column.
func (r *Replica) UpdateTask(id string, patch model.TaskPatch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := taskOps.index(r, id)
	if i < 0 {
		return false
	}
	if patch.Status != nil && patch.SortOrder == nil && *patch.Status != r.tasks[i].Status {
		order := model.NextSortOrder(r.tasks, *patch.Status)
		patch.SortOrder = &order
	}
	return taskOps.updateLocked(r, id, patch)
}

// DeleteTask removes a task. Unknown ids are a no-op.
func (r *Replica) DeleteTask(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return taskOps.deleteLocked(r, id)
}

// MoveTask places a task at index within the status column (clamped to the
// column bounds) and renumbers the affected columns 1..n. Only tasks whose
// status or position changed are sent.
func (r *Replica) MoveTask(id string, status model.TaskStatus, index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := taskOps.index(r, id)
	if i < 0 || !status.Valid() {
		return false
	}
	moved := r.tasks[i]
	cols := model.TaskColumns(r.tasks)

	target := slices.DeleteFunc(cols[status], func(t model.Task) bool { return t.ID == id })
	index = max(0, min(index, len(target)))
	target = slices.Insert(target, index, moved)

	columns := [][]model.Task{target}
	if moved.Status != status {
		source := slices.DeleteFunc(cols[moved.Status], func(t model.Task) bool { return t.ID == id })
		columns = append(columns, source)
	}

	for _, col := range columns {
		for pos, t := range col {
			order := pos + 1
			var patch model.TaskPatch
			if t.ID == id && t.Status != status {
				patch.Status = &status
			}
			if t.SortOrder != order {
				patch.SortOrder = &order
			}
			if patch.Status == nil && patch.SortOrder == nil {
				continue
			}
			taskOps.updateLocked(r, t.ID, patch)
		}
	}
	return true
}

// === Projects ===

// CreateProject inserts p optimistically and returns its transient id.
func (r *Replica) CreateProject(p model.Project) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !p.Status.Valid() {
		p.Status = model.ProjectActive
	}
	p.MemberIDs = nonNil(p.MemberIDs)
	p.Progress = model.ClampProgress(p.Progress)
	return projectOps.createLocked(r, p)
}

// UpdateProject applies patch to a project.
func (r *Replica) UpdateProject(id string, patch model.ProjectPatch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return projectOps.updateLocked(r, id, patch)
}

// DeleteProject removes a project and clears the selection if it pointed
// there.
func (r *Replica) DeleteProject(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !projectOps.deleteLocked(r, id) {
		return false
	}
	if r.selectedProject == id {
		r.selectProjectLocked("")
	}
	return true
}

// === Time entries ===

// CreateTimeEntry records a manual time entry and sends it to the backend.
func (r *Replica) CreateTimeEntry(e model.TimeEntry) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fillEntryLocked(&e)
	return entryOps.createLocked(r, e)
}

// RecordTimeEntry inserts an entry that stays on this device, such as a
// timer estimate taken while the backend was unreachable. It returns the
// entry as stored.
func (r *Replica) RecordTimeEntry(e model.TimeEntry) model.TimeEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fillEntryLocked(&e)
	if !model.IsTransient(e.ID) {
		e.ID = model.NewTransientID()
	}
	k := entryOps.key(e.ID)
	r.localOnly[k] = true
	r.versions[k]++
	r.entries = append([]model.TimeEntry{e}, r.entries...)
	entryOps.persist(r)
	return e
}

// ConfirmTimeEntry merges an entry the backend already created, such as
// the one returned when a timer stops.
func (r *Replica) ConfirmTimeEntry(e model.TimeEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := entryOps.index(r, e.ID); i >= 0 {
		r.entries[i] = e
	} else {
		r.entries = append([]model.TimeEntry{e}, r.entries...)
	}
	r.versions[entryOps.key(e.ID)]++
	entryOps.persist(r)
}

// DeleteTimeEntry removes a time entry.
func (r *Replica) DeleteTimeEntry(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.localOnly, entryOps.key(id))
	return entryOps.deleteLocked(r, id)
}

func (r *Replica) fillEntryLocked(e *model.TimeEntry) {
	e.Hours = model.RoundHours(max(e.Hours, 0))
	if e.Date == "" {
		e.Date = r.now().UTC().Format("2006-01-02")
	}
	if e.UserID == "" && r.currentUser != nil {
		e.UserID = r.currentUser.ID
	}
}

// === Automation rules ===

// CreateRule inserts an automation rule and returns its transient id.
func (r *Replica) CreateRule(rule model.AutomationRule) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !rule.Trigger.Valid() {
		rule.Trigger = model.TriggerTaskCreated
	}
	if !rule.Action.Valid() {
		rule.Action = model.ActionNotify
	}
	if rule.ProjectID == "" {
		rule.ProjectID = r.selectedProject
	}
	return ruleOps.createLocked(r, rule)
}

// UpdateRule applies patch to a rule.
func (r *Replica) UpdateRule(id string, patch model.RulePatch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ruleOps.updateLocked(r, id, patch)
}

// DeleteRule removes a rule.
func (r *Replica) DeleteRule(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ruleOps.deleteLocked(r, id)
}

// === Notes ===

// CreateNote inserts a note stamped with the current time and author.
func (r *Replica) CreateNote(n model.Note) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	if n.AuthorID == "" && r.currentUser != nil {
		n.AuthorID = r.currentUser.ID
	}
	return noteOps.createLocked(r, n)
}

// UpdateNote applies patch to a note and bumps its updated timestamp.
func (r *Replica) UpdateNote(id string, patch model.NotePatch) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := noteOps.index(r, id); i >= 0 {
		r.notes[i].UpdatedAt = r.now().UTC()
	}
	return noteOps.updateLocked(r, id, patch)
}

// DeleteNote removes a note.
func (r *Replica) DeleteNote(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return noteOps.deleteLocked(r, id)
}

// === Notifications and preferences ===

// ReceiveNotification prepends n unless a notification with the same id is
// already present. It reports whether n was added.
func (r *Replica) ReceiveNotification(n model.Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" || slices.ContainsFunc(r.notifications, func(x model.Notification) bool { return x.ID == n.ID }) {
		return false
	}
	r.notifications = append([]model.Notification{n}, r.notifications...)
	r.notifyLocked(Notice{Level: NoticeInfo, Message: n.Message})
	return true
}

// MarkNotificationRead flags a notification as read locally and tells the
// backend. A remote failure is logged only.
func (r *Replica) MarkNotificationRead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.notifications, func(x model.Notification) bool { return x.ID == id })
	if i < 0 {
		return false
	}
	r.notifications[i].Read = true
	r.goAsync(func(ctx context.Context) {
		if err := r.backend.MarkNotificationRead(ctx, id); err != nil {
			r.logger.Warn("marking notification read failed", "id", id, "err", err)
		}
	})
	return true
}

// SetTheme persists the theme preference.
func (r *Replica) SetTheme(theme string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.theme = theme
	if err := r.cache.SaveTheme(context.Background(), theme); err != nil {
		r.logger.Error("persisting theme failed", "err", err)
	}
}

// SelectProject persists the selected project. An empty id clears it.
func (r *Replica) SelectProject(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectProjectLocked(id)
}

func (r *Replica) selectProjectLocked(id string) {
	r.selectedProject = id
	if err := r.cache.SaveSelectedProject(context.Background(), id); err != nil {
		r.logger.Error("persisting selected project failed", "err", err)
	}
}

// SetCurrentUser replaces the signed-in user. nil signs out.
func (r *Replica) SetCurrentUser(u *model.CurrentUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setCurrentUserLocked(u)
}

func (r *Replica) setCurrentUserLocked(u *model.CurrentUser) {
	if u != nil {
		copied := *u
		u = &copied
	}
	r.currentUser = u
	if err := r.cache.SaveCurrentUser(context.Background(), u); err != nil {
		r.logger.Error("persisting current user failed", "err", err)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
