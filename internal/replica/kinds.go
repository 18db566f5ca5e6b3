package replica

import (
	"context"

	"github.com/nhle/teamboard/internal/cache"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

// kindOps binds one entity collection to its remote calls and its cache
// namespace. T is the entity, P its patch type.
type kindOps[T, P any] struct {
	kind     store.EntityKind
	items    func(r *Replica) *[]T
	id       func(T) string
	setID    func(*T, string)
	apply    func(P, *T)
	snapshot func(T) P

	// blocked reports whether v references an entity that is still
	// transient, so the backend cannot accept it yet.
	blocked func(v T) bool

	create func(ctx context.Context, b Backend, v T) (T, error)
	update func(ctx context.Context, b Backend, id string, patch P) (T, error)
	remove func(ctx context.Context, b Backend, id string) error
	save   func(ctx context.Context, c *cache.Cache, items []T) error
}

var taskOps = &kindOps[model.Task, model.TaskPatch]{
	kind:     store.KindTask,
	items:    func(r *Replica) *[]model.Task { return &r.tasks },
	id:       func(t model.Task) string { return t.ID },
	setID:    func(t *model.Task, id string) { t.ID = id },
	apply:    func(p model.TaskPatch, t *model.Task) { p.Apply(t) },
	snapshot: model.Task.Patch,
	blocked:  func(t model.Task) bool { return model.IsTransient(t.ProjectID) },
	create: func(ctx context.Context, b Backend, t model.Task) (model.Task, error) {
		return b.CreateTask(ctx, t)
	},
	update: func(ctx context.Context, b Backend, id string, p model.TaskPatch) (model.Task, error) {
		return b.UpdateTask(ctx, id, p)
	},
	remove: func(ctx context.Context, b Backend, id string) error { return b.DeleteTask(ctx, id) },
	save: func(ctx context.Context, c *cache.Cache, items []model.Task) error {
		return c.SaveTasks(ctx, items)
	},
}

var projectOps = &kindOps[model.Project, model.ProjectPatch]{
	kind:     store.KindProject,
	items:    func(r *Replica) *[]model.Project { return &r.projects },
	id:       func(p model.Project) string { return p.ID },
	setID:    func(p *model.Project, id string) { p.ID = id },
	apply:    func(pp model.ProjectPatch, p *model.Project) { pp.Apply(p) },
	snapshot: model.Project.Patch,
	blocked:  func(model.Project) bool { return false },
	create: func(ctx context.Context, b Backend, p model.Project) (model.Project, error) {
		return b.CreateProject(ctx, p)
	},
	update: func(ctx context.Context, b Backend, id string, p model.ProjectPatch) (model.Project, error) {
		return b.UpdateProject(ctx, id, p)
	},
	remove: func(ctx context.Context, b Backend, id string) error { return b.DeleteProject(ctx, id) },
	save: func(ctx context.Context, c *cache.Cache, items []model.Project) error {
		return c.SaveProjects(ctx, items)
	},
}

// noPatch stands in for kinds the backend cannot update in place.
type noPatch struct{}

var entryOps = &kindOps[model.TimeEntry, noPatch]{
	kind:     store.KindTimeEntry,
	items:    func(r *Replica) *[]model.TimeEntry { return &r.entries },
	id:       func(e model.TimeEntry) string { return e.ID },
	setID:    func(e *model.TimeEntry, id string) { e.ID = id },
	apply:    func(noPatch, *model.TimeEntry) {},
	snapshot: func(model.TimeEntry) noPatch { return noPatch{} },
	blocked:  func(e model.TimeEntry) bool { return model.IsTransient(e.TaskID) },
	create: func(ctx context.Context, b Backend, e model.TimeEntry) (model.TimeEntry, error) {
		return b.CreateTimeEntry(ctx, e)
	},
	remove: func(ctx context.Context, b Backend, id string) error { return b.DeleteTimeEntry(ctx, id) },
	save: func(ctx context.Context, c *cache.Cache, items []model.TimeEntry) error {
		return c.SaveTimeEntries(ctx, items)
	},
}

var ruleOps = &kindOps[model.AutomationRule, model.RulePatch]{
	kind:     store.KindRule,
	items:    func(r *Replica) *[]model.AutomationRule { return &r.rules },
	id:       func(a model.AutomationRule) string { return a.ID },
	setID:    func(a *model.AutomationRule, id string) { a.ID = id },
	apply:    func(p model.RulePatch, a *model.AutomationRule) { p.Apply(a) },
	snapshot: model.AutomationRule.Patch,
	blocked:  func(a model.AutomationRule) bool { return model.IsTransient(a.ProjectID) },
	create: func(ctx context.Context, b Backend, a model.AutomationRule) (model.AutomationRule, error) {
		return b.CreateAutomationRule(ctx, a)
	},
	update: func(ctx context.Context, b Backend, id string, p model.RulePatch) (model.AutomationRule, error) {
		return b.UpdateAutomationRule(ctx, id, p)
	},
	remove: func(ctx context.Context, b Backend, id string) error { return b.DeleteAutomationRule(ctx, id) },
	save: func(ctx context.Context, c *cache.Cache, items []model.AutomationRule) error {
		return c.SaveRules(ctx, items)
	},
}

var noteOps = &kindOps[model.Note, model.NotePatch]{
	kind:     store.KindNote,
	items:    func(r *Replica) *[]model.Note { return &r.notes },
	id:       func(n model.Note) string { return n.ID },
	setID:    func(n *model.Note, id string) { n.ID = id },
	apply:    func(p model.NotePatch, n *model.Note) { p.Apply(n) },
	snapshot: model.Note.Patch,
	blocked: func(n model.Note) bool {
		return model.IsTransient(n.TaskID) || model.IsTransient(n.ProjectID)
	},
	create: func(ctx context.Context, b Backend, n model.Note) (model.Note, error) {
		return b.CreateNote(ctx, n)
	},
	update: func(ctx context.Context, b Backend, id string, p model.NotePatch) (model.Note, error) {
		return b.UpdateNote(ctx, id, p)
	},
	remove: func(ctx context.Context, b Backend, id string) error { return b.DeleteNote(ctx, id) },
	save: func(ctx context.Context, c *cache.Cache, items []model.Note) error {
		return c.SaveNotes(ctx, items)
	},
}

func (o *kindOps[T, P]) key(id string) entityKey {
	return entityKey{o.kind, id}
}

func (o *kindOps[T, P]) index(r *Replica, id string) int {
	for i, v := range *o.items(r) {
		if o.id(v) == id {
			return i
		}
	}
	return -1
}

// persist writes the whole collection to its cache namespace.
func (o *kindOps[T, P]) persist(r *Replica) {
	if err := o.save(context.Background(), r.cache, *o.items(r)); err != nil {
		r.logger.Error("persisting collection failed", "kind", o.kind, "err", err)
	}
}
