// Package replica holds the client's optimistic copy of the backend's
// entities.
//
// Every mutation is applied to the in-memory collections and persisted
// through the cache before the call returns. The matching remote call runs
// in the background and is reconciled when it resolves: a confirmed create
// swaps the transient id for the server's, a confirmed update merges the
// canonical record unless a newer local edit happened since it was issued,
// and any failure leaves local state as it is and queues the mutation in
// the outbox for the retrier.
package replica

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/teamboard/internal/cache"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/store"
)

// ErrDeferred is returned by Replay when a mutation cannot be sent yet,
// either because it references an entity the backend has not confirmed or
// because the same entity is already in flight.
var ErrDeferred = errors.New("mutation deferred")

// ErrAbandoned is returned by Replay when the backend refused a mutation
// outright. The outbox row is gone and the entity is flagged stale.
var ErrAbandoned = errors.New("mutation abandoned")

type entityKey struct {
	kind store.EntityKind
	id   string
}

// Replica is the client-side copy of the backend's state. It is safe for
// concurrent use.
type Replica struct {
	mu sync.Mutex

	tasks         []model.Task
	projects      []model.Project
	members       []model.TeamMember
	entries       []model.TimeEntry
	rules         []model.AutomationRule
	notes         []model.Note
	notifications []model.Notification

	currentUser     *model.CurrentUser
	theme           string
	selectedProject string

	// versions counts local edits per entity. A remote confirmation is only
	// merged when the count is unchanged since its request was issued.
	versions map[entityKey]uint64
	creating map[entityKey]bool
	inflight map[entityKey]int
	deleting map[entityKey]bool

	// localOnly marks records that are never sent, such as a timer
	// estimate recorded while the backend was unreachable.
	localOnly map[entityKey]bool

	// queued mirrors the outbox: the coalesced op pending per entity.
	queued map[entityKey]store.Op

	// confirmed maps transient ids to the ids the backend assigned.
	confirmed map[entityKey]string

	// stale holds why the backend refused an entity's last mutation. The
	// local copy is kept but no longer synced until it is edited again.
	stale map[entityKey]string

	backend  Backend
	cache    *cache.Cache
	outbox   store.Store
	notifier Notifier
	logger   *log.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Replica.
type Option func(*Replica)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(r *Replica) { r.notifier = n }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Replica) { r.logger = logging.OrDiscard(l) }
}

// WithNow overrides the clock used for local timestamps.
func WithNow(now func() time.Time) Option {
	return func(r *Replica) { r.now = now }
}

// New rehydrates a Replica from the cache and the outbox.
//
// Transient entities found without a pending create (the process exited
// before their create resolved) are queued again, except time entries:
// a transient time entry with nothing pending is a local-only estimate and
// is never sent.
func New(ctx context.Context, backend Backend, c *cache.Cache, outbox store.Store, opts ...Option) *Replica {
	r := &Replica{
		versions:  make(map[entityKey]uint64),
		creating:  make(map[entityKey]bool),
		inflight:  make(map[entityKey]int),
		deleting:  make(map[entityKey]bool),
		localOnly: make(map[entityKey]bool),
		queued:    make(map[entityKey]store.Op),
		confirmed: make(map[entityKey]string),
		stale:     make(map[entityKey]string),
		backend:   backend,
		cache:     c,
		outbox:    outbox,
		notifier:  NotifierFunc(func(Notice) {}),
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	snap := c.Load(ctx)
	r.tasks = snap.Tasks
	r.projects = snap.Projects
	r.members = snap.Members
	r.entries = snap.TimeEntries
	r.rules = snap.Rules
	r.notes = snap.Notes
	r.notifications = []model.Notification{}
	r.currentUser = snap.CurrentUser
	r.theme = snap.Theme
	r.selectedProject = snap.SelectedProject

	pending, err := outbox.PendingMutations(ctx)
	if err != nil {
		r.logger.Warn("outbox unreadable, starting with an empty queue", "err", err)
	}
	for _, m := range pending {
		k := entityKey{m.Kind, m.EntityID}
		prev, ok := r.queued[k]
		var p *store.Mutation
		if ok {
			p = &store.Mutation{Op: prev}
		}
		if merged := store.Coalesce(p, m); merged != nil {
			r.queued[k] = merged.Op
		}
	}

	r.mu.Lock()
	requeueTransient(r, taskOps)
	requeueTransient(r, projectOps)
	requeueTransient(r, ruleOps)
	requeueTransient(r, noteOps)
	for _, e := range r.entries {
		k := entryOps.key(e.ID)
		if _, ok := r.queued[k]; !ok && model.IsTransient(e.ID) {
			r.localOnly[k] = true
		}
	}
	r.mu.Unlock()

	r.logger.Debug("replica loaded",
		"tasks", len(r.tasks), "projects", len(r.projects), "pending", len(r.queued))
	return r
}

func requeueTransient[T, P any](r *Replica, o *kindOps[T, P]) {
	for _, v := range *o.items(r) {
		id := o.id(v)
		if !model.IsTransient(id) {
			continue
		}
		if _, ok := r.queued[o.key(id)]; ok {
			continue
		}
		r.enqueueLocked(store.Mutation{Kind: o.kind, Op: store.OpCreate, EntityID: id})
	}
}

// Wait blocks until every background remote call has resolved.
func (r *Replica) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight remote calls and waits for them to settle.
// The Replica must not be mutated afterwards.
func (r *Replica) Close() {
	r.cancel()
	r.wg.Wait()
}

// goAsync runs fn in a tracked goroutine.
func (r *Replica) goAsync(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(r.ctx)
	}()
}

func (r *Replica) notifyLocked(n Notice) {
	switch n.Level {
	case NoticeError:
		r.logger.Error(n.Message, "kind", n.Kind, "id", n.EntityID)
	case NoticeWarning:
		r.logger.Warn(n.Message, "kind", n.Kind, "id", n.EntityID)
	}
	r.notifier.Notify(n)
}

// enqueueLocked records m in the outbox and in the in-memory mirror.
func (r *Replica) enqueueLocked(m store.Mutation) {
	k := entityKey{m.Kind, m.EntityID}
	var pending *store.Mutation
	if op, ok := r.queued[k]; ok {
		pending = &store.Mutation{Op: op}
	}
	if merged := store.Coalesce(pending, m); merged != nil {
		r.queued[k] = merged.Op
	} else {
		delete(r.queued, k)
	}
	if err := r.outbox.EnqueueMutation(context.Background(), m); err != nil {
		r.logger.Error("queueing mutation failed", "kind", m.Kind, "op", m.Op, "id", m.EntityID, "err", err)
	}
}

// discardLocked drops whatever is pending for k.
func (r *Replica) discardLocked(k entityKey) {
	if _, ok := r.queued[k]; !ok {
		return
	}
	delete(r.queued, k)
	if err := r.outbox.DiscardMutations(context.Background(), k.kind, k.id); err != nil {
		r.logger.Error("discarding mutation failed", "kind", k.kind, "id", k.id, "err", err)
	}
}

// abandonLocked gives up on whatever is pending for k after the backend
// refused it.
func (r *Replica) abandonLocked(k entityKey, cause error) {
	r.discardLocked(k)
	r.stale[k] = cause.Error()
	r.notifyLocked(Notice{
		Level:    NoticeWarning,
		Message:  fmt.Sprintf("%s was rejected by the backend and will not sync: %v", kindLabel(k.kind), cause),
		Kind:     k.kind,
		EntityID: k.id,
	})
}

// Abandon drops m from the outbox and flags its entity stale. The retrier
// calls it when a mutation keeps failing.
func (r *Replica) Abandon(m store.Mutation, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandonLocked(entityKey{m.Kind, m.EntityID}, cause)
}

// Stale reports whether the backend refused an entity's last mutation, and
// why.
func (r *Replica) Stale(kind store.EntityKind, id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.stale[entityKey{kind, id}]
	return reason, ok
}

// dirtyLocked reports whether the local copy of an entity must win over a
// freshly listed server copy.
func (r *Replica) dirtyLocked(k entityKey, before map[entityKey]uint64) bool {
	if model.IsTransient(k.id) || r.creating[k] || r.inflight[k] > 0 {
		return true
	}
	if _, ok := r.queued[k]; ok {
		return true
	}
	return r.versions[k] != before[k]
}

// IsPending reports whether an entity has local changes the backend has
// not confirmed yet.
func (r *Replica) IsPending(kind store.EntityKind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := entityKey{kind, id}
	if _, ok := r.stale[k]; ok {
		return false
	}
	return r.dirtyLocked(k, r.versions)
}

// ResolveID returns the id an entity has now. A transient id the backend
// has confirmed during this session resolves to the server id; any other id
// is returned unchanged.
func (r *Replica) ResolveID(kind store.EntityKind, id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if newID, ok := r.confirmed[entityKey{kind, id}]; ok {
		return newID
	}
	return id
}

// PendingCount returns the number of entities with a queued mutation.
func (r *Replica) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queued)
}

func kindLabel(k store.EntityKind) string {
	return strings.ReplaceAll(string(k), "_", " ")
}

// === Accessors ===

// Tasks returns a copy of the task collection.
func (r *Replica) Tasks() []model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tasks)
}

// Task looks up one task.
func (r *Replica) Task(id string) (model.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := taskOps.index(r, id); i >= 0 {
		return r.tasks[i], true
	}
	return model.Task{}, false
}

// Columns returns the kanban board: tasks grouped by status, each column in
// sort order.
func (r *Replica) Columns() map[model.TaskStatus][]model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.TaskColumns(r.tasks)
}

// Projects returns a copy of the project collection.
func (r *Replica) Projects() []model.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.projects)
}

// Project looks up one project.
func (r *Replica) Project(id string) (model.Project, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := projectOps.index(r, id); i >= 0 {
		return r.projects[i], true
	}
	return model.Project{}, false
}

// ProjectProgress returns the derived completion percentage of a project.
func (r *Replica) ProjectProgress(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := projectOps.index(r, id)
	if i < 0 {
		return 0
	}
	return r.projects[i].EffectiveProgress(r.tasks)
}

// Members returns a copy of the team.
func (r *Replica) Members() []model.TeamMember {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members)
}

// TimeEntries returns a copy of the time entry collection.
func (r *Replica) TimeEntries() []model.TimeEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// Rules returns a copy of the automation rules.
func (r *Replica) Rules() []model.AutomationRule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rules)
}

// Notes returns a copy of the notes.
func (r *Replica) Notes() []model.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notes)
}

// Notifications returns the current user's notifications, newest first.
func (r *Replica) Notifications() []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notifications)
}

// CurrentUser returns the signed-in user, or nil when anonymous.
func (r *Replica) CurrentUser() *model.CurrentUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.currentUser == nil {
		return nil
	}
	u := *r.currentUser
	return &u
}

// Theme returns the persisted theme preference.
func (r *Replica) Theme() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.theme
}

// SelectedProject returns the persisted project selection.
func (r *Replica) SelectedProject() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedProject
}
