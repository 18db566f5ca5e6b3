package replica

import (
	"context"
	"fmt"
	"slices"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/internal/store"
)

// createLocked inserts v at the head of its collection under a fresh
// transient id and starts the remote create.
func (o *kindOps[T, P]) createLocked(r *Replica, v T) string {
	id := model.NewTransientID()
	o.setID(&v, id)
	items := o.items(r)
	*items = append([]T{v}, *items...)
	r.versions[o.key(id)]++
	o.persist(r)

	if o.blocked(v) {
		r.logger.Debug("create waits for its parent", "kind", o.kind, "id", id)
		r.enqueueLocked(store.Mutation{Kind: o.kind, Op: store.OpCreate, EntityID: id})
		return id
	}
	o.launchCreate(r, id)
	return id
}

func (o *kindOps[T, P]) launchCreate(r *Replica, id string) {
	i := o.index(r, id)
	if i < 0 {
		return
	}
	k := o.key(id)
	v := (*o.items(r))[i]
	issued := r.versions[k]
	r.creating[k] = true

	r.goAsync(func(ctx context.Context) {
		canon, err := o.create(ctx, r.backend, v)

		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.creating, k)
		if err != nil {
			o.createFailedLocked(r, id, err)
			return
		}
		o.confirmCreateLocked(r, id, issued, canon)
	})
}

func (o *kindOps[T, P]) createFailedLocked(r *Replica, id string, err error) {
	if o.index(r, id) < 0 {
		return
	}
	if remote.IsRejected(err) {
		r.abandonLocked(o.key(id), err)
		return
	}
	r.logger.Warn("remote create failed", "kind", o.kind, "id", id, "err", err)
	r.enqueueLocked(store.Mutation{Kind: o.kind, Op: store.OpCreate, EntityID: id})
	r.notifyLocked(Notice{
		Level:    NoticeWarning,
		Message:  fmt.Sprintf("%s saved locally; it will sync when the backend is reachable", kindLabel(o.kind)),
		Kind:     o.kind,
		EntityID: id,
	})
}

// confirmCreateLocked reconciles a successful create. The canonical record
// replaces the transient one unless it was edited meanwhile, in which case
// only the id is swapped and the newer local state is pushed.
func (o *kindOps[T, P]) confirmCreateLocked(r *Replica, id string, issued uint64, canon T) {
	k := o.key(id)
	newID := o.id(canon)
	r.discardLocked(k)

	// A refresh may already have listed the committed record under its
	// server id. The transient row carries the local edits, so it wins.
	if j := o.index(r, newID); j >= 0 && newID != id {
		items := o.items(r)
		*items = slices.Delete(*items, j, j+1)
		o.persist(r)
	}

	i := o.index(r, id)
	if i < 0 {
		r.logger.Debug("created entity was deleted locally", "kind", o.kind, "id", newID)
		o.launchRemove(r, newID)
		return
	}

	items := o.items(r)
	stale := r.versions[k] != issued
	if stale {
		o.setID(&(*items)[i], newID)
	} else {
		(*items)[i] = canon
	}
	r.remapLocked(o.kind, id, newID)
	o.persist(r)
	r.logger.Debug("create confirmed", "kind", o.kind, "transient", id, "id", newID)

	if stale && o.update != nil {
		if i = o.index(r, newID); i >= 0 {
			o.launchUpdate(r, newID, o.snapshot((*items)[i]))
		}
	}
}

// updateLocked applies patch locally and mirrors it remotely. It reports
// whether the entity exists.
func (o *kindOps[T, P]) updateLocked(r *Replica, id string, patch P) bool {
	i := o.index(r, id)
	if i < 0 {
		return false
	}
	items := o.items(r)
	o.apply(patch, &(*items)[i])
	k := o.key(id)
	r.versions[k]++
	o.persist(r)
	_, wasStale := r.stale[k]
	delete(r.stale, k)

	v := (*items)[i]
	switch {
	case model.IsTransient(id):
		// Folded into the pending create, which reads the latest copy. A
		// refused create has nothing pending, so the edit starts a new one.
		if wasStale && !r.creating[k] && !o.blocked(v) {
			o.launchCreate(r, id)
		}
	case o.blocked(v):
		r.enqueueLocked(store.Mutation{Kind: o.kind, Op: store.OpUpdate, EntityID: id})
	default:
		if _, queued := r.queued[k]; queued {
			// An earlier edit never reached the backend; send everything.
			patch = o.snapshot(v)
		}
		o.launchUpdate(r, id, patch)
	}
	return true
}

func (o *kindOps[T, P]) launchUpdate(r *Replica, id string, patch P) {
	k := o.key(id)
	issued := r.versions[k]
	r.inflight[k]++

	r.goAsync(func(ctx context.Context) {
		canon, err := o.update(ctx, r.backend, id, patch)

		r.mu.Lock()
		defer r.mu.Unlock()
		r.doneInflightLocked(k)
		if err != nil {
			o.updateFailedLocked(r, id, err)
			return
		}
		o.mergeLocked(r, id, issued, canon)
	})
}

func (o *kindOps[T, P]) updateFailedLocked(r *Replica, id string, err error) {
	if o.index(r, id) < 0 {
		return
	}
	if remote.IsNotFound(err) {
		r.logger.Warn("entity no longer exists on the backend", "kind", o.kind, "id", id)
		return
	}
	if remote.IsRejected(err) {
		r.abandonLocked(o.key(id), err)
		return
	}
	r.logger.Warn("remote update failed, keeping local edit", "kind", o.kind, "id", id, "err", err)
	r.enqueueLocked(store.Mutation{Kind: o.kind, Op: store.OpUpdate, EntityID: id})
}

// mergeLocked replaces the local copy with canon only if the entity has not
// been edited since the request was issued. It reports whether it merged.
func (o *kindOps[T, P]) mergeLocked(r *Replica, id string, issued uint64, canon T) bool {
	k := o.key(id)
	i := o.index(r, id)
	if i < 0 || r.versions[k] != issued || o.id(canon) != id {
		r.logger.Debug("skipping stale confirmation", "kind", o.kind, "id", id)
		return false
	}
	(*o.items(r))[i] = canon
	r.discardLocked(k)
	o.persist(r)
	return true
}

// deleteLocked removes the entity locally. Deleting an unknown id is a
// no-op. Entities the backend never saw are not sent.
func (o *kindOps[T, P]) deleteLocked(r *Replica, id string) bool {
	i := o.index(r, id)
	if i < 0 {
		return false
	}
	items := o.items(r)
	*items = append((*items)[:i:i], (*items)[i+1:]...)
	k := o.key(id)
	r.versions[k]++
	o.persist(r)
	delete(r.stale, k)

	if model.IsTransient(id) {
		// A queued create is cancelled; an in-flight one cleans up after
		// itself when it resolves.
		if r.queued[k] == store.OpCreate {
			r.enqueueLocked(store.Mutation{Kind: o.kind, Op: store.OpDelete, EntityID: id})
		}
		return true
	}
	o.launchRemove(r, id)
	return true
}

func (o *kindOps[T, P]) launchRemove(r *Replica, id string) {
	k := o.key(id)
	r.deleting[k] = true

	r.goAsync(func(ctx context.Context) {
		err := o.remove(ctx, r.backend, id)

		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.deleting, k)
		if err == nil || remote.IsNotFound(err) {
			r.discardLocked(k)
			return
		}
		if remote.IsRejected(err) {
			r.abandonLocked(k, err)
			return
		}
		r.logger.Warn("remote delete failed", "kind", o.kind, "id", id, "err", err)
		r.enqueueLocked(store.Mutation{Kind: o.kind, Op: store.OpDelete, EntityID: id})
	})
}

// touchLocked re-sends an entity whose references were rewritten: a
// confirmed entity pushes its full copy, a transient one whose parent is now
// confirmed starts its create.
func (o *kindOps[T, P]) touchLocked(r *Replica, i int) {
	v := (*o.items(r))[i]
	id := o.id(v)
	k := o.key(id)
	r.versions[k]++

	switch {
	case o.blocked(v), r.localOnly[k]:
	case model.IsTransient(id):
		if !r.creating[k] {
			o.launchCreate(r, id)
		}
	case o.update != nil:
		o.launchUpdate(r, id, o.snapshot(v))
	}
}

func (r *Replica) doneInflightLocked(k entityKey) {
	if r.inflight[k] <= 1 {
		delete(r.inflight, k)
		return
	}
	r.inflight[k]--
}
