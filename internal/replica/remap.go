package replica

import (
	"context"
	"slices"

	"github.com/nhle/teamboard/internal/store"
)

// remapLocked moves everything keyed by a transient id to the id the
// backend assigned: edit versions, the outbox row, and references held by
// other entities. Dependents that changed are re-sent.
func (r *Replica) remapLocked(kind store.EntityKind, oldID, newID string) {
	if oldID == newID {
		return
	}
	oldKey, newKey := entityKey{kind, oldID}, entityKey{kind, newID}
	r.confirmed[oldKey] = newID
	r.versions[newKey] = r.versions[oldKey]
	delete(r.versions, oldKey)
	if op, ok := r.queued[oldKey]; ok {
		r.queued[newKey] = op
		delete(r.queued, oldKey)
		if err := r.outbox.RemapEntityID(context.Background(), kind, oldID, newID); err != nil {
			r.logger.Error("remapping outbox entry failed", "kind", kind, "id", oldID, "err", err)
		}
	}

	switch kind {
	case store.KindProject:
		r.remapProjectLocked(oldID, newID)
	case store.KindTask:
		r.remapTaskLocked(oldID, newID)
	}
}

func (r *Replica) remapProjectLocked(oldID, newID string) {
	if r.selectedProject == oldID {
		r.selectedProject = newID
		if err := r.cache.SaveSelectedProject(context.Background(), newID); err != nil {
			r.logger.Error("persisting selected project failed", "err", err)
		}
	}

	var touched []int
	for i := range r.tasks {
		if r.tasks[i].ProjectID == oldID {
			r.tasks[i].ProjectID = newID
			touched = append(touched, i)
		}
	}
	touchAll(r, taskOps, touched)

	touched = touched[:0]
	for i := range r.rules {
		if r.rules[i].ProjectID == oldID {
			r.rules[i].ProjectID = newID
			touched = append(touched, i)
		}
	}
	touchAll(r, ruleOps, touched)

	touched = touched[:0]
	for i := range r.notes {
		if r.notes[i].ProjectID == oldID {
			r.notes[i].ProjectID = newID
			touched = append(touched, i)
		}
	}
	touchAll(r, noteOps, touched)
}

func (r *Replica) remapTaskLocked(oldID, newID string) {
	var touched []int
	for i := range r.tasks {
		if j := slices.Index(r.tasks[i].BlockedBy, oldID); j >= 0 {
			blockedBy := slices.Clone(r.tasks[i].BlockedBy)
			blockedBy[j] = newID
			r.tasks[i].SetBlockedBy(blockedBy)
			touched = append(touched, i)
		}
	}
	touchAll(r, taskOps, touched)

	touched = touched[:0]
	for i := range r.entries {
		if r.entries[i].TaskID == oldID {
			r.entries[i].TaskID = newID
			touched = append(touched, i)
		}
	}
	touchAll(r, entryOps, touched)

	touched = touched[:0]
	for i := range r.notes {
		if r.notes[i].TaskID == oldID {
			r.notes[i].TaskID = newID
			touched = append(touched, i)
		}
	}
	touchAll(r, noteOps, touched)
}

func touchAll[T, P any](r *Replica, o *kindOps[T, P], indexes []int) {
	if len(indexes) == 0 {
		return
	}
	for _, i := range indexes {
		o.touchLocked(r, i)
	}
	o.persist(r)
}
