package replica

import (
	"context"
	"fmt"

	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/internal/store"
)

// Replay sends one queued mutation using the entity's current local copy.
// A nil result means the mutation is settled and the replica has already
// removed it from the outbox (or left it there because a newer edit now
// owns it). ErrDeferred means try again later without counting an attempt.
// ErrAbandoned means the backend refused it and the row is gone; any other
// error is the remote failure.
func (r *Replica) Replay(ctx context.Context, m store.Mutation) error {
	switch m.Kind {
	case store.KindTask:
		return taskOps.replay(ctx, r, m)
	case store.KindProject:
		return projectOps.replay(ctx, r, m)
	case store.KindTimeEntry:
		return entryOps.replay(ctx, r, m)
	case store.KindRule:
		return ruleOps.replay(ctx, r, m)
	case store.KindNote:
		return noteOps.replay(ctx, r, m)
	}

	r.logger.Warn("dropping mutation of unknown kind", "kind", m.Kind, "id", m.EntityID)
	return r.outbox.DeleteMutation(ctx, m.ID)
}

func (o *kindOps[T, P]) replay(ctx context.Context, r *Replica, m store.Mutation) error {
	switch {
	case m.Op == store.OpDelete:
		return o.replayDelete(ctx, r, m.EntityID)
	case model.IsTransient(m.EntityID):
		return o.replayCreate(ctx, r, m.EntityID)
	default:
		return o.replayUpdate(ctx, r, m.EntityID)
	}
}

func (o *kindOps[T, P]) replayCreate(ctx context.Context, r *Replica, id string) error {
	k := o.key(id)

	r.mu.Lock()
	if _, ok := r.queued[k]; !ok {
		r.mu.Unlock()
		return nil
	}
	i := o.index(r, id)
	if i < 0 {
		r.discardLocked(k)
		r.mu.Unlock()
		return nil
	}
	v := (*o.items(r))[i]
	if r.creating[k] || o.blocked(v) {
		r.mu.Unlock()
		return ErrDeferred
	}
	r.creating[k] = true
	issued := r.versions[k]
	r.mu.Unlock()

	canon, err := o.create(ctx, r.backend, v)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creating, k)
	if err != nil {
		return r.rejectedLocked(k, err)
	}
	o.confirmCreateLocked(r, id, issued, canon)
	return nil
}

func (o *kindOps[T, P]) replayUpdate(ctx context.Context, r *Replica, id string) error {
	k := o.key(id)

	r.mu.Lock()
	if _, ok := r.queued[k]; !ok {
		r.mu.Unlock()
		return nil
	}
	i := o.index(r, id)
	if i < 0 || o.update == nil {
		r.discardLocked(k)
		r.mu.Unlock()
		return nil
	}
	v := (*o.items(r))[i]
	if o.blocked(v) {
		r.mu.Unlock()
		return ErrDeferred
	}
	issued := r.versions[k]
	r.inflight[k]++
	r.mu.Unlock()

	canon, err := o.update(ctx, r.backend, id, o.snapshot(v))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.doneInflightLocked(k)
	if err != nil {
		if remote.IsNotFound(err) {
			r.logger.Warn("entity no longer exists on the backend", "kind", o.kind, "id", id)
			r.discardLocked(k)
			return nil
		}
		return r.rejectedLocked(k, err)
	}
	o.mergeLocked(r, id, issued, canon)
	return nil
}

func (o *kindOps[T, P]) replayDelete(ctx context.Context, r *Replica, id string) error {
	k := o.key(id)
	if !model.IsTransient(id) {
		if err := o.remove(ctx, r.backend, id); err != nil && !remote.IsNotFound(err) {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.rejectedLocked(k, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queued[k] == store.OpDelete {
		r.discardLocked(k)
	}
	return nil
}

// rejectedLocked abandons k when err is a refusal and passes err through
// otherwise.
func (r *Replica) rejectedLocked(k entityKey, err error) error {
	if !remote.IsRejected(err) {
		return err
	}
	r.abandonLocked(k, err)
	return fmt.Errorf("%w: %w", ErrAbandoned, err)
}
