package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/nhle/teamboard/internal/store"
	"github.com/nhle/teamboard/tests/testutil"
)

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name    string
		pending store.Op
		next    store.Op
		want    store.Op
	}{
		{"fresh create", "", store.OpCreate, store.OpCreate},
		{"duplicate create", store.OpCreate, store.OpCreate, store.OpCreate},
		{"update folds into create", store.OpCreate, store.OpUpdate, store.OpCreate},
		{"delete cancels create", store.OpCreate, store.OpDelete, ""},
		{"update replaces update", store.OpUpdate, store.OpUpdate, store.OpUpdate},
		{"delete supersedes update", store.OpUpdate, store.OpDelete, store.OpDelete},
		{"delete is terminal", store.OpDelete, store.OpUpdate, store.OpDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pending *store.Mutation
			if tt.pending != "" {
				pending = &store.Mutation{ID: "m1", Op: tt.pending, EntityID: "e1"}
			}
			got := store.Coalesce(pending, store.Mutation{ID: "m2", Op: tt.next, EntityID: "e1"})

			if tt.want == "" {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("got nil, want %s", tt.want)
			}
			if got.Op != tt.want {
				t.Errorf("Op: got %s, want %s", got.Op, tt.want)
			}
			if pending != nil && got.ID != pending.ID {
				t.Errorf("merged mutation should keep the pending ID, got %s", got.ID)
			}
		})
	}
}

func TestReplayRank(t *testing.T) {
	if store.ReplayRank(store.KindProject) >= store.ReplayRank(store.KindTask) {
		t.Error("projects must replay before tasks")
	}
	if store.ReplayRank("unknown") <= store.ReplayRank(store.KindNote) {
		t.Error("unknown kinds must replay last")
	}
}

func newRedisStore(t *testing.T) *store.RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := store.NewRedisStore(context.Background(), mr.Addr(), "test")
	if err != nil {
		t.Fatalf("creating redis store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, s store.Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, testutil.NewTestStore(t)) })
	t.Run("redis", func(t *testing.T) { fn(t, newRedisStore(t)) })
}

func TestKeyValue(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()

		if _, err := s.Get(ctx, "ns.tasks"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("Get on empty store: got %v, want ErrNotFound", err)
		}

		if err := s.Put(ctx, "ns.tasks", []byte(`[1]`)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := s.Put(ctx, "ns.tasks", []byte(`[1,2]`)); err != nil {
			t.Fatalf("Put overwrite: %v", err)
		}
		got, err := s.Get(ctx, "ns.tasks")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != `[1,2]` {
			t.Errorf("Get: got %s, want [1,2]", got)
		}

		if _, err := s.Get(ctx, "other.tasks"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("namespaces must not collide, got %v", err)
		}

		if err := s.Delete(ctx, "ns.tasks"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, "ns.tasks"); err != nil {
			t.Errorf("Delete of missing key: %v", err)
		}
		if _, err := s.Get(ctx, "ns.tasks"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
		}
	})
}

func TestOutbox(t *testing.T) {
	backends(t, func(t *testing.T, s store.Store) {
		ctx := context.Background()
		enqueue := func(kind store.EntityKind, op store.Op, id string) {
			t.Helper()
			if err := s.EnqueueMutation(ctx, store.Mutation{Kind: kind, Op: op, EntityID: id}); err != nil {
				t.Fatalf("EnqueueMutation(%s %s %s): %v", kind, op, id, err)
			}
		}

		enqueue(store.KindTask, store.OpCreate, "tmp-1")
		enqueue(store.KindTask, store.OpUpdate, "tmp-1")
		enqueue(store.KindProject, store.OpUpdate, "p1")
		enqueue(store.KindTask, store.OpCreate, "tmp-2")
		enqueue(store.KindTask, store.OpDelete, "tmp-2")

		pending, err := s.PendingMutations(ctx)
		if err != nil {
			t.Fatalf("PendingMutations: %v", err)
		}
		if len(pending) != 2 {
			t.Fatalf("got %d pending, want 2: %+v", len(pending), pending)
		}
		if pending[0].EntityID != "tmp-1" || pending[0].Op != store.OpCreate {
			t.Errorf("first pending: got %+v, want create tmp-1", pending[0])
		}
		if pending[1].EntityID != "p1" || pending[1].Op != store.OpUpdate {
			t.Errorf("second pending: got %+v, want update p1", pending[1])
		}

		if err := s.RecordAttempt(ctx, pending[0].ID, "connection refused"); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
		if err := s.RemapEntityID(ctx, store.KindTask, "tmp-1", "42"); err != nil {
			t.Fatalf("RemapEntityID: %v", err)
		}

		pending, err = s.PendingMutations(ctx)
		if err != nil {
			t.Fatalf("PendingMutations: %v", err)
		}
		if pending[0].EntityID != "42" || pending[0].Attempts != 1 || pending[0].LastError != "connection refused" {
			t.Errorf("after attempt and remap: got %+v", pending[0])
		}

		// The remapped entity coalesces under its new id.
		enqueue(store.KindTask, store.OpUpdate, "42")
		if err := s.DeleteMutation(ctx, pending[1].ID); err != nil {
			t.Fatalf("DeleteMutation: %v", err)
		}
		if err := s.DeleteMutation(ctx, "missing"); err != nil {
			t.Errorf("DeleteMutation of missing id: %v", err)
		}

		pending, err = s.PendingMutations(ctx)
		if err != nil {
			t.Fatalf("PendingMutations: %v", err)
		}
		if len(pending) != 1 || pending[0].EntityID != "42" || pending[0].Op != store.OpCreate {
			t.Errorf("final queue: got %+v, want single create 42", pending)
		}

		if err := s.DiscardMutations(ctx, store.KindTask, "42"); err != nil {
			t.Fatalf("DiscardMutations: %v", err)
		}
		if err := s.DiscardMutations(ctx, store.KindTask, "42"); err != nil {
			t.Errorf("DiscardMutations with nothing pending: %v", err)
		}
		pending, err = s.PendingMutations(ctx)
		if err != nil {
			t.Fatalf("PendingMutations: %v", err)
		}
		if len(pending) != 0 {
			t.Errorf("after discard: got %+v, want empty queue", pending)
		}
	})
}
