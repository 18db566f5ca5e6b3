package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("key not found")

// Store is the durable backing for the local replica: whole-value
// namespaces for serialized collections, and an outbox of remote mutations
// that still need to reach the backend.
type Store interface {
	// === Namespaced values ===

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value under key in a single write.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// === Outbox ===

	// EnqueueMutation records m, coalescing it with any pending mutation
	// for the same entity (see Coalesce).
	EnqueueMutation(ctx context.Context, m Mutation) error

	// PendingMutations lists queued mutations, oldest first.
	PendingMutations(ctx context.Context) ([]Mutation, error)

	// DeleteMutation drops a mutation by ID. Missing IDs are ignored.
	DeleteMutation(ctx context.Context, id string) error

	// RecordAttempt bumps the attempt counter and stores the last error.
	RecordAttempt(ctx context.Context, id string, lastErr string) error

	// DiscardMutations drops whatever is pending for one entity.
	DiscardMutations(ctx context.Context, kind EntityKind, entityID string) error

	// RemapEntityID repoints pending mutations from a transient id to the
	// server-assigned one.
	RemapEntityID(ctx context.Context, kind EntityKind, oldID, newID string) error

	Close() error
}
