package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnqueueMutation records m, merging it with the pending row for the same
// entity.
func (s *SQLiteStore) EnqueueMutation(ctx context.Context, m Mutation) error {
	m = newMutation(m)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var pending *Mutation
	var existing Mutation
	err = tx.GetContext(ctx, &existing,
		"SELECT * FROM pending_mutations WHERE kind = ? AND entity_id = ?",
		m.Kind, m.EntityID,
	)
	switch {
	case err == nil:
		pending = &existing
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("reading pending %s %s: %w", m.Kind, m.EntityID, err)
	}

	merged := Coalesce(pending, m)
	switch {
	case merged == nil:
		_, err = tx.ExecContext(ctx, "DELETE FROM pending_mutations WHERE id = ?", pending.ID)
	case pending == nil:
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO pending_mutations (
				id, kind, op, entity_id, attempts, last_error, created_at, updated_at
			) VALUES (
				:id, :kind, :op, :entity_id, :attempts, :last_error, :created_at, :updated_at
			)`, merged)
	default:
		_, err = tx.ExecContext(ctx,
			"UPDATE pending_mutations SET op = ?, updated_at = ? WHERE id = ?",
			merged.Op, merged.UpdatedAt, merged.ID,
		)
	}
	if err != nil {
		return fmt.Errorf("enqueueing %s %s %s: %w", m.Op, m.Kind, m.EntityID, err)
	}

	return tx.Commit()
}

// PendingMutations lists queued mutations, oldest first.
func (s *SQLiteStore) PendingMutations(ctx context.Context) ([]Mutation, error) {
	var out []Mutation
	err := s.db.SelectContext(ctx, &out,
		"SELECT * FROM pending_mutations ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("querying pending mutations: %w", err)
	}
	return out, nil
}

// DeleteMutation drops a mutation by ID.
func (s *SQLiteStore) DeleteMutation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_mutations WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting mutation %s: %w", id, err)
	}
	return nil
}

// DiscardMutations drops the pending row for one entity, if any.
func (s *SQLiteStore) DiscardMutations(ctx context.Context, kind EntityKind, entityID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_mutations WHERE kind = ? AND entity_id = ?", kind, entityID)
	if err != nil {
		return fmt.Errorf("discarding mutations for %s %s: %w", kind, entityID, err)
	}
	return nil
}

// RecordAttempt bumps the attempt counter of a mutation.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, id string, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pending_mutations
		SET attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?`,
		lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("recording attempt for mutation %s: %w", id, err)
	}
	return nil
}

// RemapEntityID repoints pending mutations from oldID to newID.
func (s *SQLiteStore) RemapEntityID(ctx context.Context, kind EntityKind, oldID, newID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE pending_mutations SET entity_id = ? WHERE kind = ? AND entity_id = ?",
		newID, kind, oldID,
	)
	if err != nil {
		return fmt.Errorf("remapping %s %s to %s: %w", kind, oldID, newID, err)
	}
	return nil
}
