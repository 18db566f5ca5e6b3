package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis server. Values live under their
// own keys; the outbox is a sorted set of mutation IDs (scored by creation
// time) plus a hash indexing kind/entity pairs to IDs.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to addr and verifies the connection. prefix
// namespaces the outbox keys.
func NewRedisStore(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) queueKey() string { return s.prefix + ":outbox" }
func (s *RedisStore) indexKey() string { return s.prefix + ":outbox:index" }
func (s *RedisStore) mutationKey(id string) string {
	return s.prefix + ":outbox:m:" + id
}

func indexField(kind EntityKind, entityID string) string {
	return string(kind) + "|" + entityID
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading key %s: %w", key, err)
	}
	return value, nil
}

// Put replaces the value under key.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("writing key %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting key %s: %w", key, err)
	}
	return nil
}

// loadMutation reads a mutation through c, returning nil when it is gone.
func (s *RedisStore) loadMutation(ctx context.Context, c redis.Cmdable, id string) (*Mutation, error) {
	data, err := c.Get(ctx, s.mutationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m Mutation
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding mutation %s: %w", id, err)
	}
	return &m, nil
}

// EnqueueMutation records m, merging it with the pending entry for the same
// entity inside a WATCH transaction.
func (s *RedisStore) EnqueueMutation(ctx context.Context, m Mutation) error {
	m = newMutation(m)
	field := indexField(m.Kind, m.EntityID)

	txf := func(tx *redis.Tx) error {
		var pending *Mutation
		id, err := tx.HGet(ctx, s.indexKey(), field).Result()
		switch {
		case err == nil:
			if pending, err = s.loadMutation(ctx, tx, id); err != nil {
				return err
			}
		case !errors.Is(err, redis.Nil):
			return err
		}

		merged := Coalesce(pending, m)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if merged == nil {
				pipe.HDel(ctx, s.indexKey(), field)
				pipe.ZRem(ctx, s.queueKey(), pending.ID)
				pipe.Del(ctx, s.mutationKey(pending.ID))
				return nil
			}
			data, err := json.Marshal(merged)
			if err != nil {
				return err
			}
			pipe.Set(ctx, s.mutationKey(merged.ID), data, 0)
			if pending == nil {
				pipe.HSet(ctx, s.indexKey(), field, merged.ID)
				pipe.ZAdd(ctx, s.queueKey(), redis.Z{
					Score:  float64(merged.CreatedAt.UnixMicro()),
					Member: merged.ID,
				})
			}
			return nil
		})
		return err
	}

	if err := s.rdb.Watch(ctx, txf, s.indexKey()); err != nil {
		return fmt.Errorf("enqueueing %s %s %s: %w", m.Op, m.Kind, m.EntityID, err)
	}
	return nil
}

// PendingMutations lists queued mutations, oldest first.
func (s *RedisStore) PendingMutations(ctx context.Context) ([]Mutation, error) {
	ids, err := s.rdb.ZRange(ctx, s.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("querying pending mutations: %w", err)
	}
	out := make([]Mutation, 0, len(ids))
	for _, id := range ids {
		m, err := s.loadMutation(ctx, s.rdb, id)
		if err != nil {
			return nil, fmt.Errorf("reading mutation %s: %w", id, err)
		}
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// DeleteMutation drops a mutation by ID.
func (s *RedisStore) DeleteMutation(ctx context.Context, id string) error {
	m, err := s.loadMutation(ctx, s.rdb, id)
	if err != nil {
		return fmt.Errorf("reading mutation %s: %w", id, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if m != nil {
			pipe.HDel(ctx, s.indexKey(), indexField(m.Kind, m.EntityID))
		}
		pipe.ZRem(ctx, s.queueKey(), id)
		pipe.Del(ctx, s.mutationKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting mutation %s: %w", id, err)
	}
	return nil
}

// DiscardMutations drops the pending mutation for one entity, if any.
func (s *RedisStore) DiscardMutations(ctx context.Context, kind EntityKind, entityID string) error {
	id, err := s.rdb.HGet(ctx, s.indexKey(), indexField(kind, entityID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("discarding mutations for %s %s: %w", kind, entityID, err)
	}
	return s.DeleteMutation(ctx, id)
}

// RecordAttempt bumps the attempt counter of a mutation.
func (s *RedisStore) RecordAttempt(ctx context.Context, id string, lastErr string) error {
	m, err := s.loadMutation(ctx, s.rdb, id)
	if err != nil {
		return fmt.Errorf("reading mutation %s: %w", id, err)
	}
	if m == nil {
		return nil
	}
	m.Attempts++
	m.LastError = lastErr
	m.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding mutation %s: %w", id, err)
	}
	if err := s.rdb.Set(ctx, s.mutationKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("recording attempt for mutation %s: %w", id, err)
	}
	return nil
}

// RemapEntityID repoints the pending mutation for oldID to newID.
func (s *RedisStore) RemapEntityID(ctx context.Context, kind EntityKind, oldID, newID string) error {
	oldField := indexField(kind, oldID)
	id, err := s.rdb.HGet(ctx, s.indexKey(), oldField).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remapping %s %s: %w", kind, oldID, err)
	}
	m, err := s.loadMutation(ctx, s.rdb, id)
	if err != nil {
		return fmt.Errorf("remapping %s %s: %w", kind, oldID, err)
	}
	if m == nil {
		return nil
	}
	m.EntityID = newID
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding mutation %s: %w", id, err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.indexKey(), oldField)
		pipe.HSet(ctx, s.indexKey(), indexField(kind, newID), id)
		pipe.Set(ctx, s.mutationKey(id), data, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remapping %s %s to %s: %w", kind, oldID, newID, err)
	}
	return nil
}
