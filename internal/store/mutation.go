package store

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind names a replicated collection.
type EntityKind string

const (
	KindProject   EntityKind = "project"
	KindTask      EntityKind = "task"
	KindTimeEntry EntityKind = "time_entry"
	KindRule      EntityKind = "automation_rule"
	KindNote      EntityKind = "note"
)

// replayOrder is the order in which kinds are retried, parents first so a
// task never reaches the backend before the project it references.
var replayOrder = map[EntityKind]int{
	KindProject:   0,
	KindTask:      1,
	KindTimeEntry: 2,
	KindRule:      3,
	KindNote:      4,
}

// ReplayRank returns the retry priority of k; lower goes first.
func ReplayRank(k EntityKind) int {
	if r, ok := replayOrder[k]; ok {
		return r
	}
	return len(replayOrder)
}

// Op is the remote operation a mutation needs.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Mutation is a remote write that failed and is waiting to be retried.
// It carries no payload: the replay reads the entity's current local copy,
// so a retry always sends the latest state.
type Mutation struct {
	ID        string     `json:"id" db:"id"`
	Kind      EntityKind `json:"kind" db:"kind"`
	Op        Op         `json:"op" db:"op"`
	EntityID  string     `json:"entity_id" db:"entity_id"`
	Attempts  int        `json:"attempts" db:"attempts"`
	LastError string     `json:"last_error" db:"last_error"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// newMutation fills in the ID and timestamps of m.
func newMutation(m Mutation) Mutation {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	return m
}

// Coalesce folds next into the pending mutation for the same entity so the
// outbox holds at most one row per entity. A nil result means nothing is
// left to send (a create followed by a delete never reaches the backend).
//
//	pending  next    result
//	-        X       X
//	create   create  create
//	create   update  create
//	create   delete  nil
//	update   update  update
//	update   delete  delete
//	delete   any     delete
func Coalesce(pending *Mutation, next Mutation) *Mutation {
	if pending == nil {
		return &next
	}
	merged := *pending
	merged.UpdatedAt = next.UpdatedAt

	switch pending.Op {
	case OpCreate:
		if next.Op == OpDelete {
			return nil
		}
	case OpUpdate:
		if next.Op == OpDelete {
			merged.Op = OpDelete
		}
	}
	return &merged
}
