package model

import (
	"strings"

	"github.com/google/uuid"
)

// TransientPrefix marks ids generated locally for records the backend has
// not acknowledged yet.
const TransientPrefix = "tmp-"

// NewTransientID returns a fresh client-side id.
func NewTransientID() string {
	return TransientPrefix + uuid.New().String()
}

// IsTransient reports whether id was generated locally.
func IsTransient(id string) bool {
	return strings.HasPrefix(id, TransientPrefix)
}
