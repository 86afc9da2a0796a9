// Package checkpoint persists per-thread agent state between invocations.
//
// State is opaque JSON; the store never interprets it. Drivers:
//   - "memory":   process-local map (default)
//   - "sqlite":   modernc.org/sqlite through sqlx
//   - "postgres": pgx stdlib driver through sqlx
//   - "redis":    go-redis, one key per thread
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Delete for an unknown thread.
var ErrNotFound = errors.New("checkpoint: not found")

// Checkpoint is the latest saved state of one conversation thread.
type Checkpoint struct {
	ThreadID  string          `json:"thread_id"`
	Step      int             `json:"step"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store keeps the latest checkpoint per thread.
type Store interface {
	Get(ctx context.Context, threadID string) (*Checkpoint, error)
	// Put replaces the thread's checkpoint. A zero UpdatedAt is set to now.
	Put(ctx context.Context, cp *Checkpoint) error
	Delete(ctx context.Context, threadID string) error
	// List returns all checkpoints, most recently updated first.
	List(ctx context.Context) ([]Checkpoint, error)
	Close() error
}

func stamp(cp *Checkpoint) {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
}
