package store

import (
	"context"
	"time"

	"cchain/chain"
)

// Checkpoint records the outcome of one engine verification pass: the
// chain tail and record count at the time of the pass, and whether the
// full replay found the chain intact.
type Checkpoint struct {
	ID        int64
	TailHash  string
	Records   int
	Valid     bool
	Reason    string
	CreatedAt time.Time
}

// Store is the persistence layer for the commit chain. It embeds the
// chain.Sequence contract (the engine's view of the record list) and
// adds the checkpoint operations used by the verification engine.
type Store interface {
	chain.Sequence

	// InsertCheckpoint persists the outcome of a verification pass.
	InsertCheckpoint(ctx context.Context, cp Checkpoint) error

	// LatestCheckpoint returns the most recent checkpoint, or nil when
	// none has been recorded yet.
	LatestCheckpoint(ctx context.Context) (*Checkpoint, error)

	// Close releases the underlying resources.
	Close()
}
