package store

import (
	"context"
	"sync"
	"time"

	"cchain/chain"
)

// MemoryStore is an in-memory Store for tests and mock deployments.
type MemoryStore struct {
	mu          sync.RWMutex
	records     []chain.CommitRecord
	checkpoints []Checkpoint
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// GetAll returns a copy of every record in chain order.
func (s *MemoryStore) GetAll(ctx context.Context) ([]chain.CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chain.CommitRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

// Tail returns the last record's hash, or the sentinel for an empty chain.
func (s *MemoryStore) Tail(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return chain.SentinelPrev, nil
	}
	return s.records[len(s.records)-1].Hash, nil
}

// Append adds one record unconditionally.
func (s *MemoryStore) Append(ctx context.Context, rec chain.CommitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// AppendWithTail adds the record only if the tail still equals expectedPrev.
func (s *MemoryStore) AppendWithTail(ctx context.Context, rec chain.CommitRecord, expectedPrev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tail := chain.SentinelPrev
	if len(s.records) > 0 {
		tail = s.records[len(s.records)-1].Hash
	}
	if tail != expectedPrev {
		return chain.ErrTailMoved
	}
	s.records = append(s.records, rec)
	return nil
}

// InsertCheckpoint records one verification outcome.
func (s *MemoryStore) InsertCheckpoint(ctx context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp.ID = int64(len(s.checkpoints) + 1)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.checkpoints = append(s.checkpoints, cp)
	return nil
}

// LatestCheckpoint returns the newest checkpoint, or nil when none exists.
func (s *MemoryStore) LatestCheckpoint(ctx context.Context) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.checkpoints) == 0 {
		return nil, nil
	}
	cp := s.checkpoints[len(s.checkpoints)-1]
	return &cp, nil
}

// Tamper overwrites the record at index i. Test helper only: the chain
// itself never mutates stored records.
func (s *MemoryStore) Tamper(i int, mutate func(*chain.CommitRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.records[i])
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

var _ Store = (*MemoryStore)(nil)
