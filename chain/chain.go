// Package chain implements the tamper-evident commit chain.
//
// Every recorded action becomes a CommitRecord whose hash covers the
// record's timestamp, user, message and the hash of the preceding
// record. Modifying any stored record therefore invalidates the chain
// from that point forward, which Verify detects by replaying the whole
// sequence and recomputing hashes.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Sequence is the persisted, ordered record list the engine reads and
// appends to. The engine never caches records: the store owns them and
// every Verify/Stats call reads the sequence in full.
type Sequence interface {
	// GetAll returns every record in append order.
	GetAll(ctx context.Context) ([]CommitRecord, error)

	// Tail returns the hash of the last record, or SentinelPrev when
	// the sequence is empty.
	Tail(ctx context.Context) (string, error)

	// Append adds one record unconditionally.
	Append(ctx context.Context, rec CommitRecord) error

	// AppendWithTail adds one record only if the current tail still
	// equals expectedPrev, otherwise it returns ErrTailMoved.
	AppendWithTail(ctx context.Context, rec CommitRecord, expectedPrev string) error
}

// GuardMode selects how Append handles the read-then-write window
// between reading the tail and writing the new record.
type GuardMode int

const (
	// GuardNone performs a plain read-then-append. Two concurrent
	// callers can both observe the same tail and fork the chain; this
	// matches the behavior the chain historically had.
	GuardNone GuardMode = iota

	// GuardMutex serializes appends within this process.
	GuardMutex

	// GuardCompareAppend asks the store to reject the append when the
	// tail moved, surfacing ErrTailMoved instead of forking.
	GuardCompareAppend
)

// ParseGuardMode maps a configuration string to a GuardMode.
func ParseGuardMode(s string) (GuardMode, error) {
	switch s {
	case "", "none":
		return GuardNone, nil
	case "mutex":
		return GuardMutex, nil
	case "compare-append":
		return GuardCompareAppend, nil
	default:
		return GuardNone, fmt.Errorf("unknown chain guard mode: %q", s)
	}
}

// CommitChain produces new tamper-evident records and validates the
// integrity of an existing sequence. It holds no record state of its
// own; construct one at startup and pass it to callers.
type CommitChain struct {
	seq    Sequence
	digest Digest
	now    func() time.Time
	guard  GuardMode
	mu     sync.Mutex
}

// Option configures a CommitChain.
type Option func(*CommitChain)

// WithDigest replaces the default SHA-256 digest.
func WithDigest(d Digest) Option {
	return func(c *CommitChain) { c.digest = d }
}

// WithClock replaces the time source. Timestamps are always rendered as
// RFC3339Nano in UTC regardless of the clock's location.
func WithClock(now func() time.Time) Option {
	return func(c *CommitChain) { c.now = now }
}

// WithGuard selects the append guard mode.
func WithGuard(g GuardMode) Option {
	return func(c *CommitChain) { c.guard = g }
}

// New creates a CommitChain over the given sequence store.
func New(seq Sequence, opts ...Option) *CommitChain {
	c := &CommitChain{
		seq:    seq,
		digest: SHA256Digest{},
		now:    time.Now,
		guard:  GuardNone,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Append records one action and returns the new record's hash.
// An empty user is recorded as AnonymousUser. The hash covers
// timestamp+user+message+prev concatenated without separators, so two
// appends with identical inputs at different instants produce distinct
// hashes. Digest and store failures propagate without retry and without
// a partial record being written.
func (c *CommitChain) Append(ctx context.Context, commitType, message, user string) (string, error) {
	rec, err := c.AppendRecord(ctx, commitType, message, user)
	if err != nil {
		return "", err
	}
	return rec.Hash, nil
}

// AppendRecord is Append returning the full record as stored.
func (c *CommitChain) AppendRecord(ctx context.Context, commitType, message, user string) (CommitRecord, error) {
	if user == "" {
		user = AnonymousUser
	}

	if c.guard == GuardMutex {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	prev, err := c.seq.Tail(ctx)
	if err != nil {
		return CommitRecord{}, fmt.Errorf("%w: reading tail: %v", ErrStore, err)
	}

	timestamp := c.now().UTC().Format(time.RFC3339Nano)
	hash, err := c.digest.Sum(timestamp + user + message + prev)
	if err != nil {
		return CommitRecord{}, fmt.Errorf("%w: %v", ErrDigest, err)
	}

	rec := CommitRecord{
		Hash:      hash,
		Type:      commitType,
		Message:   message,
		User:      user,
		Timestamp: timestamp,
		Prev:      prev,
	}

	if c.guard == GuardCompareAppend {
		err = c.seq.AppendWithTail(ctx, rec, prev)
	} else {
		err = c.seq.Append(ctx, rec)
	}
	if err != nil {
		if errors.Is(err, ErrTailMoved) {
			return CommitRecord{}, err
		}
		return CommitRecord{}, fmt.Errorf("%w: appending record: %v", ErrStore, err)
	}
	return rec, nil
}

// Verify walks the full sequence and reports the first inconsistency.
// It is read-only, never repairs anything, and stops at the first break.
// Its error return is reserved for digest and store faults; a broken
// chain is reported through the result value.
func (c *CommitChain) Verify(ctx context.Context) (VerificationResult, error) {
	records, err := c.seq.GetAll(ctx)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("%w: reading sequence: %v", ErrStore, err)
	}
	return c.VerifySequence(records)
}

// VerifySequence is Verify over an already-read snapshot. Callers that
// need the outcome together with figures derived from the same records
// (tail hash, record count) read the sequence once and verify the copy,
// instead of issuing separate reads that a concurrent append could
// interleave with.
func (c *CommitChain) VerifySequence(records []CommitRecord) (VerificationResult, error) {
	if len(records) == 0 {
		return VerificationResult{Valid: true, Reason: ReasonEmpty, Index: -1}, nil
	}

	expectedPrev := SentinelPrev
	for i, rec := range records {
		if rec.Prev != expectedPrev {
			return VerificationResult{Valid: false, Reason: ReasonChainBroken, Index: i}, nil
		}
		expectedHash, err := c.digest.Sum(rec.Timestamp + rec.User + rec.Message + rec.Prev)
		if err != nil {
			return VerificationResult{}, fmt.Errorf("%w: %v", ErrDigest, err)
		}
		if rec.Hash != expectedHash {
			return VerificationResult{Valid: false, Reason: ReasonHashMismatch, Index: i}, nil
		}
		expectedPrev = rec.Hash
	}
	return VerificationResult{Valid: true, Reason: ReasonOK, Index: -1}, nil
}

// VerifyAll walks the full sequence and collects every inconsistency
// instead of stopping at the first one. After a bad record the walk
// continues against the stored lineage: each record is judged against
// its stored predecessor's hash, so one tampered record yields one
// break rather than cascading. An empty slice means the chain is valid.
func (c *CommitChain) VerifyAll(ctx context.Context) ([]Break, error) {
	records, err := c.seq.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading sequence: %v", ErrStore, err)
	}

	var breaks []Break
	expectedPrev := SentinelPrev
	for i, rec := range records {
		if rec.Prev != expectedPrev {
			breaks = append(breaks, Break{Index: i, Reason: ReasonChainBroken})
		}
		expectedHash, err := c.digest.Sum(rec.Timestamp + rec.User + rec.Message + rec.Prev)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDigest, err)
		}
		if rec.Hash != expectedHash {
			breaks = append(breaks, Break{Index: i, Reason: ReasonHashMismatch})
		}
		expectedPrev = rec.Hash
	}
	return breaks, nil
}

// Stats aggregates over the full sequence without any integrity check.
func (c *CommitChain) Stats(ctx context.Context) (Stats, error) {
	records, err := c.seq.GetAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: reading sequence: %v", ErrStore, err)
	}

	stats := Stats{
		Total:       len(records),
		CountByType: make(map[string]int),
		CountByUser: make(map[string]int),
	}
	if len(records) == 0 {
		return stats, nil
	}

	stats.FirstTimestamp = records[0].Timestamp
	stats.LastTimestamp = records[len(records)-1].Timestamp
	for _, rec := range records {
		stats.CountByType[rec.Type]++
		stats.CountByUser[rec.User]++
	}
	return stats, nil
}
