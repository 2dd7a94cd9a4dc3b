package chain

import "errors"

// SentinelPrev is the prev value of the first record in a chain.
const SentinelPrev = "0000000000000000000000000000000000000000"

// AnonymousUser is substituted when a caller supplies no user.
const AnonymousUser = "anonymous"

// Verification reasons returned by Verify and VerifyAll.
const (
	ReasonOK           = "ok"
	ReasonEmpty        = "empty"
	ReasonChainBroken  = "chain-broken"
	ReasonHashMismatch = "hash-mismatch"
)

var (
	// ErrDigest wraps failures of the digest primitive.
	ErrDigest = errors.New("chain: digest failure")

	// ErrStore wraps failures of the persisted sequence store.
	ErrStore = errors.New("chain: store failure")

	// ErrTailMoved is returned by AppendWithTail implementations when the
	// chain tail no longer matches the expected prev hash.
	ErrTailMoved = errors.New("chain: tail moved")
)

// CommitRecord is one immutable entry in the chain. Records are never
// mutated or removed once appended.
type CommitRecord struct {
	Hash      string `json:"hash"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	User      string `json:"user"`
	Timestamp string `json:"timestamp"` // RFC3339Nano, UTC
	Prev      string `json:"prev"`
}

// VerificationResult describes the outcome of a full-chain walk.
// A broken chain is a reportable outcome, not an error: Verify returns
// a result value and reserves its error return for digest/store faults.
type VerificationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
	Index  int    `json:"index"` // position of the first bad record; -1 when valid
}

// Break is one inconsistency found by VerifyAll.
type Break struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Stats is the read-side aggregate over the full sequence.
type Stats struct {
	Total          int            `json:"total"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
	CountByType    map[string]int `json:"count_by_type"`
	CountByUser    map[string]int `json:"count_by_user"`
}
