package chain

import (
	"crypto/sha256"
	"fmt"
)

// Digest computes the hex digest binding a record's content and lineage.
// Implementations must be deterministic; the engine propagates any error
// unmodified rather than masking a broken audit trail.
type Digest interface {
	Sum(text string) (string, error)
}

// SHA256Digest is the default Digest, producing lowercase hex SHA-256.
type SHA256Digest struct{}

// Sum implements Digest.
func (SHA256Digest) Sum(text string) (string, error) {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum), nil
}

var _ Digest = SHA256Digest{}
