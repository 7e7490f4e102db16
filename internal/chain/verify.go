package chain

import (
	"errors"
	"fmt"
)

// ErrIntegrityViolation is matched by every *IntegrityError.
var ErrIntegrityViolation = errors.New("integrity violation")

// IntegrityError reports the first block at which verification failed.
type IntegrityError struct {
	Index  int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("block %d: %s", e.Index, e.Reason)
}

// Is makes errors.Is(err, ErrIntegrityViolation) hold.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrityViolation }

// Check walks the chain from genesis to head and returns an *IntegrityError
// describing the first inconsistency, or nil if the chain is intact.
//
// The genesis block must carry the empty previous digest, every stored digest
// must match the digest recomputed from the block, and every block must link
// to the stored digest of the block before it.
func (l *Ledger) Check() error {
	for i, curr := range l.blocks {
		if i == 0 {
			if curr.PreviousDigest != "" {
				return &IntegrityError{Index: 0, Reason: "genesis block has a previous digest"}
			}
		} else if prev := l.blocks[i-1]; curr.PreviousDigest != prev.Digest {
			return &IntegrityError{Index: i, Reason: "previous digest does not match predecessor"}
		}

		if curr.Digest != blockDigest(l.engine, l.mode, curr.Content, curr.PreviousDigest) {
			return &IntegrityError{Index: i, Reason: "digest does not match content"}
		}
	}
	return nil
}

// Verify reports whether the chain is intact. See Check for the rules.
func (l *Ledger) Verify() bool {
	return l.Check() == nil
}
