// Package chain implements an append-only, hash-chained ledger of blocks.
//
// A Ledger is created with a genesis block whose PreviousDigest is the empty
// string. Every appended block records the digest of the block before it, and
// its own digest is computed from its content (and, in LinkChained mode, from
// that predecessor digest too), so that rewriting history is detectable via
// Verify.
//
// A Ledger has a single owner. It performs no locking and no I/O; callers
// that share one across goroutines must serialise access themselves.
package chain
