package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmerrifield20/blockledger/internal/digest"
)

var (
	// ErrInvalidPayload is returned when a payload does not fit the content's
	// 32-bit payload field or cannot be parsed as an integer.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrBlockNotFound is returned for block indexes outside the ledger.
	ErrBlockNotFound = errors.New("block not found")

	// ErrUnknownLinkMode is returned by ParseLinkMode for unsupported names.
	ErrUnknownLinkMode = errors.New("unknown link mode")
)

// LinkMode selects what a block digest covers.
type LinkMode string

const (
	// LinkChained hashes the content followed by the previous digest.
	LinkChained LinkMode = "chained"
	// LinkContentOnly hashes the content alone. A block moved behind a
	// different predecessor keeps its digest, so only the stored links
	// reveal the change.
	LinkContentOnly LinkMode = "content"
)

// ParseLinkMode maps a configuration value onto a LinkMode.
// The empty string selects LinkChained.
func ParseLinkMode(s string) (LinkMode, error) {
	switch LinkMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LinkChained:
		return LinkChained, nil
	case LinkContentOnly:
		return LinkContentOnly, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLinkMode, s)
}

// Block is a single ledger entry. Blocks are handed out by value; mutating a
// returned Block never affects the ledger.
type Block struct {
	Content        digest.Content `json:"content"`
	PreviousDigest string         `json:"previous_digest"` // "" for the genesis block
	Digest         string         `json:"digest"`
}

// IsGenesis reports whether b carries the genesis sentinel.
func (b Block) IsGenesis() bool { return b.PreviousDigest == "" }

// AppendResult describes the block produced by Ledger.Append.
type AppendResult struct {
	Index    int    `json:"index"`
	Previous string `json:"previous"`
	Digest   string `json:"digest"`
}

// blockDigest computes the digest a block with the given content and
// predecessor must carry under mode.
func blockDigest(e *digest.Engine, mode LinkMode, c digest.Content, previous string) string {
	if mode == LinkContentOnly {
		return e.Digest(c)
	}
	return e.DigestLinked(c, previous)
}
