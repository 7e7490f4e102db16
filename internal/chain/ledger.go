package chain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jmerrifield20/blockledger/internal/digest"
)

// Clock returns the current time in whole seconds since the Unix epoch.
type Clock func() int64

func systemClock() int64 { return time.Now().Unix() }

// Option configures a Ledger at creation time.
type Option func(*Ledger)

// WithEngine sets the digest engine. The default is SHA-1.
func WithEngine(e *digest.Engine) Option {
	return func(l *Ledger) {
		if e != nil {
			l.engine = e
		}
	}
}

// WithLinkMode sets what block digests cover. The default is LinkChained.
func WithLinkMode(m LinkMode) Option {
	return func(l *Ledger) { l.mode = m }
}

// WithClock overrides the timestamp source.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithGenesisPayload sets the payload stored in the genesis block (default 0).
func WithGenesisPayload(p int32) Option {
	return func(l *Ledger) { l.genesisPayload = p }
}

// Ledger is an ordered, append-only sequence of blocks. It always holds at
// least the genesis block.
type Ledger struct {
	engine         *digest.Engine
	mode           LinkMode
	clock          Clock
	genesisPayload int32
	blocks         []Block
}

// New creates a Ledger holding exactly one genesis block.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		engine: digest.Default(),
		mode:   LinkChained,
		clock:  systemClock,
	}
	for _, o := range opts {
		o(l)
	}

	content := digest.Content{Timestamp: l.clock(), Payload: l.genesisPayload}
	l.blocks = append(l.blocks, Block{
		Content:        content,
		PreviousDigest: "",
		Digest:         blockDigest(l.engine, l.mode, content, ""),
	})
	return l
}

// Append adds a block carrying payload, chained to the current head.
// Payloads outside the int32 range are rejected with ErrInvalidPayload and
// leave the ledger unchanged.
func (l *Ledger) Append(payload int64) (AppendResult, error) {
	if payload < math.MinInt32 || payload > math.MaxInt32 {
		return AppendResult{}, fmt.Errorf("%w: %d out of range [%d, %d]",
			ErrInvalidPayload, payload, math.MinInt32, math.MaxInt32)
	}

	prev := l.blocks[len(l.blocks)-1].Digest
	content := digest.Content{Timestamp: l.clock(), Payload: int32(payload)}
	b := Block{
		Content:        content,
		PreviousDigest: prev,
		Digest:         blockDigest(l.engine, l.mode, content, prev),
	}
	l.blocks = append(l.blocks, b)

	return AppendResult{
		Index:    len(l.blocks) - 1,
		Previous: prev,
		Digest:   b.Digest,
	}, nil
}

// HeadDigest returns the digest of the last block.
func (l *Ledger) HeadDigest() string {
	return l.blocks[len(l.blocks)-1].Digest
}

// Head returns a copy of the last block.
func (l *Ledger) Head() Block {
	return l.blocks[len(l.blocks)-1]
}

// Len returns the number of blocks, genesis included.
func (l *Ledger) Len() int { return len(l.blocks) }

// Block returns a copy of the block at the zero-based index i.
func (l *Ledger) Block(i int) (Block, error) {
	if i < 0 || i >= len(l.blocks) {
		return Block{}, fmt.Errorf("%w: index %d, length %d", ErrBlockNotFound, i, len(l.blocks))
	}
	return l.blocks[i], nil
}

// Blocks returns a copy of the whole sequence, genesis first.
func (l *Ledger) Blocks() []Block {
	out := make([]Block, len(l.blocks))
	copy(out, l.blocks)
	return out
}

// Engine returns the digest engine used by the ledger.
func (l *Ledger) Engine() *digest.Engine { return l.engine }

// LinkMode returns the ledger's link mode.
func (l *Ledger) LinkMode() LinkMode { return l.mode }

// ParsePayload parses a base-10 payload as typed by a user. Surrounding
// whitespace is ignored. Non-numeric input and values outside the int32
// range return ErrInvalidPayload.
func ParsePayload(s string) (int64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidPayload, s)
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d out of range [%d, %d]", ErrInvalidPayload, v, math.MinInt32, math.MaxInt32)
	}
	return v, nil
}
