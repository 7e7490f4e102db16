package chain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/jmerrifield20/blockledger/internal/chain"
	"github.com/jmerrifield20/blockledger/internal/digest"
)

// tick returns a clock that advances one second per call.
func tick(start int64) chain.Clock {
	now := start - 1
	return func() int64 {
		now++
		return now
	}
}

func TestNew_genesisBlock(t *testing.T) {
	l := chain.New(chain.WithClock(tick(1_700_000_000)))

	if n := l.Len(); n != 1 {
		t.Fatalf("expected 1 genesis block, got %d", n)
	}

	b, err := l.Block(0)
	if err != nil {
		t.Fatal(err)
	}
	if b.PreviousDigest != "" {
		t.Errorf("genesis previous digest: got %q, want empty", b.PreviousDigest)
	}
	if !b.IsGenesis() {
		t.Error("IsGenesis() = false for block 0")
	}
	if b.Content.Payload != 0 {
		t.Errorf("genesis payload: got %d, want 0", b.Content.Payload)
	}
	if b.Content.Timestamp != 1_700_000_000 {
		t.Errorf("genesis timestamp: got %d, want 1700000000", b.Content.Timestamp)
	}
	if len(b.Digest) != 40 {
		t.Errorf("genesis digest %q: want 40 hex chars", b.Digest)
	}
	if l.HeadDigest() != b.Digest {
		t.Errorf("HeadDigest(): got %q, want genesis digest %q", l.HeadDigest(), b.Digest)
	}
}

func TestNew_genesisPayload(t *testing.T) {
	l := chain.New(chain.WithGenesisPayload(7))
	if p := l.Head().Content.Payload; p != 7 {
		t.Errorf("genesis payload: got %d, want 7", p)
	}
	if !l.Verify() {
		t.Error("Verify() false for fresh ledger")
	}
}

func TestAppend_scenario(t *testing.T) {
	l := chain.New()
	h0 := l.HeadDigest()
	if h0 == "" {
		t.Fatal("genesis head digest is empty")
	}

	r1, err := l.Append(0)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Previous != h0 {
		t.Errorf("append(0) previous: got %q, want H0 %q", r1.Previous, h0)
	}
	h1 := r1.Digest
	if h1 == h0 {
		t.Error("H1 == H0")
	}
	if l.Len() != 2 {
		t.Errorf("length after first append: got %d, want 2", l.Len())
	}

	r2, err := l.Append(42)
	if err != nil {
		t.Fatal(err)
	}
	if r2.Previous != h1 {
		t.Errorf("append(42) previous: got %q, want H1 %q", r2.Previous, h1)
	}
	h2 := r2.Digest
	if h2 == h0 || h2 == h1 {
		t.Errorf("H2 %q must differ from H0 and H1", h2)
	}
	if r2.Index != 2 {
		t.Errorf("append(42) index: got %d, want 2", r2.Index)
	}
	if l.Len() != 3 {
		t.Errorf("length: got %d, want 3", l.Len())
	}
	if !l.Verify() {
		t.Errorf("Verify() = false: %v", l.Check())
	}

	// Invalid payload leaves the ledger unchanged.
	_, err = l.Append(math.MaxInt32 + 1)
	if !errors.Is(err, chain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if l.Len() != 3 {
		t.Errorf("length after rejected append: got %d, want 3", l.Len())
	}
	if l.HeadDigest() != h2 {
		t.Errorf("head after rejected append: got %q, want H2 %q", l.HeadDigest(), h2)
	}
}

func TestAppend_payloadBounds(t *testing.T) {
	tests := []struct {
		payload int64
		wantErr bool
	}{
		{math.MinInt32, false},
		{math.MaxInt32, false},
		{-1, false},
		{math.MinInt32 - 1, true},
		{math.MaxInt32 + 1, true},
		{math.MaxInt64, true},
	}
	for _, tt := range tests {
		l := chain.New()
		_, err := l.Append(tt.payload)
		if tt.wantErr != (err != nil) {
			t.Errorf("Append(%d): err = %v, wantErr %v", tt.payload, err, tt.wantErr)
		}
		if tt.wantErr && !errors.Is(err, chain.ErrInvalidPayload) {
			t.Errorf("Append(%d): expected ErrInvalidPayload, got %v", tt.payload, err)
		}
		if !tt.wantErr {
			if got := l.Head().Content.Payload; int64(got) != tt.payload {
				t.Errorf("stored payload: got %d, want %d", got, tt.payload)
			}
		}
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	for _, mode := range []chain.LinkMode{chain.LinkChained, chain.LinkContentOnly} {
		l := chain.New(chain.WithLinkMode(mode), chain.WithClock(tick(100)))
		for p := int64(0); p < 20; p++ {
			if _, err := l.Append(p); err != nil {
				t.Fatal(err)
			}
		}

		blocks := l.Blocks()
		if blocks[0].PreviousDigest != "" {
			t.Errorf("%s: genesis sentinel lost", mode)
		}
		for i := 0; i+1 < len(blocks); i++ {
			if blocks[i+1].PreviousDigest != blocks[i].Digest {
				t.Errorf("%s: chain broken between %d and %d", mode, i, i+1)
			}
		}
		if !l.Verify() {
			t.Errorf("%s: Verify() = false: %v", mode, l.Check())
		}
	}
}

func TestAppend_doesNotTouchExistingBlocks(t *testing.T) {
	l := chain.New()
	for p := int64(1); p <= 5; p++ {
		if _, err := l.Append(p); err != nil {
			t.Fatal(err)
		}
	}
	before := l.Blocks()

	if _, err := l.Append(99); err != nil {
		t.Fatal(err)
	}

	after := l.Blocks()
	for i, b := range before {
		if after[i] != b {
			t.Errorf("block %d changed: before %+v, after %+v", i, b, after[i])
		}
	}
}

func TestBlocks_returnsCopy(t *testing.T) {
	l := chain.New()
	if _, err := l.Append(1); err != nil {
		t.Fatal(err)
	}

	blocks := l.Blocks()
	blocks[1].Content.Payload = 1000
	blocks[1].Digest = "forged"

	b, _ := l.Block(1)
	if b.Content.Payload != 1 || b.Digest == "forged" {
		t.Error("mutating Blocks() result changed the ledger")
	}
	if !l.Verify() {
		t.Error("Verify() = false after mutating a copy")
	}
}

func TestBlock_outOfRange(t *testing.T) {
	l := chain.New()
	for _, idx := range []int{-1, 1, 999} {
		if _, err := l.Block(idx); !errors.Is(err, chain.ErrBlockNotFound) {
			t.Errorf("Block(%d): expected ErrBlockNotFound, got %v", idx, err)
		}
	}
}

func TestHeadDigest_returnsLastDigest(t *testing.T) {
	l := chain.New()
	r, _ := l.Append(5)
	if l.HeadDigest() != r.Digest {
		t.Errorf("HeadDigest(): got %q, want %q", l.HeadDigest(), r.Digest)
	}
}

func TestLinkMode_changesDigests(t *testing.T) {
	a := chain.New(chain.WithClock(tick(1)), chain.WithLinkMode(chain.LinkChained))
	b := chain.New(chain.WithClock(tick(1)), chain.WithLinkMode(chain.LinkContentOnly))
	if a.HeadDigest() == b.HeadDigest() {
		t.Error("link modes produced the same genesis digest")
	}

	// Content-only digests match the plain engine output.
	g := b.Head()
	if g.Digest != digest.Default().Digest(g.Content) {
		t.Error("content-only genesis digest differs from Engine.Digest")
	}
}

func TestWithEngine(t *testing.T) {
	e, err := digest.New(digest.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	l := chain.New(chain.WithEngine(e))
	if len(l.HeadDigest()) != 64 {
		t.Errorf("sha256 head digest %q: want 64 hex chars", l.HeadDigest())
	}
	if _, err := l.Append(3); err != nil {
		t.Fatal(err)
	}
	if !l.Verify() {
		t.Error("Verify() = false with sha256 engine")
	}
}

func TestDeterministic_sameClock(t *testing.T) {
	a := chain.New(chain.WithClock(tick(50)))
	b := chain.New(chain.WithClock(tick(50)))
	ra, _ := a.Append(42)
	rb, _ := b.Append(42)
	if ra.Digest != rb.Digest {
		t.Errorf("identical histories produced different heads: %q vs %q", ra.Digest, rb.Digest)
	}
}

func TestVerify_genesisOnlyChain(t *testing.T) {
	l := chain.New()
	if err := l.Check(); err != nil {
		t.Errorf("Check() on genesis-only chain should pass: %v", err)
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{" -7\n", -7, false},
		{"2147483647", math.MaxInt32, false},
		{"-2147483648", math.MinInt32, false},
		{"2147483648", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"1.5", 0, true},
	}
	for _, tt := range tests {
		got, err := chain.ParsePayload(tt.in)
		if tt.wantErr {
			if !errors.Is(err, chain.ErrInvalidPayload) {
				t.Errorf("ParsePayload(%q): expected ErrInvalidPayload, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePayload(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePayload(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseLinkMode(t *testing.T) {
	if m, err := chain.ParseLinkMode(""); err != nil || m != chain.LinkChained {
		t.Errorf("ParseLinkMode(\"\") = %q, %v", m, err)
	}
	if m, err := chain.ParseLinkMode("Content"); err != nil || m != chain.LinkContentOnly {
		t.Errorf("ParseLinkMode(\"Content\") = %q, %v", m, err)
	}
	if _, err := chain.ParseLinkMode("merkle"); !errors.Is(err, chain.ErrUnknownLinkMode) {
		t.Errorf("expected ErrUnknownLinkMode, got %v", err)
	}
}
