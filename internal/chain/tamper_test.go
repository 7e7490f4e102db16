package chain

import (
	"errors"
	"testing"
)

func buildLedger(t *testing.T, mode LinkMode, n int) *Ledger {
	t.Helper()
	l := New(WithLinkMode(mode))
	for i := 0; i < n; i++ {
		if _, err := l.Append(int64(i)); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func TestVerify_detectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(l *Ledger)
		index  int
	}{
		{"content payload", func(l *Ledger) { l.blocks[2].Content.Payload++ }, 2},
		{"content timestamp", func(l *Ledger) { l.blocks[1].Content.Timestamp-- }, 1},
		{"previous digest", func(l *Ledger) { l.blocks[3].PreviousDigest = l.blocks[1].Digest }, 3},
		{"genesis sentinel", func(l *Ledger) { l.blocks[0].PreviousDigest = "00" }, 0},
		{"head digest", func(l *Ledger) { l.blocks[len(l.blocks)-1].Digest = "deadbeef" }, 4},
		{"genesis content", func(l *Ledger) { l.blocks[0].Content.Payload = 1 }, 0},
	}

	for _, mode := range []LinkMode{LinkChained, LinkContentOnly} {
		for _, tt := range tests {
			t.Run(string(mode)+"/"+tt.name, func(t *testing.T) {
				l := buildLedger(t, mode, 4)
				if !l.Verify() {
					t.Fatalf("fresh ledger failed verification: %v", l.Check())
				}

				tt.tamper(l)

				if l.Verify() {
					t.Fatal("Verify() = true after tampering")
				}
				err := l.Check()
				if !errors.Is(err, ErrIntegrityViolation) {
					t.Fatalf("expected ErrIntegrityViolation, got %v", err)
				}
				var ie *IntegrityError
				if !errors.As(err, &ie) {
					t.Fatalf("expected *IntegrityError, got %T", err)
				}
				if ie.Index != tt.index {
					t.Errorf("IntegrityError.Index = %d, want %d (%v)", ie.Index, tt.index, ie)
				}
			})
		}
	}
}

func TestVerify_relinkedBlock(t *testing.T) {
	// Rewriting both the content and the digest of a block is caught by the
	// successor's link.
	l := buildLedger(t, LinkChained, 3)
	b := l.blocks[1]
	b.Content.Payload = 500
	b.Digest = blockDigest(l.engine, l.mode, b.Content, b.PreviousDigest)
	l.blocks[1] = b

	var ie *IntegrityError
	if !errors.As(l.Check(), &ie) || ie.Index != 2 {
		t.Errorf("expected violation at block 2, got %v", l.Check())
	}
}

func TestVerify_emptySequence(t *testing.T) {
	l := &Ledger{}
	if !l.Verify() {
		t.Error("empty sequence should verify")
	}
}
