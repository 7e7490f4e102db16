package service_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmerrifield20/blockledger/internal/chain"
	"github.com/jmerrifield20/blockledger/internal/ledger/service"
	"go.uber.org/zap"
)

var ctx = context.Background()

func newService(t *testing.T) *service.LedgerService {
	t.Helper()
	return service.NewLedgerService(chain.New(), zap.NewNop())
}

func TestNewLedgerService_genesis(t *testing.T) {
	s := newService(t)

	n, err := s.Len(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis block, got %d", n)
	}
	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Errorf("ID() %q is not a UUID: %v", s.ID(), err)
	}

	info := s.Info(ctx)
	if info.Length != 1 || info.Head == "" || info.Algorithm != "sha1" || info.LinkMode != "chained" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	s := newService(t)
	root, _ := s.Root(ctx)

	r, err := s.Append(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if r.Previous != root {
		t.Errorf("previous: got %q, want %q", r.Previous, root)
	}

	b, err := s.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if b.Digest != r.Digest || b.Content.Payload != 42 {
		t.Errorf("stored block mismatch: %+v vs %+v", b, r)
	}
}

func TestAppend_invalidPayload(t *testing.T) {
	s := newService(t)
	before, _ := s.Root(ctx)

	_, err := s.Append(ctx, math.MaxInt32+1)
	if !errors.Is(err, chain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	after, _ := s.Root(ctx)
	if before != after {
		t.Error("rejected append changed the head")
	}
}

func TestAppend_cancelledContext(t *testing.T) {
	s := newService(t)
	cctx, cancel := context.WithCancel(ctx)
	cancel()

	if _, err := s.Append(cctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Errorf("cancelled append changed length to %d", n)
	}
}

func TestAppend_concurrent(t *testing.T) {
	s := newService(t)

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := s.Append(ctx, int64(w*perWriter+i)); err != nil {
					t.Error(err)
					return
				}
				_, _ = s.Root(ctx)
			}
		}(w)
	}
	wg.Wait()

	n, _ := s.Len(ctx)
	if n != 1+writers*perWriter {
		t.Errorf("length: got %d, want %d", n, 1+writers*perWriter)
	}
	if err := s.Verify(ctx); err != nil {
		t.Errorf("Verify() after concurrent appends: %v", err)
	}
}

func TestList_paging(t *testing.T) {
	s := newService(t)
	for i := 0; i < 9; i++ {
		if _, err := s.Append(ctx, int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		offset, limit int
		wantLen       int
	}{
		{0, 0, 10},
		{0, 3, 3},
		{8, 5, 2},
		{10, 5, 0},
		{0, service.MaxPageSize + 1, 10},
	}
	for _, tt := range tests {
		blocks, total, err := s.List(ctx, tt.offset, tt.limit)
		if err != nil {
			t.Fatalf("List(%d, %d): %v", tt.offset, tt.limit, err)
		}
		if total != 10 {
			t.Errorf("List(%d, %d) total = %d, want 10", tt.offset, tt.limit, total)
		}
		if len(blocks) != tt.wantLen {
			t.Errorf("List(%d, %d) returned %d blocks, want %d", tt.offset, tt.limit, len(blocks), tt.wantLen)
		}
	}

	if _, _, err := s.List(ctx, -1, 5); err == nil {
		t.Error("expected error for negative offset")
	}
}

func TestGet_outOfRange(t *testing.T) {
	s := newService(t)
	if _, err := s.Get(ctx, 5); !errors.Is(err, chain.ErrBlockNotFound) {
		t.Errorf("expected ErrBlockNotFound, got %v", err)
	}
}

func TestVerify_valid(t *testing.T) {
	s := newService(t)
	_, _ = s.Append(ctx, 0)
	_, _ = s.Append(ctx, 42)
	if err := s.Verify(ctx); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}
}
