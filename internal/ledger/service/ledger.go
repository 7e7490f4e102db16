// Package service shares one hash-chained ledger between concurrent callers.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jmerrifield20/blockledger/internal/chain"
	"go.uber.org/zap"
)

// DefaultPageSize and MaxPageSize bound List.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Info summarises a ledger for overview endpoints.
type Info struct {
	ID        string `json:"ledger_id"`
	Length    int    `json:"length"`
	Head      string `json:"head"`
	Algorithm string `json:"algorithm"`
	LinkMode  string `json:"link_mode"`
}

// LedgerService serialises access to a *chain.Ledger. Appends take the write
// lock; reads and verification share the read lock.
type LedgerService struct {
	mu     sync.RWMutex
	ledger *chain.Ledger
	id     uuid.UUID
	logger *zap.Logger
}

// NewLedgerService takes ownership of l. l must not be used elsewhere afterwards.
func NewLedgerService(l *chain.Ledger, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		ledger: l,
		id:     uuid.New(),
		logger: logger,
	}
	s.logger.Info("ledger created",
		zap.String("ledger_id", s.id.String()),
		zap.String("genesis", l.HeadDigest()),
		zap.String("algorithm", string(l.Engine().Algorithm())),
		zap.String("link_mode", string(l.LinkMode())),
	)
	return s
}

// ID identifies this ledger instance. A restarted daemon gets a new ID.
func (s *LedgerService) ID() string { return s.id.String() }

// Append adds a block carrying payload.
func (s *LedgerService) Append(ctx context.Context, payload int64) (chain.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return chain.AppendResult{}, err
	}

	s.mu.Lock()
	res, err := s.ledger.Append(payload)
	s.mu.Unlock()

	if err != nil {
		s.logger.Info("append rejected", zap.Int64("payload", payload), zap.Error(err))
		return chain.AppendResult{}, err
	}
	s.logger.Debug("block appended",
		zap.Int("idx", res.Index),
		zap.String("previous", res.Previous),
		zap.String("digest", res.Digest),
	)
	return res, nil
}

// Get returns the block at the zero-based index.
func (s *LedgerService) Get(_ context.Context, index int) (chain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Block(index)
}

// List returns up to limit blocks starting at offset, and the total length.
// A non-positive limit selects DefaultPageSize; limits above MaxPageSize are clamped.
func (s *LedgerService) List(_ context.Context, offset, limit int) ([]chain.Block, int, error) {
	if offset < 0 {
		return nil, 0, fmt.Errorf("offset %d must be non-negative", offset)
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := s.ledger.Len()
	if offset >= total {
		return []chain.Block{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]chain.Block, 0, end-offset)
	for i := offset; i < end; i++ {
		b, err := s.ledger.Block(i)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
	}
	return out, total, nil
}

// Len returns the number of blocks, genesis included.
func (s *LedgerService) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Len(), nil
}

// Root returns the head digest.
func (s *LedgerService) Root(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.HeadDigest(), nil
}

// Info returns a consistent snapshot of length and head.
func (s *LedgerService) Info(_ context.Context) Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:        s.id.String(),
		Length:    s.ledger.Len(),
		Head:      s.ledger.HeadDigest(),
		Algorithm: string(s.ledger.Engine().Algorithm()),
		LinkMode:  string(s.ledger.LinkMode()),
	}
}

// Verify walks the whole chain. It returns nil if the chain is intact and a
// *chain.IntegrityError otherwise.
func (s *LedgerService) Verify(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	err := s.ledger.Check()
	s.mu.RUnlock()

	if errors.Is(err, chain.ErrIntegrityViolation) {
		s.logger.Warn("ledger integrity check failed", zap.Error(err))
	}
	return err
}
