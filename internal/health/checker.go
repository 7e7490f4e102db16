// Package health periodically re-verifies a ledger and reports whether its
// chain is still intact.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Health states reported by Status.
const (
	StateUnknown  = "unknown"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
)

// Config holds integrity check configuration.
type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	// FailThreshold is how many consecutive non-integrity failures (timeouts,
	// cancelled checks) are tolerated before the ledger is reported degraded.
	// An integrity violation degrades immediately.
	FailThreshold int
}

// Verifier is the subset of the ledger service the checker needs.
type Verifier interface {
	Verify(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// MetricsRecordFunc is an optional callback for recording check results.
type MetricsRecordFunc func(valid bool)

// Status is a snapshot of the most recent check.
type Status struct {
	State     string    `json:"state"`
	CheckedAt time.Time `json:"checked_at,omitzero"`
	Length    int       `json:"length"`
	Error     string    `json:"error,omitempty"`
}

// Checker runs periodic integrity checks against one ledger.
type Checker struct {
	ledger    Verifier
	cfg       Config
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu        sync.RWMutex
	status    Status
	failCount int
}

// New creates a new Checker.
func New(ledger Verifier, cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
		status: Status{State: StateUnknown},
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (h *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	h.onMetrics = fn
}

// Status returns the result of the most recent check.
func (h *Checker) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Start checks once immediately and then on every tick until ctx is done.
func (h *Checker) Start(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.CheckInterval)
	defer ticker.Stop()

	h.CheckOnce(ctx)
	for {
		select {
		case <-ticker.C:
			h.CheckOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckOnce verifies the ledger and updates the reported status.
func (h *Checker) CheckOnce(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.CheckTimeout)
	defer cancel()

	n, _ := h.ledger.Len(ctx)
	err := h.ledger.Verify(ctx)
	if h.onMetrics != nil && !errors.Is(err, context.Canceled) {
		h.onMetrics(err == nil)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.status.State
	h.status.CheckedAt = time.Now().UTC()
	h.status.Length = n

	switch {
	case err == nil:
		h.failCount = 0
		h.status.State = StateHealthy
		h.status.Error = ""
		if prev == StateDegraded {
			h.logger.Info("health: ledger recovered", zap.Int("length", n))
		}
	case isTransient(err):
		h.failCount++
		h.logger.Warn("health: check failed", zap.Error(err), zap.Int("fail_count", h.failCount))
		if h.failCount >= h.cfg.FailThreshold {
			h.degrade(prev, err)
		}
	default:
		h.failCount = 0
		h.degrade(prev, err)
	}
	return h.status
}

func (h *Checker) degrade(prev string, err error) {
	h.status.State = StateDegraded
	h.status.Error = err.Error()
	if prev != StateDegraded {
		h.logger.Error("health: ledger degraded", zap.Error(err), zap.Int("length", h.status.Length))
	}
}

func isTransient(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
