package routing

import (
	"context"
	"sync"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// BreakerConfig holds circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
}

// DefaultBreakerConfig trips after 5 consecutive failures and probes
// again after 60s.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	RecoveryTimeout:  60 * time.Second,
}

// Breaker is a three-state circuit breaker guarding one provider.
// Closed passes calls through; Open rejects immediately with
// domain.ErrBreakerOpen; Half-Open permits a single trial call.
type Breaker struct {
	mu              sync.Mutex
	cfg             BreakerConfig
	state           BreakerState
	failureCount    int
	lastFailureTime time.Time
	nowFn           func() time.Time
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig.RecoveryTimeout
	}
	return &Breaker{cfg: cfg, nowFn: time.Now}
}

// State returns the current state, applying the Open→Half-Open transition
// if the recovery timeout has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state
}

func (b *Breaker) maybeHalfOpen() {
	if b.state == BreakerOpen && b.nowFn().Sub(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
		b.state = BreakerHalfOpen
	}
}

// allow reports whether a call may proceed right now.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpen()
	return b.state != BreakerOpen
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failureCount = 0
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailureTime = b.nowFn()
	if b.state == BreakerHalfOpen {
		b.state = BreakerOpen
		return
	}
	b.failureCount++
	if b.failureCount >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
	}
}

// Call runs fn through the breaker. When the breaker is open the
// dependency is never attempted.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return domain.ErrBreakerOpen
	}
	if err := fn(ctx); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}
