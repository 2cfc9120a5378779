package routing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})
	ctx := context.Background()
	boom := errors.New("boom")

	attempts := 0
	fail := func(context.Context) error { attempts++; return boom }

	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, fail); !errors.Is(err, boom) {
			t.Fatalf("Call %d: expected boom, got %v", i, err)
		}
	}
	if b.State() != BreakerOpen {
		t.Fatalf("Expected open after threshold, got %v", b.State())
	}

	// Open rejects without attempting the dependency.
	err := b.Call(ctx, fail)
	if !errors.Is(err, domain.ErrBreakerOpen) {
		t.Errorf("Expected ErrBreakerOpen, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected dependency untouched while open, attempts = %d", attempts)
	}
}

func TestBreaker_RecoverySuccess(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute})
	b.nowFn = func() time.Time { return now }
	ctx := context.Background()
	boom := errors.New("boom")

	b.Call(ctx, func(context.Context) error { return boom })
	b.Call(ctx, func(context.Context) error { return boom })
	if b.State() != BreakerOpen {
		t.Fatal("Expected open")
	}

	// Recovery timeout elapses: one trial call is permitted.
	now = now.Add(61 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("Expected half-open, got %v", b.State())
	}

	called := false
	err := b.Call(ctx, func(context.Context) error { called = true; return nil })
	if err != nil || !called {
		t.Fatalf("Expected trial call to run, err=%v called=%v", err, called)
	}
	if b.State() != BreakerClosed {
		t.Errorf("Expected closed after trial success, got %v", b.State())
	}
	if b.failureCount != 0 {
		t.Errorf("Expected failure count reset, got %d", b.failureCount)
	}
}

func TestBreaker_RecoveryFailure(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})
	b.nowFn = func() time.Time { return now }
	ctx := context.Background()
	boom := errors.New("boom")

	b.Call(ctx, func(context.Context) error { return boom })
	now = now.Add(61 * time.Second)

	// Failed trial call snaps straight back to open.
	b.Call(ctx, func(context.Context) error { return boom })
	if b.State() != BreakerOpen {
		t.Errorf("Expected open after failed trial, got %v", b.State())
	}
	if err := b.Call(ctx, func(context.Context) error { return nil }); !errors.Is(err, domain.ErrBreakerOpen) {
		t.Errorf("Expected rejection after failed trial, got %v", err)
	}
}
