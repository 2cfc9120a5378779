package routing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/ai/quota"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
	"github.com/mhmod01110/priv-band-ai/internal/infra/store/memory"
)

type stubBackend struct {
	name  string
	calls int
	fn    func() (*backend.Response, error)
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Invoke(context.Context, backend.OperationKind, json.RawMessage) (*backend.Response, error) {
	s.calls++
	return s.fn()
}

func okResponse() (*backend.Response, error) {
	return &backend.Response{Data: json.RawMessage(`{"ok":true}`), TokensUsed: 100}, nil
}

func testRouter(t *testing.T, primary, secondary *stubBackend, limits map[string]quota.Limits) *Router {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	tracker := quota.New(memory.New(), limits, logger)
	backends := map[string]backend.Backend{primary.name: primary}
	cfg := RouterConfig{Primary: primary.name}
	if secondary != nil {
		backends[secondary.name] = secondary
		cfg.Secondary = secondary.name
	}
	r, err := NewRouter(cfg, backends, DefaultBreakerConfig, tracker, logger)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return r
}

func TestRouter_FailoverOnAuthError(t *testing.T) {
	primary := &stubBackend{name: "openai", fn: func() (*backend.Response, error) {
		return nil, &backend.StatusError{Provider: "openai", StatusCode: 401, Message: "invalid api key"}
	}}
	secondary := &stubBackend{name: "gemini", fn: okResponse}
	r := testRouter(t, primary, secondary, nil)

	res, err := r.Call(context.Background(), backend.OpMatchCheck, nil)
	if err != nil {
		t.Fatalf("Expected failover success, got %v", err)
	}
	if res.Provider != "gemini" {
		t.Errorf("Expected gemini to serve, got %s", res.Provider)
	}
	if primary.calls != 1 {
		t.Errorf("Expected one primary attempt (auth never retries), got %d", primary.calls)
	}

	report := r.HealthReport()
	if report.FailoverCount != 1 {
		t.Errorf("Expected failover count 1, got %d", report.FailoverCount)
	}
	if report.Providers["gemini"].Status != domain.ProviderHealthy {
		t.Errorf("Expected gemini healthy, got %s", report.Providers["gemini"].Status)
	}
}

func TestRouter_NoFailoverOnInvalidRequest(t *testing.T) {
	primary := &stubBackend{name: "openai", fn: func() (*backend.Response, error) {
		return nil, &backend.StatusError{Provider: "openai", StatusCode: 400, Message: "bad request"}
	}}
	secondary := &stubBackend{name: "gemini", fn: okResponse}
	r := testRouter(t, primary, secondary, nil)

	_, err := r.Call(context.Background(), backend.OpMatchCheck, nil)
	if err == nil {
		t.Fatal("Expected failure")
	}
	if kind := domain.KindOf(err); kind != domain.ErrKindInvalidRequest {
		t.Errorf("Expected invalid_request, got %s", kind)
	}
	if secondary.calls != 0 {
		t.Errorf("Expected secondary untouched for a caller bug, got %d calls", secondary.calls)
	}
}

func TestRouter_QuotaExhaustedBothProviders(t *testing.T) {
	primary := &stubBackend{name: "openai", fn: okResponse}
	secondary := &stubBackend{name: "gemini", fn: okResponse}
	limits := map[string]quota.Limits{
		"openai": {DailyTokens: 1, DailyRequests: 100, HourlyTokens: 1, HourlyRequests: 100},
		"gemini": {DailyTokens: 1, DailyRequests: 100, HourlyTokens: 1, HourlyRequests: 100},
	}
	r := testRouter(t, primary, secondary, limits)

	_, err := r.Call(context.Background(), backend.OpComplianceAnalysis, nil)
	if err == nil {
		t.Fatal("Expected quota failure")
	}
	if kind := domain.KindOf(err); kind != domain.ErrKindQuotaExceeded {
		t.Errorf("Expected quota_exceeded, got %s", kind)
	}
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Error("Expected wrapped ErrQuotaExhausted sentinel")
	}
	if primary.calls != 0 || secondary.calls != 0 {
		t.Error("Expected no backend calls when admission denies")
	}

	report := r.HealthReport()
	if report.Providers["openai"].Status != domain.ProviderQuotaExceeded {
		t.Errorf("Expected quota_exceeded status, got %s", report.Providers["openai"].Status)
	}
}

func TestRouter_SuccessRecordsUsageAndResetsHealth(t *testing.T) {
	primary := &stubBackend{name: "openai", fn: okResponse}
	r := testRouter(t, primary, nil, nil)

	// Pre-damage the health so the reset is observable.
	r.markFailure("openai", domain.ErrKindNetwork, errors.New("connection error"))
	r.markFailure("openai", domain.ErrKindNetwork, errors.New("connection error"))
	r.markFailure("openai", domain.ErrKindNetwork, errors.New("connection error"))
	if r.HealthReport().Providers["openai"].Status != domain.ProviderDegraded {
		t.Fatal("Expected degraded after three consecutive failures")
	}

	res, err := r.Call(context.Background(), backend.OpMatchCheck, nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if res.Provider != "openai" {
		t.Errorf("Expected openai, got %s", res.Provider)
	}

	h := r.HealthReport().Providers["openai"]
	if h.Status != domain.ProviderHealthy || h.ConsecutiveFailures != 0 {
		t.Errorf("Expected healthy with reset failures, got %+v", h)
	}

	usage, err := r.QuotaUsage(context.Background())
	if err != nil {
		t.Fatalf("QuotaUsage failed: %v", err)
	}
	if usage["openai"].DailyTokens != 100 {
		t.Errorf("Expected 100 recorded tokens, got %d", usage["openai"].DailyTokens)
	}
	if usage["openai"].DailyRequests != 1 {
		t.Errorf("Expected 1 recorded request, got %d", usage["openai"].DailyRequests)
	}
}

func TestRouter_BlacklistExpiry(t *testing.T) {
	primary := &stubBackend{name: "openai", fn: okResponse}
	r := testRouter(t, primary, nil, nil)

	now := time.Unix(1000, 0)
	r.nowFn = func() time.Time { return now }

	r.markFailure("openai", domain.ErrKindServiceCrash, errors.New("internal server error"))
	h := r.HealthReport().Providers["openai"]
	if h.Status != domain.ProviderBlacklisted || h.BlacklistUntil == nil {
		t.Fatalf("Expected blacklist after crash, got %+v", h)
	}
	if r.available("openai") {
		t.Error("Expected provider unavailable while blacklisted")
	}

	// Blacklist auto-clears after the duration.
	now = now.Add(DefaultRouterConfig.BlacklistDuration + time.Second)
	if !r.available("openai") {
		t.Error("Expected provider available after blacklist expiry")
	}
	h = r.HealthReport().Providers["openai"]
	if h.BlacklistUntil != nil || h.Status != domain.ProviderDegraded {
		t.Errorf("Expected cleared blacklist with degraded status, got %+v", h)
	}
}

func TestRouter_EstimateUsedWhenTokensUnreported(t *testing.T) {
	primary := &stubBackend{name: "openai", fn: func() (*backend.Response, error) {
		return &backend.Response{Data: json.RawMessage(`{}`)}, nil
	}}
	r := testRouter(t, primary, nil, nil)

	if _, err := r.Call(context.Background(), backend.OpComplianceAnalysis, nil); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	usage, _ := r.QuotaUsage(context.Background())
	want := int64(backend.EstimatedTokens(backend.OpComplianceAnalysis))
	if usage["openai"].DailyTokens != want {
		t.Errorf("Expected estimate %d recorded, got %d", want, usage["openai"].DailyTokens)
	}
}
