package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/ai/quota"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
	"github.com/mhmod01110/priv-band-ai/internal/metrics"
)

// degradedThreshold is how many consecutive failures flip a provider
// from healthy to degraded.
const degradedThreshold = 3

// RouterConfig holds routing tuning.
type RouterConfig struct {
	Primary           string        `yaml:"primary"`
	Secondary         string        `yaml:"secondary"`
	MaxRetries        int           `yaml:"max_retries"`
	BlacklistDuration time.Duration `yaml:"blacklist_duration"`
}

// DefaultRouterConfig caps retries at 3 per provider and blacklists a
// crashed provider for 5 minutes.
var DefaultRouterConfig = RouterConfig{
	MaxRetries:        3,
	BlacklistDuration: 5 * time.Minute,
}

// Result is one successful routed call, carrying which provider served it.
type Result struct {
	Provider string
	Response *backend.Response
}

// Router dispatches operations to the primary provider and fails over to
// the secondary according to the per-kind policy table. It owns provider
// health, per-provider circuit breakers, and quota admission.
type Router struct {
	mu            sync.Mutex
	cfg           RouterConfig
	backends      map[string]backend.Backend
	health        map[string]*domain.ProviderHealth
	breakers      map[string]*Breaker
	quota         *quota.Tracker
	logger        *slog.Logger
	failoverCount int64
	nowFn         func() time.Time
}

// NewRouter wires backends, breakers, and the quota tracker. The order of
// preference is cfg.Primary then cfg.Secondary; a missing secondary
// disables failover.
func NewRouter(cfg RouterConfig, backends map[string]backend.Backend, breakerCfg BreakerConfig, tracker *quota.Tracker, logger *slog.Logger) (*Router, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRouterConfig.MaxRetries
	}
	if cfg.BlacklistDuration <= 0 {
		cfg.BlacklistDuration = DefaultRouterConfig.BlacklistDuration
	}
	if _, ok := backends[cfg.Primary]; !ok {
		return nil, fmt.Errorf("primary provider %q not configured", cfg.Primary)
	}
	if cfg.Secondary != "" {
		if _, ok := backends[cfg.Secondary]; !ok {
			return nil, fmt.Errorf("secondary provider %q not configured", cfg.Secondary)
		}
	}

	r := &Router{
		cfg:      cfg,
		backends: backends,
		health:   make(map[string]*domain.ProviderHealth, len(backends)),
		breakers: make(map[string]*Breaker, len(backends)),
		quota:    tracker,
		logger:   logger.With("component", "router"),
		nowFn:    time.Now,
	}
	for name := range backends {
		r.health[name] = &domain.ProviderHealth{Status: domain.ProviderHealthy}
		r.breakers[name] = NewBreaker(breakerCfg)
	}
	return r, nil
}

// order returns the providers to try, preference first.
func (r *Router) order() []string {
	names := []string{r.cfg.Primary}
	if r.cfg.Secondary != "" && r.cfg.Secondary != r.cfg.Primary {
		names = append(names, r.cfg.Secondary)
	}
	return names
}

// available reports whether a provider may be tried, clearing an expired
// blacklist entry as a side effect.
func (r *Router) available(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.health[name]
	if h.BlacklistUntil == nil {
		return true
	}
	if r.nowFn().Before(*h.BlacklistUntil) {
		return false
	}
	h.BlacklistUntil = nil
	h.Status = domain.ProviderDegraded
	r.logger.Info("provider blacklist expired", "provider", name)
	return true
}

func (r *Router) markSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.health[name]
	h.TotalRequests++
	h.SuccessfulRequests++
	h.ConsecutiveFailures = 0
	h.Status = domain.ProviderHealthy
	h.BlacklistUntil = nil
	h.LastError = ""
	h.LastSuccess = r.nowFn()
}

func (r *Router) markFailure(name string, kind domain.ErrorKind, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.health[name]
	h.TotalRequests++
	h.ConsecutiveFailures++
	h.LastError = err.Error()

	switch kind {
	case domain.ErrKindQuotaExceeded:
		h.Status = domain.ProviderQuotaExceeded
	case domain.ErrKindServiceCrash:
		until := r.nowFn().Add(r.cfg.BlacklistDuration)
		h.BlacklistUntil = &until
		h.Status = domain.ProviderBlacklisted
		r.logger.Warn("provider blacklisted",
			"provider", name,
			"until", until.Format(time.RFC3339),
			"error", err)
	default:
		if h.ConsecutiveFailures >= degradedThreshold {
			h.Status = domain.ProviderDegraded
		}
	}
}

// Call routes an operation. The primary is tried first with per-kind
// retries; failover to the secondary happens only for kinds whose policy
// allows it. When every eligible provider fails, the returned error
// carries the first failure's kind.
func (r *Router) Call(ctx context.Context, op backend.OperationKind, payload json.RawMessage) (*Result, error) {
	est := int64(backend.EstimatedTokens(op))
	providers := r.order()

	var (
		firstKind domain.ErrorKind
		errs      []error
	)
	for i, name := range providers {
		if !r.available(name) {
			errs = append(errs, fmt.Errorf("provider %s blacklisted", name))
			if firstKind == "" {
				firstKind = domain.ErrKindServiceCrash
			}
			continue
		}
		if !r.quota.Allow(ctx, name, est) {
			metrics.QuotaDenialsTotal.WithLabelValues(name).Inc()
			r.markFailure(name, domain.ErrKindQuotaExceeded, domain.ErrQuotaExhausted)
			errs = append(errs, fmt.Errorf("provider %s: %w", name, domain.ErrQuotaExhausted))
			if firstKind == "" {
				firstKind = domain.ErrKindQuotaExceeded
			}
			continue
		}

		resp, err := r.callWithRetry(ctx, name, op, payload)
		if err == nil {
			r.markSuccess(name)
			tokens := int64(resp.TokensUsed)
			if tokens == 0 {
				tokens = est
			}
			r.quota.Record(ctx, name, tokens)
			r.breakerGauge(name)
			return &Result{Provider: name, Response: resp}, nil
		}

		kind := Classify(err)
		r.markFailure(name, kind, err)
		r.breakerGauge(name)
		metrics.BackendErrorsTotal.WithLabelValues(name, string(kind)).Inc()
		errs = append(errs, fmt.Errorf("provider %s: %w", name, err))
		if firstKind == "" {
			firstKind = kind
		}

		if !PolicyFor(kind).ShouldFailover {
			r.logger.Error("provider call failed, no failover for kind",
				"provider", name, "kind", kind, "error", err)
			break
		}
		if i < len(providers)-1 {
			r.mu.Lock()
			r.failoverCount++
			r.mu.Unlock()
			metrics.FailoversTotal.Inc()
			r.logger.Warn("failing over",
				"from", name, "to", providers[i+1], "kind", kind, "error", err)
		}
	}

	if firstKind == "" {
		firstKind = domain.ErrKindUnknown
	}
	return nil, &domain.ClassifiedError{
		Kind:     firstKind,
		Provider: providers[0],
		Err:      errors.Join(errs...),
	}
}

// callWithRetry invokes one provider through its breaker, retrying with
// linear backoff according to the classified kind of each failure. A
// breaker rejection is never retried; the breaker will not close until
// its recovery timeout elapses.
func (r *Router) callWithRetry(ctx context.Context, name string, op backend.OperationKind, payload json.RawMessage) (*backend.Response, error) {
	var (
		resp    *backend.Response
		attempt int
		delay   time.Duration
	)
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		return delay, false
	})
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callErr := r.breakers[name].Call(ctx, func(ctx context.Context) error {
			start := r.nowFn()
			metrics.BackendCallsTotal.WithLabelValues(name, string(op)).Inc()
			out, invokeErr := r.backends[name].Invoke(ctx, op, payload)
			metrics.BackendLatency.WithLabelValues(name, string(op)).Observe(time.Since(start).Seconds())
			if invokeErr != nil {
				return invokeErr
			}
			resp = out
			return nil
		})
		if callErr == nil {
			return nil
		}
		if errors.Is(callErr, domain.ErrBreakerOpen) {
			return callErr
		}

		attempt++
		kind := Classify(callErr)
		pol := PolicyFor(kind)
		maxRetries := pol.MaxRetries
		if maxRetries > r.cfg.MaxRetries {
			maxRetries = r.cfg.MaxRetries
		}
		if !pol.ShouldRetry || attempt > maxRetries {
			return callErr
		}
		delay = pol.RetryDelay * time.Duration(attempt)
		r.logger.Warn("retrying provider call",
			"provider", name,
			"operation", op,
			"attempt", attempt,
			"max_retries", maxRetries,
			"delay", delay,
			"kind", kind,
			"error", callErr)
		return retry.RetryableError(callErr)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Router) breakerGauge(name string) {
	metrics.BreakerState.WithLabelValues(name).Set(float64(r.breakers[name].State()))
}

// HealthReport snapshots provider health for the ops endpoint.
func (r *Router) HealthReport() domain.HealthReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	report := domain.HealthReport{
		Primary:       r.cfg.Primary,
		Secondary:     r.cfg.Secondary,
		FailoverCount: r.failoverCount,
		Providers:     make(map[string]domain.ProviderHealth, len(r.health)),
	}
	for name, h := range r.health {
		report.Providers[name] = *h
	}
	return report
}

// QuotaUsage returns per-provider consumption snapshots.
func (r *Router) QuotaUsage(ctx context.Context) (map[string]*quota.Usage, error) {
	out := make(map[string]*quota.Usage, len(r.backends))
	for name := range r.backends {
		u, err := r.quota.UsageFor(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("usage for %s: %w", name, err)
		}
		out[name] = u
	}
	return out, nil
}
