package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/infra/store"
)

const (
	dailyTTL  = 48 * time.Hour
	hourlyTTL = 2 * time.Hour
)

// Limits caps token and request usage for one provider over a window.
type Limits struct {
	DailyTokens    int64 `yaml:"daily_tokens"`
	DailyRequests  int64 `yaml:"daily_requests"`
	HourlyTokens   int64 `yaml:"hourly_tokens"`
	HourlyRequests int64 `yaml:"hourly_requests"`
}

// DefaultLimits returns the free-tier limits applied when a provider
// has no explicit configuration.
func DefaultLimits() Limits {
	return Limits{
		DailyTokens:    1_000_000,
		DailyRequests:  1_500,
		HourlyTokens:   100_000,
		HourlyRequests: 100,
	}
}

// Usage is a snapshot of one provider's consumption against its limits.
type Usage struct {
	Provider       string  `json:"provider"`
	DailyTokens    int64   `json:"daily_tokens"`
	DailyRequests  int64   `json:"daily_requests"`
	HourlyTokens   int64   `json:"hourly_tokens"`
	HourlyRequests int64   `json:"hourly_requests"`
	Limits         Limits  `json:"limits"`
	DailyTokenPct  float64 `json:"daily_token_pct"`
	HourlyTokenPct float64 `json:"hourly_token_pct"`
}

// Tracker accounts AI token and request usage per provider in a
// shared store so every worker sees the same counters.
type Tracker struct {
	store  store.Store
	limits map[string]Limits
	logger *slog.Logger
	nowFn  func() time.Time
}

func New(s store.Store, limits map[string]Limits, logger *slog.Logger) *Tracker {
	if limits == nil {
		limits = map[string]Limits{}
	}
	return &Tracker{
		store:  s,
		limits: limits,
		logger: logger.With("component", "quota"),
		nowFn:  time.Now,
	}
}

// NewWithClock is used by tests to pin the counter windows.
func NewWithClock(s store.Store, limits map[string]Limits, logger *slog.Logger, now func() time.Time) *Tracker {
	t := New(s, limits, logger)
	t.nowFn = now
	return t
}

func (t *Tracker) limitsFor(provider string) Limits {
	if l, ok := t.limits[provider]; ok {
		return l
	}
	return DefaultLimits()
}

func (t *Tracker) dailyKey(provider, unit string) string {
	return fmt.Sprintf("quota:%s:daily:%s:%s", provider, t.nowFn().UTC().Format("2006-01-02"), unit)
}

func (t *Tracker) hourlyKey(provider, unit string) string {
	return fmt.Sprintf("quota:%s:hourly:%s:%s", provider, t.nowFn().UTC().Format("2006-01-02:15"), unit)
}

func (t *Tracker) counter(ctx context.Context, key string) (int64, error) {
	raw, err := t.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", key, err)
	}
	return n, nil
}

// Allow reports whether a call estimated at estTokens fits within all
// four counters for the provider. Store failures admit the call so a
// counter outage never blocks analysis.
func (t *Tracker) Allow(ctx context.Context, provider string, estTokens int64) bool {
	limits := t.limitsFor(provider)

	checks := []struct {
		key   string
		add   int64
		limit int64
	}{
		{t.dailyKey(provider, "tokens"), estTokens, limits.DailyTokens},
		{t.dailyKey(provider, "requests"), 1, limits.DailyRequests},
		{t.hourlyKey(provider, "tokens"), estTokens, limits.HourlyTokens},
		{t.hourlyKey(provider, "requests"), 1, limits.HourlyRequests},
	}
	for _, c := range checks {
		used, err := t.counter(ctx, c.key)
		if err != nil {
			t.logger.Warn("quota check failed, admitting", "provider", provider, "key", c.key, "error", err)
			continue
		}
		if used+c.add > c.limit {
			t.logger.Warn("quota exhausted",
				"provider", provider,
				"key", c.key,
				"used", used,
				"estimate", c.add,
				"limit", c.limit)
			return false
		}
	}
	return true
}

// Record adds actual usage to the provider's counters after a
// successful call. Counter TTLs outlive their windows so stale keys
// expire on their own.
func (t *Tracker) Record(ctx context.Context, provider string, tokens int64) {
	incs := []struct {
		key string
		n   int64
		ttl time.Duration
	}{
		{t.dailyKey(provider, "tokens"), tokens, dailyTTL},
		{t.dailyKey(provider, "requests"), 1, dailyTTL},
		{t.hourlyKey(provider, "tokens"), tokens, hourlyTTL},
		{t.hourlyKey(provider, "requests"), 1, hourlyTTL},
	}
	for _, inc := range incs {
		if _, err := t.store.IncrBy(ctx, inc.key, inc.n, inc.ttl); err != nil {
			t.logger.Error("quota record failed", "provider", provider, "key", inc.key, "error", err)
		}
	}
	t.warnNearLimit(ctx, provider)
}

func (t *Tracker) warnNearLimit(ctx context.Context, provider string) {
	limits := t.limitsFor(provider)
	daily, err := t.counter(ctx, t.dailyKey(provider, "tokens"))
	if err != nil || limits.DailyTokens == 0 {
		return
	}
	pct := float64(daily) / float64(limits.DailyTokens) * 100
	switch {
	case pct >= 90:
		t.logger.Error("daily token quota critical", "provider", provider, "pct", pct)
	case pct >= 75:
		t.logger.Warn("daily token quota high", "provider", provider, "pct", pct)
	}
}

// UsageFor returns a consumption snapshot for one provider.
func (t *Tracker) UsageFor(ctx context.Context, provider string) (*Usage, error) {
	limits := t.limitsFor(provider)
	u := &Usage{Provider: provider, Limits: limits}

	var err error
	if u.DailyTokens, err = t.counter(ctx, t.dailyKey(provider, "tokens")); err != nil {
		return nil, err
	}
	if u.DailyRequests, err = t.counter(ctx, t.dailyKey(provider, "requests")); err != nil {
		return nil, err
	}
	if u.HourlyTokens, err = t.counter(ctx, t.hourlyKey(provider, "tokens")); err != nil {
		return nil, err
	}
	if u.HourlyRequests, err = t.counter(ctx, t.hourlyKey(provider, "requests")); err != nil {
		return nil, err
	}
	if limits.DailyTokens > 0 {
		u.DailyTokenPct = float64(u.DailyTokens) / float64(limits.DailyTokens) * 100
	}
	if limits.HourlyTokens > 0 {
		u.HourlyTokenPct = float64(u.HourlyTokens) / float64(limits.HourlyTokens) * 100
	}
	return u, nil
}
