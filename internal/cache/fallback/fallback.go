// Package fallback keeps the last good analysis per policy text so a
// provider outage can serve a stale-but-useful result instead of an error.
package fallback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
	"github.com/mhmod01110/priv-band-ai/internal/infra/store"
	"github.com/mhmod01110/priv-band-ai/internal/metrics"
)

const keyPrefix = "fallback:"

// DefaultTTL keeps fallback entries for a week; policies change slowly
// and a week-old verdict still beats no verdict during an outage.
const DefaultTTL = 7 * 24 * time.Hour

// Key derives the fallback key: policy type plus a hash of the trimmed
// policy text. Unlike the idempotency key it ignores the shop identity,
// so the same text analyzed for two shops shares one fallback entry.
func Key(policyType domain.PolicyType, policyText string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(policyText)))
	return fmt.Sprintf("%s%s:%s", keyPrefix, policyType, hex.EncodeToString(sum[:]))
}

// Cache is the stale-result store consulted when all providers fail.
type Cache struct {
	store  store.Store
	ttl    time.Duration
	logger *slog.Logger
}

func New(s store.Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: s, ttl: ttl, logger: logger.With("component", "fallback")}
}

// Lookup returns the stored result for the policy, or nil on a miss.
func (c *Cache) Lookup(ctx context.Context, policyType domain.PolicyType, policyText string) (*domain.AnalysisResult, error) {
	key := Key(policyType, policyText)
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fallback lookup: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("dropping corrupt fallback entry", "key", key, "error", err)
		c.store.Delete(ctx, key)
		return nil, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("fallback").Inc()
	return &result, nil
}

// Store saves a successful result as the policy's fallback. Run-specific
// fields are stripped so a later serve does not impersonate the original
// run.
func (c *Cache) Store(ctx context.Context, req domain.AnalysisRequest, result *domain.AnalysisResult) error {
	entry := *result
	entry.RunID = ""
	raw, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("fallback marshal: %w", err)
	}
	key := Key(req.PolicyType, req.PolicyText)
	if err := c.store.SetWithTTL(ctx, key, raw, c.ttl); err != nil {
		return fmt.Errorf("fallback store: %w", err)
	}
	return nil
}
