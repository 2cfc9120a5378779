// Package idempotency deduplicates analysis runs. Identical requests hash
// to one key; a finished result is served from the cache and a live run
// holds a lock so a duplicate submission is rejected instead of doubled.
package idempotency

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

const (
	keyPrefix  = "idempotency:"
	lockSuffix = ":lock"

	// DefaultResultTTL keeps a finished result for a day.
	DefaultResultTTL = 24 * time.Hour

	// DefaultLockTTL must outlive the hard pipeline deadline so a killed
	// worker cannot leave a request locked forever.
	DefaultLockTTL = 10 * time.Minute
)

// Key derives the idempotency key for a request: a sha256 over the
// normalized identity fields in fixed order. Field order and
// normalization are part of the contract; changing either invalidates
// every cached entry.
func Key(req domain.AnalysisRequest) string {
	n := req.Normalize()
	var b strings.Builder
	b.WriteString("policy_text=")
	b.WriteString(strings.TrimSpace(n.PolicyText))
	b.WriteString("|policy_type=")
	b.WriteString(string(n.PolicyType))
	b.WriteString("|shop_name=")
	b.WriteString(n.ShopName)
	b.WriteString("|shop_specialization=")
	b.WriteString(n.ShopSpecialization)
	sum := sha256.Sum256([]byte(b.String()))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Cache stores finished results and run locks keyed by request identity.
type Cache struct {
	store     store.Store
	resultTTL time.Duration
	lockTTL   time.Duration
	logger    *slog.Logger
}

func New(s store.Store, resultTTL, lockTTL time.Duration, logger *slog.Logger) *Cache {
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	return &Cache{
		store:     s,
		resultTTL: resultTTL,
		lockTTL:   lockTTL,
		logger:    logger.With("component", "idempotency"),
	}
}

// Get returns the cached result for key, or nil on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*domain.AnalysisResult, error) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency get: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var result domain.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// A corrupt entry is dropped so the run can proceed fresh.
		c.logger.Warn("dropping corrupt cached result", "key", key, "error", err)
		c.store.Delete(ctx, key)
		return nil, nil
	}
	metrics.CacheHitsTotal.WithLabelValues("idempotency").Inc()
	return &result, nil
}

// Put stores a finished result. Only successful results belong here;
// failures must stay retryable.
func (c *Cache) Put(ctx context.Context, key string, result *domain.AnalysisResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("idempotency marshal: %w", err)
	}
	if err := c.store.SetWithTTL(ctx, key, raw, c.resultTTL); err != nil {
		return fmt.Errorf("idempotency put: %w", err)
	}
	return nil
}

// TryAcquire attempts to take the run lock for key. Exactly one of any
// set of concurrent callers wins.
func (c *Cache) TryAcquire(ctx context.Context, key string) (bool, error) {
	ok, err := c.store.SetNX(ctx, key+lockSuffix, []byte("1"), c.lockTTL)
	if err != nil {
		return false, fmt.Errorf("idempotency lock: %w", err)
	}
	return ok, nil
}

// Release drops the run lock. Safe to call when the lock already expired.
func (c *Cache) Release(ctx context.Context, key string) {
	if _, err := c.store.Delete(ctx, key+lockSuffix); err != nil {
		c.logger.Warn("lock release failed", "key", key, "error", err)
	}
}
