// Package routing handles provider selection, health tracking, and failover.
//
// This package contains:
//   - Classify: maps arbitrary failures into the fixed error taxonomy
//   - Breaker: per-provider circuit breaker
//   - Router: primary/secondary failover with retries and quota admission
package routing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

// Policy is the retry/failover decision for one error kind.
type Policy struct {
	ShouldRetry    bool
	ShouldFailover bool
	RetryDelay     time.Duration
	MaxRetries     int
}

// policies is the single source of truth for per-kind handling.
// InvalidRequest never retries and never fails over (caller bug).
// QuotaExceeded and Authentication never retry the same provider but do
// trigger failover.
var policies = map[domain.ErrorKind]Policy{
	domain.ErrKindQuotaExceeded:  {ShouldRetry: false, ShouldFailover: true},
	domain.ErrKindServiceCrash:   {ShouldRetry: true, ShouldFailover: true, RetryDelay: 5 * time.Second, MaxRetries: 2},
	domain.ErrKindTimeout:        {ShouldRetry: true, ShouldFailover: false, RetryDelay: 3 * time.Second, MaxRetries: 3},
	domain.ErrKindInvalidRequest: {ShouldRetry: false, ShouldFailover: false},
	domain.ErrKindAuthentication: {ShouldRetry: false, ShouldFailover: true},
	domain.ErrKindNetwork:        {ShouldRetry: true, ShouldFailover: false, RetryDelay: 2 * time.Second, MaxRetries: 3},
	domain.ErrKindUnknown:        {ShouldRetry: true, ShouldFailover: true, RetryDelay: 2 * time.Second, MaxRetries: 2},
}

// PolicyFor returns the handling policy for an error kind.
func PolicyFor(kind domain.ErrorKind) Policy {
	return policies[kind]
}

// patterns map lowercase substrings to kinds, consulted in order after
// status-code classification.
var patterns = []struct {
	kind    domain.ErrorKind
	matches []string
}{
	{domain.ErrKindQuotaExceeded, []string{
		"429", "rate limit", "quota exceeded", "insufficient quota",
		"billing hard limit", "resource exhausted", "too many requests",
	}},
	{domain.ErrKindTimeout, []string{
		"timeout", "timed out", "deadline exceeded",
	}},
	{domain.ErrKindServiceCrash, []string{
		"500", "502", "503", "504", "bad gateway", "service unavailable",
		"internal server error", "connection reset", "overloaded",
	}},
	{domain.ErrKindAuthentication, []string{
		"401", "403", "unauthorized", "forbidden", "invalid api key",
		"authentication failed",
	}},
	{domain.ErrKindInvalidRequest, []string{
		"400", "invalid request", "bad request", "malformed", "invalid json",
	}},
	{domain.ErrKindNetwork, []string{
		"network error", "connection refused", "connection error",
		"no such host", "dns",
	}},
}

// Classify determines the error kind for a failure. A numeric status code
// wins when present; otherwise the message is matched case-insensitively
// against the pattern table.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrKindUnknown
	}

	// Taxonomy-aware sentinels first.
	if errors.Is(err, domain.ErrQuotaExhausted) {
		return domain.ErrKindQuotaExceeded
	}
	if errors.Is(err, domain.ErrBreakerOpen) {
		return domain.ErrKindServiceCrash
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrKindTimeout
	}

	var se *backend.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return domain.ErrKindQuotaExceeded
		case se.StatusCode >= 500:
			return domain.ErrKindServiceCrash
		case se.StatusCode == 400:
			return domain.ErrKindInvalidRequest
		case se.StatusCode == 401 || se.StatusCode == 403:
			return domain.ErrKindAuthentication
		}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		for _, m := range p.matches {
			if strings.Contains(msg, m) {
				return p.kind
			}
		}
	}

	return domain.ErrKindUnknown
}
