package domain

import "time"

// ProviderStatus is the health state of one AI provider.
type ProviderStatus string

const (
	ProviderHealthy       ProviderStatus = "healthy"
	ProviderDegraded      ProviderStatus = "degraded"
	ProviderBlacklisted   ProviderStatus = "blacklisted"
	ProviderQuotaExceeded ProviderStatus = "quota_exceeded"
)

// ProviderHealth tracks one provider's rolling health. Mutated only by the
// router after each call.
type ProviderHealth struct {
	Status              ProviderStatus `json:"status"`
	BlacklistUntil      *time.Time     `json:"blacklist_until,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	TotalRequests       int64          `json:"total_requests"`
	SuccessfulRequests  int64          `json:"successful_requests"`
	LastError           string         `json:"last_error,omitempty"`
	LastSuccess         time.Time      `json:"last_success,omitempty"`
}

// SuccessRate returns the lifetime success percentage for the provider.
func (h ProviderHealth) SuccessRate() float64 {
	if h.TotalRequests == 0 {
		return 0
	}
	return float64(h.SuccessfulRequests) / float64(h.TotalRequests) * 100
}

// HealthReport is the router's snapshot served by the ops endpoint.
type HealthReport struct {
	Primary       string                    `json:"primary"`
	Secondary     string                    `json:"secondary"`
	FailoverCount int64                     `json:"failover_count"`
	Providers     map[string]ProviderHealth `json:"providers"`
}
