package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/ai/backend"
	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
)

func TestClassify_StatusCodes(t *testing.T) {
	cases := []struct {
		code int
		want domain.ErrorKind
	}{
		{429, domain.ErrKindQuotaExceeded},
		{500, domain.ErrKindServiceCrash},
		{502, domain.ErrKindServiceCrash},
		{503, domain.ErrKindServiceCrash},
		{400, domain.ErrKindInvalidRequest},
		{401, domain.ErrKindAuthentication},
		{403, domain.ErrKindAuthentication},
	}
	for _, tc := range cases {
		err := &backend.StatusError{Provider: "openai", StatusCode: tc.code, Message: "x"}
		if got := Classify(err); got != tc.want {
			t.Errorf("Status %d: expected %s, got %s", tc.code, tc.want, got)
		}
	}
}

func TestClassify_Patterns(t *testing.T) {
	cases := []struct {
		msg  string
		want domain.ErrorKind
	}{
		{"Rate limit reached for requests", domain.ErrKindQuotaExceeded},
		{"insufficient quota for this month", domain.ErrKindQuotaExceeded},
		{"request timed out", domain.ErrKindTimeout},
		{"upstream connection reset by peer", domain.ErrKindServiceCrash},
		{"model is overloaded", domain.ErrKindServiceCrash},
		{"Invalid API key provided", domain.ErrKindAuthentication},
		{"malformed request body", domain.ErrKindInvalidRequest},
		{"dial tcp: connection refused", domain.ErrKindNetwork},
		{"something entirely novel", domain.ErrKindUnknown},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("%q: expected %s, got %s", tc.msg, tc.want, got)
		}
	}
}

func TestClassify_Sentinels(t *testing.T) {
	if got := Classify(domain.ErrQuotaExhausted); got != domain.ErrKindQuotaExceeded {
		t.Errorf("Expected quota kind, got %s", got)
	}
	if got := Classify(domain.ErrBreakerOpen); got != domain.ErrKindServiceCrash {
		t.Errorf("Expected crash kind for open breaker, got %s", got)
	}
	wrapped := fmt.Errorf("call failed: %w", context.DeadlineExceeded)
	if got := Classify(wrapped); got != domain.ErrKindTimeout {
		t.Errorf("Expected timeout kind, got %s", got)
	}
}

func TestPolicyFor(t *testing.T) {
	p := PolicyFor(domain.ErrKindInvalidRequest)
	if p.ShouldRetry || p.ShouldFailover {
		t.Error("InvalidRequest must never retry or fail over")
	}

	p = PolicyFor(domain.ErrKindQuotaExceeded)
	if p.ShouldRetry {
		t.Error("QuotaExceeded must not retry the same provider")
	}
	if !p.ShouldFailover {
		t.Error("QuotaExceeded must fail over")
	}

	p = PolicyFor(domain.ErrKindTimeout)
	if !p.ShouldRetry || p.ShouldFailover {
		t.Error("Timeout retries the same provider without failover")
	}
	if p.RetryDelay != 3*time.Second || p.MaxRetries != 3 {
		t.Errorf("Unexpected timeout policy: %+v", p)
	}

	p = PolicyFor(domain.ErrKindServiceCrash)
	if !p.ShouldRetry || !p.ShouldFailover {
		t.Error("ServiceCrash retries and fails over")
	}
}
