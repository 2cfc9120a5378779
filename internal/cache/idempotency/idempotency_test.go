package idempotency

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/core/domain"
	"github.com/mhmod01110/priv-band-ai/internal/infra/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func sampleRequest() domain.AnalysisRequest {
	return domain.AnalysisRequest{
		ShopName:           "Acme Outdoors",
		ShopSpecialization: "camping gear",
		PolicyType:         domain.PolicyReturnExchange,
		PolicyText:         "Items may be returned within 30 days for a full refund.",
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key(sampleRequest())
	b := Key(sampleRequest())
	if a != b {
		t.Errorf("Expected identical keys, got %s and %s", a, b)
	}

	// Whitespace noise in identity fields must not change the key.
	noisy := sampleRequest()
	noisy.ShopName = "  Acme   Outdoors "
	if Key(noisy) != a {
		t.Error("Expected whitespace-normalized key to match")
	}
}

func TestKey_FieldsChangeKey(t *testing.T) {
	base := Key(sampleRequest())

	variants := []func(*domain.AnalysisRequest){
		func(r *domain.AnalysisRequest) { r.ShopName = "Other Shop" },
		func(r *domain.AnalysisRequest) { r.ShopSpecialization = "electronics" },
		func(r *domain.AnalysisRequest) { r.PolicyType = domain.PolicyPrivacyAccount },
		func(r *domain.AnalysisRequest) { r.PolicyText = "different text" },
	}
	for i, mutate := range variants {
		req := sampleRequest()
		mutate(&req)
		if Key(req) == base {
			t.Errorf("Variant %d: expected a different key", i)
		}
	}
}

func TestCache_PutGet(t *testing.T) {
	c := New(memory.New(), time.Hour, time.Minute, testLogger())
	ctx := context.Background()
	key := Key(sampleRequest())

	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatal("Expected miss before Put")
	}

	result := &domain.AnalysisResult{Success: true, Message: "done", PolicyType: domain.PolicyReturnExchange}
	if err := c.Put(ctx, key, result); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || !got.Success || got.Message != "done" {
		t.Errorf("Expected stored result back, got %+v", got)
	}
}

func TestCache_ResultTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	st := memory.NewWithClock(func() time.Time { return now })
	c := New(st, time.Hour, time.Minute, testLogger())
	ctx := context.Background()
	key := Key(sampleRequest())

	c.Put(ctx, key, &domain.AnalysisResult{Success: true})

	now = now.Add(59 * time.Minute)
	if got, _ := c.Get(ctx, key); got == nil {
		t.Error("Expected result to be live before TTL")
	}

	now = now.Add(2 * time.Minute)
	if got, _ := c.Get(ctx, key); got != nil {
		t.Error("Expected result to expire after TTL")
	}
}

func TestCache_TryAcquireExclusive(t *testing.T) {
	c := New(memory.New(), time.Hour, time.Minute, testLogger())
	ctx := context.Background()
	key := Key(sampleRequest())

	var wg sync.WaitGroup
	wins := make(chan bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := c.TryAcquire(ctx, key)
			if err != nil {
				t.Errorf("TryAcquire failed: %v", err)
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for ok := range wins {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly one lock winner, got %d", winners)
	}

	// Release reopens the lock.
	c.Release(ctx, key)
	ok, _ := c.TryAcquire(ctx, key)
	if !ok {
		t.Error("Expected TryAcquire to succeed after Release")
	}
}

func TestCache_LockDoesNotShadowResult(t *testing.T) {
	c := New(memory.New(), time.Hour, time.Minute, testLogger())
	ctx := context.Background()
	key := Key(sampleRequest())

	if ok, _ := c.TryAcquire(ctx, key); !ok {
		t.Fatal("Expected lock acquisition")
	}
	c.Put(ctx, key, &domain.AnalysisResult{Success: true})

	got, _ := c.Get(ctx, key)
	if got == nil {
		t.Error("Expected result readable while lock is held")
	}
}
