package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clausevault/clausevault/internal/clauseerr"
)

func testConfig() Config {
	return Config{GlobalQPS: 10, PerDomainQPS: 10, CircuitBreakerEnabled: true, CooldownSec: 1}
}

func TestLimiter_TryAcquire_burstThenDeny(t *testing.T) {
	lim := New(Config{GlobalQPS: 1, PerDomainQPS: 1, CircuitBreakerEnabled: true, CooldownSec: 1})
	url := "https://insurer.example.com/doc.pdf"

	granted := 0
	for i := 0; i < 5; i++ {
		ok, err := lim.TryAcquire(url)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			granted++
		}
	}
	// capacity = 2*QPS = 2, so at most 2 of 5 immediate attempts should succeed.
	if granted != 2 {
		t.Errorf("granted = %d, want 2 (capacity burst)", granted)
	}
}

func TestLimiter_CircuitBreaker_tripsOn429(t *testing.T) {
	lim := New(testConfig())
	url := "https://insurer.example.com/doc.pdf"

	if err := lim.RecordFailure(url, 429); err != nil {
		t.Fatal(err)
	}
	ok, err := lim.TryAcquire(url)
	if err != nil {
		if !clauseerr.Is(err, clauseerr.CircuitOpen) {
			t.Errorf("want CircuitOpen error, got %v", err)
		}
	} else if ok {
		t.Error("expected breaker to be open after a 429")
	}
}

func TestLimiter_CircuitBreaker_tripsAfterThreeFailures(t *testing.T) {
	lim := New(testConfig())
	url := "https://insurer.example.com/doc.pdf"

	for i := 0; i < tripThreshold; i++ {
		if err := lim.RecordFailure(url, 500); err != nil {
			t.Fatal(err)
		}
	}
	_, err := lim.TryAcquire(url)
	if !clauseerr.Is(err, clauseerr.CircuitOpen) {
		t.Errorf("want CircuitOpen after %d consecutive failures, got %v", tripThreshold, err)
	}
}

func TestLimiter_CircuitBreaker_recordSuccessCloses(t *testing.T) {
	lim := New(testConfig())
	url := "https://insurer.example.com/doc.pdf"

	if err := lim.RecordFailure(url, 429); err != nil {
		t.Fatal(err)
	}
	if err := lim.RecordSuccess(url); err != nil {
		t.Fatal(err)
	}
	ok, err := lim.TryAcquire(url)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected breaker closed after RecordSuccess to allow acquisition")
	}
}

func TestLimiter_Acquire_cancelledContext(t *testing.T) {
	lim := New(Config{GlobalQPS: 0.1, PerDomainQPS: 0.1, CircuitBreakerEnabled: false})
	url := "https://insurer.example.com/doc.pdf"
	// drain the burst capacity first.
	for i := 0; i < 10; i++ {
		lim.TryAcquire(url)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := lim.Acquire(ctx, url)
	if err == nil {
		t.Fatal("expected timeout error from cancelled context")
	}
	var ce *clauseerr.Error
	if !errors.As(err, &ce) || ce.Kind != clauseerr.Timeout {
		t.Errorf("want Timeout kind, got %v", err)
	}
}

func TestLimiter_DomainFor_rejectsMalformedURL(t *testing.T) {
	lim := New(testConfig())
	_, err := lim.TryAcquire("")
	if !clauseerr.Is(err, clauseerr.InvalidInput) {
		t.Errorf("want InvalidInput, got %v", err)
	}
}
