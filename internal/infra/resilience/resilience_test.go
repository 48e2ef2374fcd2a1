package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/boddenberg/netgen/internal/domain"
	"github.com/boddenberg/netgen/internal/infra/resilience"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if callCount != 3 {
		t.Errorf("expected 3 attempts, got %d", callCount)
	}
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2}

	callCount := 0
	_ = resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("fail")
	})

	if callCount != 3 {
		t.Errorf("expected 3 attempts, got %d", callCount)
	}
}

func TestRetryWithBackoff_StopsOnNonRetryable(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
		Retryable:      resilience.IsRetryable,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return &domain.ErrTransport{Backend: "b", Endpoint: "e", StatusCode: 401, Err: errors.New("unauthorized")}
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if callCount != 1 {
		t.Errorf("expected a single attempt for 401, got %d", callCount)
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestIsRetryable(t *testing.T) {
	transport := func(code int) error {
		return &domain.ErrTransport{Backend: "b", Endpoint: "e", StatusCode: code, Err: errors.New("x")}
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", transport(503), true},
		{"rate limited", transport(429), true},
		{"bad request", transport(400), false},
		{"network error", transport(0), true},
		{"wrapped client error", fmt.Errorf("call: %w", transport(404)), false},
		{"canceled", context.Canceled, false},
		{"breaker open", gobreaker.ErrOpenState, false},
		{"plain error", errors.New("boom"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resilience.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_TripsAndNotifies(t *testing.T) {
	var transitions []gobreaker.State
	cb := resilience.NewCircuitBreaker("test", func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (interface{}, error) {
			return nil, errors.New("fail")
		})
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", cb.State())
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("expected single transition to open, got %v", transitions)
	}

	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestCircuitBreaker_IgnoresAbandonedCalls(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test", nil)

	for i := 0; i < 10; i++ {
		_, err := cb.Execute(func() (interface{}, error) {
			return nil, resilience.Abandoned(context.DeadlineExceeded)
		})
		if !resilience.IsAbandoned(err) {
			t.Fatalf("expected abandoned error back, got %v", err)
		}
	}

	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker after abandoned calls, got %s", cb.State())
	}
	if c := cb.Counts(); c.TotalFailures != 0 {
		t.Errorf("expected no failures counted, got %d", c.TotalFailures)
	}
}

func TestAbandoned(t *testing.T) {
	if resilience.Abandoned(nil) != nil {
		t.Error("expected nil for nil error")
	}
	err := resilience.Abandoned(context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("expected abandoned error to unwrap to its cause")
	}
	if !resilience.IsAbandoned(fmt.Errorf("wrapped: %w", err)) {
		t.Error("expected IsAbandoned through wrapping")
	}
	if resilience.IsAbandoned(errors.New("boom")) {
		t.Error("plain errors are not abandoned")
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; use a timeout context.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

func TestBulkhead_Do(t *testing.T) {
	bh := resilience.NewBulkhead(0)

	ran := false
	if err := bh.Do(context.Background(), func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("expected fn to run")
	}

	// slot was released
	if err := bh.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected second Do to acquire, got %v", err)
	}
}
