package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
		RetryIf:    DefaultRetryIf(),
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})

	if result.LastError != nil {
		t.Fatalf("unexpected error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", result.Attempts)
	}
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New("always fails")
	})

	if !errors.Is(result.LastError, ErrMaxRetriesExceeded) {
		t.Fatalf("expected ErrMaxRetriesExceeded, got %v", result.LastError)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(-1)
	cfg.BaseDelay = 50 * time.Millisecond
	cfg.MaxDelay = 50 * time.Millisecond

	calls := 0
	result := Retry(ctx, cfg, func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("fail")
	})

	if !errors.Is(result.LastError, ErrContextCanceled) {
		t.Fatalf("expected ErrContextCanceled, got %v", result.LastError)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	calls := 0
	sentinel := errors.New("chain id mismatch")
	result := Retry(context.Background(), fastConfig(5), func() error {
		calls++
		return MarkNonRetryable(sentinel)
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(result.LastError, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", result.LastError)
	}
}

func TestRetryWithValue(t *testing.T) {
	calls := 0
	val, result := RetryWithValue(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("transient")
		}
		return 97, nil
	})

	if result.LastError != nil {
		t.Fatalf("unexpected error: %v", result.LastError)
	}
	if val != 97 {
		t.Errorf("val = %d, want 97", val)
	}
}

func TestRetryWithValue_FailureReturnsZero(t *testing.T) {
	val, result := RetryWithValue(context.Background(), fastConfig(1), func() (string, error) {
		return "partial", errors.New("fail")
	})
	if result.LastError == nil {
		t.Fatal("expected error")
	}
	if val != "" {
		t.Errorf("val = %q, want zero value", val)
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: 100 * time.Millisecond, Multiplier: 2.0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := calculateDelay(cfg, tt.attempt); got != tt.want {
			t.Errorf("calculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestCalculateDelay_MaxDelay(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 10}
	if got := calculateDelay(cfg, 4); got != 3*time.Second {
		t.Errorf("calculateDelay = %v, want capped 3s", got)
	}
}

func TestCalculateDelay_WithJitter(t *testing.T) {
	cfg := &RetryConfig{BaseDelay: 100 * time.Millisecond, Multiplier: 2.0, Jitter: 0.5}
	for i := 0; i < 20; i++ {
		d := calculateDelay(cfg, 1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("delay %v outside jitter range", d)
		}
	}
}

func TestMarkNonRetryable(t *testing.T) {
	if MarkNonRetryable(nil) != nil {
		t.Error("MarkNonRetryable(nil) should be nil")
	}
	err := MarkNonRetryable(errors.New("x"))
	if !IsNonRetryable(err) {
		t.Error("expected non-retryable")
	}
	if IsNonRetryable(errors.New("y")) {
		t.Error("plain error should be retryable")
	}
}
