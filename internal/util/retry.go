package util

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds configuration for retry with exponential backoff
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (0 = no retries, -1 = unlimited)
	MaxRetries int
	// BaseDelay is the initial delay between retries
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// Multiplier is the factor by which delay increases (default: 2.0)
	Multiplier float64
	// Jitter adds randomness to delays (0.0 - 1.0)
	Jitter float64
	// RetryIf is an optional function to determine if an error is retryable
	RetryIf func(error) bool
}

// DefaultRetryConfig is used for dialing RPC endpoints.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
		RetryIf:    DefaultRetryIf(),
	}
}

// RetryResult contains the result of a retry operation
type RetryResult struct {
	Attempts  int
	LastError error
	Duration  time.Duration
}

// ErrMaxRetriesExceeded is returned when max retries is exceeded
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

// ErrContextCanceled is returned when context is canceled during retry
var ErrContextCanceled = errors.New("context canceled during retry")

// RetryWithValue executes fn with exponential backoff until it succeeds, the
// error is not retryable, retries run out, or ctx is done.
func RetryWithValue[T any](ctx context.Context, config *RetryConfig, fn func() (T, error)) (T, *RetryResult) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var zero T
	result := &RetryResult{}
	start := time.Now()

	for {
		result.Attempts++

		val, err := fn()
		if err == nil {
			result.LastError = nil
			result.Duration = time.Since(start)
			return val, result
		}

		result.LastError = err

		if config.RetryIf != nil && !config.RetryIf(err) {
			result.Duration = time.Since(start)
			return zero, result
		}

		if config.MaxRetries >= 0 && result.Attempts > config.MaxRetries {
			result.LastError = errors.Join(ErrMaxRetriesExceeded, err)
			result.Duration = time.Since(start)
			return zero, result
		}

		select {
		case <-ctx.Done():
			result.LastError = errors.Join(ErrContextCanceled, ctx.Err())
			result.Duration = time.Since(start)
			return zero, result
		case <-time.After(calculateDelay(config, result.Attempts)):
		}
	}
}

// Retry is RetryWithValue for functions without a result.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) *RetryResult {
	_, result := RetryWithValue(ctx, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return result
}

// calculateDelay calculates the delay for a given attempt number
func calculateDelay(config *RetryConfig, attempt int) time.Duration {
	multiplier := config.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	// delay = baseDelay * multiplier^(attempt-1)
	delay := float64(config.BaseDelay) * math.Pow(multiplier, float64(attempt-1))

	if config.Jitter > 0 {
		jitterRange := delay * config.Jitter
		delay = delay - jitterRange + (rand.Float64() * 2 * jitterRange)
	}

	if config.MaxDelay > 0 && time.Duration(delay) > config.MaxDelay {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}

// NonRetryableError wraps an error and marks it as non-retryable
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nonRetryable *NonRetryableError
	return errors.As(err, &nonRetryable)
}

// MarkNonRetryable marks an error as non-retryable
func MarkNonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// DefaultRetryIf retries all errors except non-retryable ones
func DefaultRetryIf() func(error) bool {
	return func(err error) bool {
		return !IsNonRetryable(err)
	}
}
