package llmgate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         1.0,
		BackoffMultiplier: 2.0,
		MaxDelay:          60.0,
		Jitter:            false,
	}

	delays := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for i, expected := range delays {
		if got := policy.Delay(i); got != expected {
			t.Errorf("attempt %d: expected %v, got %v", i, expected, got)
		}
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         1.0,
		BackoffMultiplier: 2.0,
		MaxDelay:          5.0,
		Jitter:            false,
	}
	if got := policy.Delay(10); got != 5*time.Second {
		t.Errorf("expected 5s (capped), got %v", got)
	}
}

func TestRetryPolicyDelayJitterBounds(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:         4.0,
		BackoffMultiplier: 2.0,
		MaxDelay:          60.0,
		Jitter:            true,
	}
	for i := 0; i < 50; i++ {
		got := policy.Delay(0)
		if got < 2*time.Second || got > 6*time.Second {
			t.Fatalf("delay %v outside +/- 50%% jitter range", got)
		}
	}
}

func TestRetrySucceedsAfterRetryableError(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, MaxDelay: 0.01, BackoffMultiplier: 1.0}

	calls := 0
	result, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &ServerError{}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Errorf("result=%q calls=%d", result, calls)
	}
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 0.001, MaxDelay: 0.01, BackoffMultiplier: 1.0}

	calls := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		return "", &AuthenticationError{}
	})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, MaxDelay: 0.01, BackoffMultiplier: 1.0}

	calls := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, &ServerError{}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls (1 + 2 retries), got %d", calls)
	}
}

func TestRetryHonorsRetryAfterCap(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, MaxDelay: 1.0, BackoffMultiplier: 1.0}

	retryAfter := 300.0
	calls := 0
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, &RateLimitError{ProviderError{RetryAfter: &retryAfter}}
	})
	if err == nil {
		t.Fatal("expected error when retry-after exceeds the max delay")
	}
	if calls != 1 {
		t.Errorf("expected no retry, got %d calls", calls)
	}
}

func TestRetryCancelledContext(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: 10.0, MaxDelay: 60.0, BackoffMultiplier: 1.0}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Retry(ctx, policy, func(ctx context.Context) (int, error) {
		return 0, &ServerError{}
	})
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Fatalf("expected AbortError, got %v", err)
	}
}
