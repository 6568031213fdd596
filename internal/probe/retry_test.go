package probe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	t.Parallel()
	attempts := 0

	err := retryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		if attempts == 3 {
			return nil
		}
		return errors.New("502 Bad Gateway")
	})
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_MaxRetriesExceeded(t *testing.T) {
	t.Parallel()
	attempts := 0
	want := errors.New("connection refused")

	err := retryWithBackoff(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("Expected %v, got %v", want, err)
	}
	// initial + 3 retries
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_Permanent(t *testing.T) {
	t.Parallel()
	attempts := 0
	want := errors.New("404 Not Found")

	err := retryWithBackoff(context.Background(), 5, time.Millisecond, func() error {
		attempts++
		return permanent(want)
	})
	if !errors.Is(err, want) {
		t.Fatalf("Expected %v, got %v", want, err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for permanent error, got %d", attempts)
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithBackoff(ctx, 5, time.Hour, func() error {
		return errors.New("503 Service Unavailable")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
