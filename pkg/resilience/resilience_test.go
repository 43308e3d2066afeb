// SPDX-License-Identifier: Apache-2.0
package resilience

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jllopis/telos/pkg/errors"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithMaxAttempts(3).WithInitialDelay(time.Millisecond)

	err := cfg.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return stderrors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryStopsOnUnrecoverable(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithMaxAttempts(5).WithInitialDelay(time.Millisecond)

	fatal := errors.New(errors.CodeUnauthorized, "token expired", nil) // not recoverable
	err := cfg.Do(context.Background(), func() error {
		attempts++
		return fatal
	})
	if err != fatal {
		t.Fatalf("expected fatal error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	cfg := DefaultRetryConfig().WithMaxAttempts(2).WithInitialDelay(time.Millisecond)

	err := cfg.Do(context.Background(), func() error {
		attempts++
		return stderrors.New("still failing")
	})
	if err == nil {
		t.Fatalf("expected error after exhausting attempts")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultRetryConfig().WithMaxAttempts(3).WithInitialDelay(time.Second)
	err := cfg.Do(ctx, func() error { return stderrors.New("boom") })

	var te *errors.TelosError
	if !stderrors.As(err, &te) || te.Code != errors.CodeContextLost {
		t.Fatalf("expected CONTEXT_LOST, got %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), TimeoutConfig{Duration: 10 * time.Millisecond}, func() error {
		time.Sleep(100 * time.Millisecond)
		return nil
	})
	var te *errors.TelosError
	if !stderrors.As(err, &te) || te.Code != errors.CodeTimeout {
		t.Fatalf("expected TIMEOUT, got %v", err)
	}

	if err := WithTimeout(context.Background(), TimeoutConfig{}, func() error { return nil }); err != nil {
		t.Fatalf("zero duration should run inline: %v", err)
	}
}
