package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/social-auth/internal/common/clock"
	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
)

var errBackend = errors.New("backend down")

func newTestBreaker(c clock.Clock, ignore func(error) bool) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Threshold:  2,
		Timeout:    time.Second,
		ResetAfter: 10 * time.Second,
		Clock:      c,
		Ignore:     ignore,
	})
}

func failing(context.Context) error { return errBackend }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	mockClock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newTestBreaker(mockClock, nil)
	ctx := context.Background()

	_ = cb.Call(ctx, failing)
	_ = cb.Call(ctx, failing)

	called := false
	err := cb.Call(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, commonerrors.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("operation must not run while circuit is open")
	}
}

func TestCircuitBreaker_ResetsAfterWindow(t *testing.T) {
	mockClock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newTestBreaker(mockClock, nil)
	ctx := context.Background()

	_ = cb.Call(ctx, failing)
	_ = cb.Call(ctx, failing)
	if !cb.IsOpen() {
		t.Fatal("expected circuit to be open")
	}

	mockClock.Advance(11 * time.Second)

	if err := cb.Call(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected call to succeed after reset window, got %v", err)
	}
	if cb.IsOpen() {
		t.Error("expected circuit to be closed")
	}
}

func TestCircuitBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	errNotFound := errors.New("not found")
	cb := newTestBreaker(nil, func(err error) bool { return errors.Is(err, errNotFound) })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := cb.Call(ctx, func(context.Context) error { return errNotFound }); !errors.Is(err, errNotFound) {
			t.Fatalf("expected errNotFound, got %v", err)
		}
		if err := cb.Call(ctx, func(context.Context) error { return pgx.ErrNoRows }); !errors.Is(err, pgx.ErrNoRows) {
			t.Fatalf("expected ErrNoRows, got %v", err)
		}
	}
	if cb.IsOpen() {
		t.Error("ignored errors must not open the circuit")
	}
}

func TestCircuitBreaker_Fallback(t *testing.T) {
	cb := newTestBreaker(nil, nil)
	errFallback := errors.New("fallback")

	err := cb.CallWithFallback(context.Background(), failing, func() error { return errFallback })
	if !errors.Is(err, errFallback) {
		t.Errorf("expected fallback error, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenAdmitsSingleTrial(t *testing.T) {
	mockClock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newTestBreaker(mockClock, nil)
	ctx := context.Background()

	_ = cb.Call(ctx, failing)
	_ = cb.Call(ctx, failing)
	mockClock.Advance(11 * time.Second)

	if got := cb.State(); got != StateHalfOpen {
		t.Fatalf("State() = %v, want half_open", got)
	}

	trialStarted := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(ctx, func(context.Context) error {
			close(trialStarted)
			<-release
			return nil
		})
	}()
	<-trialStarted

	if err := cb.Call(ctx, func(context.Context) error { return nil }); !errors.Is(err, commonerrors.ErrCircuitOpen) {
		t.Errorf("second call during trial = %v, want ErrCircuitOpen", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("trial error = %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State() after successful trial = %v, want closed", got)
	}
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	mockClock := clock.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cb := newTestBreaker(mockClock, nil)
	ctx := context.Background()

	_ = cb.Call(ctx, failing)
	_ = cb.Call(ctx, failing)
	mockClock.Advance(11 * time.Second)

	if err := cb.Call(ctx, failing); !errors.Is(err, errBackend) {
		t.Fatalf("trial error = %v", err)
	}
	if !cb.IsOpen() {
		t.Error("failed trial must reopen the circuit")
	}
}

func TestCircuitBreaker_CallerCancellationIsNotAFailure(t *testing.T) {
	cb := newTestBreaker(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 3; i++ {
		_ = cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
	}
	if got := cb.State(); got != StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}
