package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/social-auth/internal/common/clock"
	commonerrors "github.com/AlibekovAA/social-auth/internal/common/errors"
	"github.com/AlibekovAA/social-auth/internal/common/logger"
	"github.com/AlibekovAA/social-auth/internal/observability/metrics"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

type CircuitBreakerInterface interface {
	Call(ctx context.Context, fn func(context.Context) error) error
}

type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the circuit.
	Threshold int32
	// Timeout bounds each call. Zero leaves the caller's deadline alone.
	Timeout time.Duration
	// ResetAfter is how long the circuit stays open before a trial call is let through.
	ResetAfter time.Duration
	Name       string
	Logger     *logger.Logger
	Clock      clock.Clock
	// Ignore reports errors that are expected outcomes rather than
	// backend failures. pgx.ErrNoRows is always ignored.
	Ignore func(error) bool
}

// CircuitBreaker fails fast once a backend keeps failing. After ResetAfter
// a single trial call is allowed; its outcome closes or reopens the circuit.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu            sync.Mutex
	state         State
	failures      int32
	openedAt      time.Time
	trialInFlight bool
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Clock == nil {
		config.Clock = clock.NewRealClock()
	}
	if config.Threshold <= 0 {
		config.Threshold = 1
	}
	cb := &CircuitBreaker{cfg: config}
	cb.publishState()
	return cb
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	return cb.CallWithFallback(ctx, fn, nil)
}

func (cb *CircuitBreaker) CallWithFallback(ctx context.Context, fn func(context.Context) error, fallback func() error) error {
	if !cb.allow() {
		cb.warnf("circuit is open, rejecting request")
		if cb.cfg.Name != "" {
			metrics.CircuitBreakerRejected.WithLabelValues(cb.cfg.Name).Inc()
		}
		if fallback != nil {
			return fallback()
		}
		return commonerrors.ErrCircuitOpen
	}

	callCtx := ctx
	if cb.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cb.cfg.Timeout)
		defer cancel()
	}

	err := fn(callCtx)
	failed := err != nil && cb.countsAsFailure(ctx, err)
	cb.record(failed)

	if failed && fallback != nil {
		return fallback()
	}
	return err
}

// currentState moves an open circuit to half-open once ResetAfter has
// passed. Callers hold mu.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.cfg.Clock.Since(cb.openedAt) > cb.cfg.ResetAfter {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialInFlight = false

	if !failed {
		cb.failures = 0
		if cb.state != StateClosed {
			cb.transition(StateClosed)
		}
		return
	}

	cb.failures++
	if cb.cfg.Name != "" {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.cfg.Name).Inc()
	}
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.Threshold {
		cb.openedAt = cb.cfg.Clock.Now()
		if cb.state != StateOpen {
			cb.transition(StateOpen)
		}
	}
}

// countsAsFailure is false for expected outcomes and for calls the caller
// abandoned itself.
func (cb *CircuitBreaker) countsAsFailure(parent context.Context, err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	if parent.Err() != nil && errors.Is(err, parent.Err()) {
		return false
	}
	if cb.cfg.Ignore != nil && cb.cfg.Ignore(err) {
		return false
	}
	return true
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.publishState()
	cb.warnf("state %s -> %s", from, to)
}

func (cb *CircuitBreaker) publishState() {
	if cb.cfg.Name != "" {
		metrics.CircuitBreakerState.WithLabelValues(cb.cfg.Name).Set(float64(cb.state))
	}
}

func (cb *CircuitBreaker) warnf(format string, args ...any) {
	if cb.cfg.Logger == nil {
		return
	}
	cb.cfg.Logger.WithFields(context.Background(), logger.Fields{
		"breaker": cb.cfg.Name,
	}).Warnf("circuit breaker: "+format, args...)
}
