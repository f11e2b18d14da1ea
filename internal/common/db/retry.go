package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/AlibekovAA/social-auth/internal/common/logger"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

// backoff returns the wait before the given retry, counting from 1.
func (c RetryConfig) backoff(retry int) time.Duration {
	delay := c.InitialDelay
	for i := 1; i < retry; i++ {
		delay = time.Duration(float64(delay) * c.Multiplier)
		if delay >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return delay
}

// isRetryableError covers connection loss, serialization conflicts and lock
// timeouts. Statements that may have reached the server are only retried
// when the server itself reported a transient condition.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch {
	case strings.HasPrefix(pgErr.Code, "08"):
		return true
	case pgErr.Code == "40001", pgErr.Code == "40P01":
		return true
	case pgErr.Code == "55P03":
		return true
	}
	return false
}

// RetryWithBackoff runs operation until it succeeds, fails permanently or
// runs out of attempts. Only read paths use it; writes are not idempotent.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, config RetryConfig, operation func() error) error {
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = operation(); err == nil {
			if attempt > 1 {
				log.Infof("database operation succeeded after %d attempts", attempt)
			}
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := config.backoff(attempt)
		log.WithFields(ctx, logger.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
			"action":  "db_retry",
		}).Warnf("database operation failed, retrying: %v", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("database operation failed after %d attempts: %w", attempts, err)
}
