package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/concert-ticketing/internal/observability"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrRetriesExhausted wraps the last transient failure once a RetryPolicy gives up.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// RetryPolicy re-runs a unit of work after transient store failures with exponential backoff.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   6,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Do calls fn until it succeeds, fails with a non-transient error, the context ends, or
// MaxAttempts is reached. fn must re-read any state it depends on; nothing carries over
// between attempts.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				zap.L().Info("transaction succeeded after retry", zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		observability.IncrementTxRetry("retried")
		zap.L().Warn("transient store failure, retrying transaction",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		delay = time.Duration(float64(delay) * p.BackoffFactor)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	observability.IncrementTxRetry("exhausted")
	zap.L().Error("transaction failed after all retry attempts", zap.Int("max_attempts", attempts), zap.Error(lastErr))
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

// transient is implemented by errors that know they are safe to retry.
type transient interface {
	Transient() bool
}

// IsTransient reports whether err is a contention or connectivity failure for which
// re-running the whole transaction may succeed.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57P01", // admin_shutdown
			"57P03": // cannot_connect_now
			return true
		}
		// connection_exception class
		return strings.HasPrefix(pgErr.Code, "08")
	}

	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
