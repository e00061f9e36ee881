// Package retry runs cluster operations under a bounded, deterministic
// exponential backoff.
package retry

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/anvil-platform/gateway-console/internal/apperr"
)

// Classifier reports whether a failed attempt may be retried.
type Classifier func(error) bool

// Operation is a single attempt.
type Operation[T any] func(ctx context.Context) (T, error)

// ExhaustedError is returned once every attempt allowed by a policy failed
// with a retryable error. It unwraps to the last failure.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

func (e *ExhaustedError) Is(target error) bool {
	return target == apperr.ErrRetriesExhausted
}

// Executor runs operations sequentially, sleeping between attempts.
type Executor struct {
	Clock clock.Clock
	Log   logr.Logger
}

func NewExecutor(log logr.Logger) *Executor {
	return &Executor{Clock: clock.RealClock{}, Log: log}
}

// Do runs op until it succeeds, fails with an error retryable rejects, or the
// policy's attempts are used up. A nil classifier uses IsRetryable.
func Do[T any](ctx context.Context, e *Executor, name string, policy Policy, retryable Classifier, op Operation[T]) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, apperr.Wrap(apperr.KindInternal, err, "%s", name)
	}
	if retryable == nil {
		retryable = IsRetryable
	}
	clk := e.clock()
	logger := e.logger().WithValues("operation", name)

	backoff := policy.backoff()
	total := policy.MaxAttempts + 1
	var lastErr error
	for attempt := 1; attempt <= total; attempt++ {
		retryAttemptsTotal.WithLabelValues(name).Inc()

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retryable(err) {
			return zero, err
		}
		if attempt == total {
			break
		}

		delay := backoff.Step()
		logger.V(1).Info("operation failed; retrying", "attempt", attempt, "delay", delay, "error", err.Error())
		select {
		case <-ctx.Done():
			return zero, apperr.Wrap(apperr.KindOf(ctx.Err()), ctx.Err(), "%s: aborted after %d attempts", name, attempt)
		case <-clk.After(delay):
		}
	}

	retryExhaustedTotal.WithLabelValues(name).Inc()
	logger.Info("operation failed; retries exhausted", "attempts", total, "error", lastErr.Error())
	return zero, &ExhaustedError{Operation: name, Attempts: total, Err: lastErr}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, e *Executor, name string, policy Policy, retryable Classifier, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, name, policy, retryable, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func (e *Executor) logger() logr.Logger {
	if e == nil {
		return logr.Discard()
	}
	return e.Log
}

func (e *Executor) clock() clock.Clock {
	if e == nil || e.Clock == nil {
		return clock.RealClock{}
	}
	return e.Clock
}
