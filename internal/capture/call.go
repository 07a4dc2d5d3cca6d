package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// callPolicy bounds every desktop call: each attempt gets a timeout and
// failed attempts are retried with a fixed delay.
type callPolicy struct {
	retries int
	delay   time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// call runs fn until it succeeds, the attempts run out or ctx is done.
// A timeout is never retried. Failures are reported as a *CaptureError.
func call[T any](ctx context.Context, p callPolicy, op string, page int, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := retry.DoWithData(
		func() (T, error) {
			return withTimeout(ctx, p.timeout, op, fn)
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.retries)+1),
		retry.Delay(p.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		// A timed-out attempt may still complete on its own, so sending it
		// again could turn two pages or overlap two captures.
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrTimeout)
		}),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("desktop call failed, retrying",
				"op", op, "page", page, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		var zero T
		return zero, &CaptureError{Op: op, Page: page, Err: err}
	}
	return v, nil
}

type callResult[T any] struct {
	v   T
	err error
}

// withTimeout runs fn in its own goroutine so a call that ignores its
// context still cannot block the loop past the deadline. An abandoned call
// keeps running until it returns on its own; its result is dropped.
func withTimeout[T any](ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(cctx)
		done <- callResult[T]{v: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		return r.v, r.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w: %s after %s", ErrTimeout, op, d)
	}
}
