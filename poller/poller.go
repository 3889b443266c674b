// Package poller repeats a check at a fixed interval until it holds. Until
// has no deadline of its own and stops only when the context is done, which
// is what mailbox waits need since mail delivery latency is outside our
// control. WaitUntil and During are bounded.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrTimeout is returned by WaitUntil when the condition never held.
var ErrTimeout = errors.New("timed out waiting for the condition")

var errNotYet = errors.New("condition not met yet")

// Condition reports whether the awaited state has been reached. An error
// stops the polling and is returned to the caller as-is.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond right away, then every interval, until it holds, it
// fails, or ctx is done.
func Until(ctx context.Context, interval time.Duration, cond Condition) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := cond(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		// No cap: only ctx bounds the wait.
		backoff.WithMaxElapsedTime(0),
	)
	return err
}

// WaitUntil is Until bounded by timeout. It returns an error wrapping
// ErrTimeout when the timeout elapses first.
func WaitUntil(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := Until(tctx, interval, cond)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return err
}

// During polls cond for at most period and reports whether it held. Running
// out of time is not an error.
func During(ctx context.Context, period, interval time.Duration, cond Condition) (bool, error) {
	err := WaitUntil(ctx, period, interval, cond)
	if errors.Is(err, ErrTimeout) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
