package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Func is one attempt. attempt counts from 1.
type Func func(ctx context.Context, attempt int) error

// Policy bounds a retry loop.
type Policy struct {
	// Attempts is the total number of attempts. Values below 1 mean 1.
	Attempts int

	// Backoff supplies the delays between attempts. Nil means no delay.
	Backoff *Backoff

	// OnRetry is called after a failed attempt that will be retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Permanent marks an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop wraps err so that Do returns it immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Do runs fn until it succeeds, returns a Permanent error, the context is
// cancelled, or the attempts are used up. On exhaustion the returned error
// wraps both ErrExhausted and the last attempt's error.
func Do(ctx context.Context, p Policy, fn Func) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx, attempt)
		if last == nil {
			return nil
		}

		var perm *Permanent
		if errors.As(last, &perm) {
			return perm.Err
		}
		if attempt == attempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff.Delay(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, last)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, last)
}
