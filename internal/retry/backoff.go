// Package retry provides the exponential backoff loop used by tool
// connect sequences.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
// Return [Permanent](err) from the operation function to stop retrying
// immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  The backoff loop will return
// the inner error immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ErrExhausted is wrapped into the error returned by [Backoff.Do] when
// the attempt budget runs out.
var ErrExhausted = errors.New("retries exhausted")

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff implements exponential backoff: after the n-th consecutive
// failure the loop waits BaseDelay * 2^(n-1), capped at MaxDelay.
type Backoff struct {
	// BaseDelay is the delay after the first failure (default 1s).
	BaseDelay time.Duration
	// MaxDelay caps the backoff duration.  Zero means uncapped.
	MaxDelay time.Duration
	// MaxAttempts is the total number of tries including the first
	// (default 3).
	MaxAttempts int
	// OnFailure, if set, is called after every failed attempt with the
	// 1-based count of failures so far and the delay before the next
	// attempt (zero when no attempt follows).
	OnFailure func(failures int, err error, next time.Duration)
}

// DefaultBackoff returns the hub's default policy: three attempts,
// one second base delay.
func DefaultBackoff() *Backoff {
	return &Backoff{
		BaseDelay:   1 * time.Second,
		MaxAttempts: 3,
	}
}

// Delay returns the wait after the given number of consecutive
// failures (1-based).
func (b *Backoff) Delay(failures int) time.Duration {
	base := b.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	if failures < 1 {
		failures = 1
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if b.MaxDelay > 0 && d >= b.MaxDelay {
			return b.MaxDelay
		}
		if d <= 0 { // overflow
			return time.Duration(1<<63 - 1)
		}
	}
	if b.MaxDelay > 0 && d > b.MaxDelay {
		return b.MaxDelay
	}
	return d
}

func (b *Backoff) attempts() int {
	if b.MaxAttempts <= 0 {
		return 3
	}
	return b.MaxAttempts
}

// Do executes fn until it succeeds, returns a permanent error, the
// attempt budget is exhausted, or ctx is cancelled.  Attempts are
// strictly sequential.
//
// The attempt parameter passed to fn is 1-based.  Cancellation is
// checked between attempts, never in the middle of one.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	maxAttempts := b.attempts()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		if IsPermanent(err) {
			if b.OnFailure != nil {
				b.OnFailure(attempt, err, 0)
			}
			return errors.Unwrap(err)
		}

		if attempt >= maxAttempts {
			if b.OnFailure != nil {
				b.OnFailure(attempt, err, 0)
			}
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		wait := b.Delay(attempt)
		if b.OnFailure != nil {
			b.OnFailure(attempt, err, wait)
		}

		if err := Sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// Sleep waits for d or until ctx is done, whichever comes first, and
// returns ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
