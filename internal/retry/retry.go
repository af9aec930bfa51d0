// Package retry provides a bounded fixed-delay retry policy.
//
// The acquisition workflow's poll loop needs an exact attempt cap and a
// fixed inter-attempt delay, both observable in tests, so the policy owns
// its sleep function rather than delegating to a backoff library.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt completed without success.
var ErrExhausted = errors.New("retry attempts exhausted")

// Sleeper pauses between attempts. The default sleeps on a timer that
// respects context cancellation; tests substitute a recording fake.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Policy is a bounded fixed-delay retry policy.
type Policy struct {
	// MaxAttempts is the hard cap on attempts. Must be >= 1.
	MaxAttempts int

	// Interval is the fixed delay between attempts. No delay follows
	// the final attempt.
	Interval time.Duration

	sleeper Sleeper
}

// NewPolicy creates a policy with the default timer-based sleeper.
func NewPolicy(maxAttempts int, interval time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, Interval: interval, sleeper: timerSleeper{}}
}

// WithSleeper returns a copy of the policy using the given sleeper.
func (p Policy) WithSleeper(s Sleeper) Policy {
	p.sleeper = s
	return p
}

// Attempt is one unit of retryable work. Returning done=true stops the
// loop successfully. Returning a non-nil error aborts immediately; the
// policy never retries past an error.
type Attempt func(ctx context.Context, attempt int) (done bool, err error)

// Run executes fn up to MaxAttempts times, sleeping Interval between
// attempts. Attempts are numbered from 1. Returns nil when fn reports
// done, the attempt's error when fn fails, ErrExhausted when the cap is
// reached, or the context error when canceled mid-sleep.
func (p Policy) Run(ctx context.Context, fn Attempt) error {
	if p.MaxAttempts < 1 {
		return ErrExhausted
	}
	sleeper := p.sleeper
	if sleeper == nil {
		sleeper = timerSleeper{}
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if attempt < p.MaxAttempts {
			if err := sleeper.Sleep(ctx, p.Interval); err != nil {
				return err
			}
		}
	}

	return ErrExhausted
}
