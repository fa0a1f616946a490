// Package ratelimit implements the sliding-window throttle applied to every
// outbound request. Third-party sites do not publish their limits, so the
// default is deliberately conservative.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrInvalidConfig is wrapped by New when the window parameters are unusable.
var ErrInvalidConfig = errors.New("invalid rate limiter configuration")

// Limiter caps how many calls may be granted within any trailing window of
// length period. Grant timestamps are kept oldest-first and dropped as they
// age out of the window.
//
// A Limiter may be shared by any number of goroutines and any number of
// clients; sharing one limiter is how multiple clients are made to respect a
// single upstream budget.
type Limiter struct {
	maxCalls int
	period   time.Duration

	mu    sync.Mutex
	calls []time.Time

	// replaced in tests so the window logic can run on a fake clock
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a limiter granting at most maxCalls per period. Both
// parameters must be positive, anything else fails here rather than
// misbehaving at request time.
func New(maxCalls int, period time.Duration) (*Limiter, error) {
	if maxCalls <= 0 {
		return nil, fmt.Errorf("%w: max calls must be positive, got %d", ErrInvalidConfig, maxCalls)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %s", ErrInvalidConfig, period)
	}
	return &Limiter{
		maxCalls: maxCalls,
		period:   period,
		calls:    make([]time.Time, 0, maxCalls),
		now:      time.Now,
		sleep:    sleepContext,
	}, nil
}

// Default returns the limiter used when a client is built without an
// explicit one: a single call per second.
func Default() *Limiter {
	l, err := New(1, time.Second)
	if err != nil {
		panic(err)
	}
	return l
}

// Acquire blocks the caller until one more call fits in the window, then
// records the grant and returns.
func (l *Limiter) Acquire() {
	_ = l.Wait(context.Background())
}

// Wait is Acquire with cancellation. It returns nil once a grant has been
// recorded, or ctx.Err() if the context is cancelled while waiting. A
// cancelled wait is never charged against the window.
//
// The window check and the grant append happen under one lock, so concurrent
// waiters can never overshoot the cap together. The lock is not held while
// sleeping; waiters that wake re-check the window before taking a slot.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.trim(now)
		if len(l.calls) < l.maxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.period - now.Sub(l.calls[0])
		l.mu.Unlock()

		if wait <= 0 {
			continue
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// trim drops grants older than the trailing window. Callers hold mu.
func (l *Limiter) trim(now time.Time) {
	cutoff := now.Add(-l.period)
	keep := 0
	for keep < len(l.calls) && !l.calls[keep].After(cutoff) {
		keep++
	}
	if keep > 0 {
		l.calls = append(l.calls[:0], l.calls[keep:]...)
	}
}

// pending reports how many grants currently sit in the window.
func (l *Limiter) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trim(l.now())
	return len(l.calls)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
