package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestNewRejectsBadConfig(t *testing.T) {
	testCases := []struct {
		maxCalls int
		period   time.Duration
	}{
		{maxCalls: 0, period: time.Second},
		{maxCalls: -3, period: time.Second},
		{maxCalls: 1, period: 0},
		{maxCalls: 1, period: -time.Second},
	}
	for _, test := range testCases {
		_, err := New(test.maxCalls, test.period)
		require.ErrorIs(t, err, ErrInvalidConfig)
	}

	_, err := New(1, time.Second)
	require.NoError(t, err)
}

func TestDefault(t *testing.T) {
	l := Default()
	require.Equal(t, 1, l.maxCalls)
	require.Equal(t, time.Second, l.period)

	l.Acquire()
	require.Equal(t, 1, l.pending())
}

// Drives the window logic on a fake clock and checks the computed waits
// against the sliding-window algorithm by hand.
func TestWaitWindowMath(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l, err := New(3, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	l.now = clk.now

	var slept []time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clk.advance(d)
		return nil
	}

	// three grants fit the empty window with no waiting
	for i := 0; i < 3; i++ {
		l.Acquire()
	}
	require.Empty(t, slept)
	require.Equal(t, 3, l.pending())

	// the fourth must wait out the full period
	l.Acquire()
	require.Equal(t, []time.Duration{time.Second}, slept)

	// t=1.4s: the three t=0 grants have aged out, only t=1s remains
	clk.advance(400 * time.Millisecond)
	l.Acquire()
	l.Acquire()
	require.Len(t, slept, 1)

	// window now holds t=1s, t=1.4s, t=1.4s; the oldest frees up at t=2s
	l.Acquire()
	require.Equal(t, []time.Duration{time.Second, 600 * time.Millisecond}, slept)
}

// Concurrent acquirers must never collectively beat the cap: 12 grants at 4
// per 100ms cannot complete in under 200ms.
func TestConcurrentAcquireHonorsWindow(t *testing.T) {
	l, err := New(4, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	wg := sync.WaitGroup{}
	for g := 0; g < 3; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 4; i++ {
				l.Acquire()
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	require.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	require.LessOrEqual(t, l.pending(), 4)
}

// The lock must not be held while a waiter sleeps, otherwise a full window
// would also block goroutines that only want to inspect the limiter.
func TestLockReleasedDuringWait(t *testing.T) {
	l, err := New(1, 200*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	l.Acquire()

	done := make(chan struct{})
	go func() {
		l.Acquire()
		close(done)
	}()

	// give the waiter time to enter its sleep, then probe the lock
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, l.pending())
	<-done
}

func TestWaitCancellationIsNotCharged(t *testing.T) {
	l, err := New(1, 80*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	l.Acquire()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = l.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, l.pending())

	// the cancelled wait left no extra grant behind, so the next acquire
	// only waits out the original slot
	l.Acquire()
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
