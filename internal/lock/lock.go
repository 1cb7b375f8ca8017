// Package lock provides the single named document lock that serialises every
// ledger mutation. Waits are bounded; a timed-out Acquire is never retried
// here.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when the lock could not be obtained in time.
var ErrTimeout = errors.New("timed out waiting for document lock")

// DefaultTimeout bounds the wait on registration and check-in paths.
const DefaultTimeout = 5 * time.Second

// pollInterval is the retry step for try-lock based implementations.
const pollInterval = 50 * time.Millisecond

// Release gives the lock back. It is safe to call more than once.
type Release func()

// Locker acquires the document lock, waiting at most timeout.
//
// The returned context carries the values of ctx but not its cancellation. It
// is done once the lock is released or lost, so work under the lock checks it
// before writing.
type Locker interface {
	Acquire(ctx context.Context, timeout time.Duration) (context.Context, Release, error)
}

// tryFunc makes one non-blocking attempt. ok=false means the lock is held
// elsewhere.
type tryFunc func(ctx context.Context) (held context.Context, release Release, ok bool, err error)

// poll repeats try until it succeeds, fails, or timeout elapses.
func poll(ctx context.Context, timeout time.Duration, try tryFunc) (context.Context, Release, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		held, release, ok, err := try(ctx)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			return held, once(release), nil
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-deadline.C:
			return nil, nil, ErrTimeout
		case <-tick.C:
		}
	}
}

// hold returns the held context for a lock that ends only when released.
// Releasing cancels it before unlock runs.
func hold(ctx context.Context, unlock func()) (context.Context, Release) {
	held, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return held, once(func() {
		cancel()
		unlock()
	})
}

func once(r Release) Release {
	var o sync.Once
	return func() { o.Do(r) }
}
