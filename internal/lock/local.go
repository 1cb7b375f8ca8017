package lock

import (
	"context"
	"time"
)

// Local is an in-process lock. It is enough when a single server instance
// owns the ledger.
type Local struct {
	sem chan struct{}
}

// NewLocal constructs an unlocked Local.
func NewLocal() *Local {
	return &Local{sem: make(chan struct{}, 1)}
}

func (l *Local) Acquire(ctx context.Context, timeout time.Duration) (context.Context, Release, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
	case <-timer.C:
		return nil, nil, ErrTimeout
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	held, release := hold(ctx, func() { <-l.sem })
	return held, release, nil
}
