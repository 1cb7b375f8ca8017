package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/rueidislock"
)

// Valkey is a distributed lock on a Valkey or Redis server, for deployments
// that run more than one server instance against the same ledger.
type Valkey struct {
	locker rueidislock.Locker
	name   string
}

// NewValkey connects a rueidislock locker for name.
func NewValkey(addr, password, name string) (*Valkey, error) {
	locker, err := rueidislock.NewLocker(rueidislock.LockerOption{
		ClientOption: rueidis.ClientOption{
			InitAddress: []string{addr},
			Password:    password,
		},
		KeyMajority:    1,
		NoLoopTracking: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect valkey locker: %w", err)
	}
	return &Valkey{locker: locker, name: name}, nil
}

// Acquire takes the lease. rueidislock cancels the held context when the
// lease is lost, for example when the server stops answering.
func (v *Valkey) Acquire(ctx context.Context, timeout time.Duration) (context.Context, Release, error) {
	return poll(ctx, timeout, func(ctx context.Context) (context.Context, Release, bool, error) {
		// The lease lives as long as the context passed in, so it must not
		// inherit the caller's cancellation.
		held, cancel, err := v.locker.TryWithContext(context.WithoutCancel(ctx), v.name)
		if err != nil {
			if errors.Is(err, rueidislock.ErrNotLocked) {
				return nil, nil, false, nil
			}
			return nil, nil, false, fmt.Errorf("try valkey lock: %w", err)
		}
		return held, Release(cancel), true, nil
	})
}

// Close releases the underlying client.
func (v *Valkey) Close() {
	v.locker.Close()
}
