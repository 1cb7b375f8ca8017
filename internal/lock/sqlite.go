package lock

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLeaseTTL is how long an SQLite lease survives without renewal.
const DefaultLeaseTTL = 15 * time.Second

const leaseSchema = `CREATE TABLE IF NOT EXISTS ledger_locks (
    name       TEXT    PRIMARY KEY,
    holder     TEXT    NOT NULL,
    expires_at INTEGER NOT NULL
)`

// SQLite is a lease row in the ledger database. Every process that opens the
// same file contends for the same row, so the server and ledgerctl serialise
// against each other. The holder renews the lease while it runs; the lease of
// a holder that died expires after the TTL.
type SQLite struct {
	db   *sql.DB
	name string
	ttl  time.Duration
}

// NewSQLite creates the lease table if needed and returns a lock for name.
func NewSQLite(ctx context.Context, db *sql.DB, name string, ttl time.Duration) (*SQLite, error) {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	if _, err := db.ExecContext(ctx, leaseSchema); err != nil {
		return nil, fmt.Errorf("create lease table: %w", err)
	}
	return &SQLite{db: db, name: name, ttl: ttl}, nil
}

func (s *SQLite) Acquire(ctx context.Context, timeout time.Duration) (context.Context, Release, error) {
	return poll(ctx, timeout, func(ctx context.Context) (context.Context, Release, bool, error) {
		holder := uuid.NewString()
		ok, err := s.claim(ctx, holder)
		if err != nil || !ok {
			return nil, nil, false, err
		}

		held, lost := context.WithCancel(context.WithoutCancel(ctx))
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.keep(holder, lost, stop)
		}()

		return held, func() {
			close(stop)
			wg.Wait()
			lost()
			s.drop(holder)
		}, true, nil
	})
}

// claim inserts the lease row, or takes over an expired one. A live lease
// held by someone else leaves the row untouched.
func (s *SQLite) claim(ctx context.Context, holder string) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_locks (name, holder, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE
		 SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE ledger_locks.expires_at <= ?`,
		s.name, holder, now.Add(s.ttl).UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("claim lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim lease: %w", err)
	}
	return n == 1, nil
}

// keep renews the lease every third of the TTL until stop closes. The lease
// counts as lost when another holder owns the row, or when renewals keep
// failing past the last known expiry.
func (s *SQLite) keep(holder string, lost context.CancelFunc, stop <-chan struct{}) {
	tick := time.NewTicker(s.ttl / 3)
	defer tick.Stop()
	expires := time.Now().Add(s.ttl)

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}

		now := time.Now()
		ok, err := s.renew(holder, now)
		switch {
		case err == nil && ok:
			expires = now.Add(s.ttl)
		case err == nil, now.After(expires):
			lost()
			return
		}
	}
}

func (s *SQLite) renew(holder string, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.ttl/3)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE ledger_locks SET expires_at = ?
		 WHERE name = ? AND holder = ? AND expires_at > ?`,
		now.Add(s.ttl).UnixMilli(), s.name, holder, now.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLite) drop(holder string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.db.ExecContext(ctx,
		`DELETE FROM ledger_locks WHERE name = ? AND holder = ?`, s.name, holder)
}
