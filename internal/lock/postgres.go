package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a session-level advisory lock keyed by name. The lock lives on
// one pooled connection, which is held until release.
type Postgres struct {
	db   *pgxpool.Pool
	name string
}

// NewPostgres constructs a Postgres advisory lock for name.
func NewPostgres(db *pgxpool.Pool, name string) *Postgres {
	return &Postgres{db: db, name: name}
}

func (p *Postgres) Acquire(ctx context.Context, timeout time.Duration) (context.Context, Release, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.db.Acquire(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, ErrTimeout
		}
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}

	held, release, err := poll(ctx, timeout, func(ctx context.Context) (context.Context, Release, bool, error) {
		var locked bool
		err := conn.QueryRow(ctx,
			`SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, p.name,
		).Scan(&locked)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, false, nil
			}
			return nil, nil, false, fmt.Errorf("try advisory lock: %w", err)
		}
		if !locked {
			return nil, nil, false, nil
		}
		held, release := hold(ctx, func() {
			_, _ = conn.Exec(context.Background(),
				`SELECT pg_advisory_unlock(hashtextextended($1, 0))`, p.name)
			conn.Release()
		})
		return held, release, true, nil
	})
	if err != nil {
		conn.Release()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, ErrTimeout
		}
		return nil, nil, err
	}
	return held, release, nil
}
