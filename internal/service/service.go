// Package service implements the registration ledger operations: lock-guarded
// registration, check-in by QR payload and the confirmation mail merges.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/clock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/ledger"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/lock"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metadata"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/metrics"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/repository"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store       repository.Store
	Locker      lock.Locker
	Metadata    metadata.Provider
	Clock       clock.Clock
	Location    *time.Location
	SheetName   string
	LockTimeout time.Duration
	Log         *zap.Logger
	Metrics     *metrics.Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.SheetName == "" {
		d.SheetName = ledger.DefaultSheetName
	}
	if d.LockTimeout <= 0 {
		d.LockTimeout = lock.DefaultTimeout
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return d
}

// snapshot is one read of the ledger: raw cells as stored and the evaluated
// view used for decisions.
type snapshot struct {
	sheet  repository.Sheet
	exists bool
	raw    [][]string
	values [][]string
}

func (s snapshot) rows() []model.RegistrationRow {
	return ledger.DataRows(s.values)
}

// read loads the ledger. A missing sheet is not an error.
func (d Deps) read(ctx context.Context) (snapshot, error) {
	sheet, err := d.Store.Get(ctx, d.SheetName)
	if errors.Is(err, repository.ErrSheetNotFound) {
		return snapshot{}, nil
	}
	if err != nil {
		return snapshot{}, fmt.Errorf("get ledger: %w", err)
	}
	raw, err := d.Store.ReadAllRows(ctx, sheet)
	if err != nil {
		return snapshot{}, fmt.Errorf("read ledger: %w", err)
	}
	return snapshot{sheet: sheet, exists: true, raw: raw, values: ledger.Evaluate(raw)}, nil
}

// acquire takes the document lock for path, mapping a timeout to
// ErrLockTimeout. The returned context is done once the lock is lost.
func (d Deps) acquire(ctx context.Context, path string, timeout time.Duration) (context.Context, lock.Release, error) {
	start := time.Now()
	held, release, err := d.Locker.Acquire(ctx, timeout)
	d.Metrics.ObserveLockWait(path, time.Since(start))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return nil, nil, ErrLockTimeout
		}
		return nil, nil, fmt.Errorf("acquire lock: %w", err)
	}
	return held, release, nil
}

// stillHeld reports ErrLockLost once held is done.
func stillHeld(held context.Context) error {
	if held.Err() != nil {
		return ErrLockLost
	}
	return nil
}

func (d Deps) now() string {
	return ledger.FormatDate(d.Clock.Now(), d.Location)
}
