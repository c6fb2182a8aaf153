// Package ledger owns the lifecycle of per-worker time records: clock-in,
// clock-out, and the derived hours in between. It is the only writer of
// TimeRecord rows.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/locks"
	"github.com/SpaceTrucker2196/fieldhand/internal/models"
	"github.com/SpaceTrucker2196/fieldhand/internal/store"
)

// Sentinel errors for clock operation preconditions. These are expected,
// recoverable conditions driven by caller ordering, not defects.
var (
	ErrAlreadyClockedIn = errors.New("worker is already clocked in")
	ErrNotClockedIn     = errors.New("worker is not clocked in")
	ErrInvalidInterval  = errors.New("clock-out must be after clock-in")
)

// Ledger serializes clock operations per worker. A worker can only be doing
// one thing regardless of which work order claims them, so locking is keyed
// by worker id, not work order id.
type Ledger struct {
	records store.TimeRecordStore
	clk     clock.Clock
	locks   *locks.Keyed
}

func New(records store.TimeRecordStore, clk clock.Clock) *Ledger {
	return &Ledger{
		records: records,
		clk:     clk,
		locks:   locks.NewKeyed(),
	}
}

// ClockIn opens a new active time record for the worker. The orderID may be
// empty for time not tied to a work order.
func (l *Ledger) ClockIn(ctx context.Context, workerID, orderID string, at time.Time) (*models.TimeRecord, error) {
	unlock, ok := l.locks.TryLock(workerID)
	if !ok {
		return nil, fmt.Errorf("%w: worker %s", store.ErrBusy, workerID)
	}
	defer unlock()

	active, err := l.records.ActiveForWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("check active record: %w", err)
	}
	if active != nil {
		return nil, fmt.Errorf("%w: worker %s since %s", ErrAlreadyClockedIn, workerID, active.ClockIn.Format(time.RFC3339))
	}

	year, week := l.clk.ISOWeek(at)
	rec := &models.TimeRecord{
		RecordID:    uuid.Must(uuid.NewV7()).String(),
		WorkerID:    workerID,
		WorkOrderID: orderID,
		WorkDate:    clock.DateOf(at),
		ClockIn:     at,
		Active:      true,
		ISOWeek:     week,
		ISOYear:     year,
	}

	if err := l.records.CreateTimeRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateActiveRecord) {
			return nil, fmt.Errorf("%w: worker %s", ErrAlreadyClockedIn, workerID)
		}
		return nil, fmt.Errorf("create time record: %w", err)
	}

	log.Debug().
		Str("worker_id", workerID).
		Str("work_order_id", orderID).
		Time("clock_in", at).
		Msg("Worker clocked in")

	return rec, nil
}

// ClockOut seals the worker's active record, deriving hours worked.
func (l *Ledger) ClockOut(ctx context.Context, workerID string, at time.Time) (*models.TimeRecord, error) {
	unlock, ok := l.locks.TryLock(workerID)
	if !ok {
		return nil, fmt.Errorf("%w: worker %s", store.ErrBusy, workerID)
	}
	defer unlock()

	rec, err := l.records.ActiveForWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("check active record: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: worker %s", ErrNotClockedIn, workerID)
	}
	if !at.After(rec.ClockIn) {
		return nil, fmt.Errorf("%w: clock-in %s, clock-out %s",
			ErrInvalidInterval, rec.ClockIn.Format(time.RFC3339), at.Format(time.RFC3339))
	}

	out := at
	rec.ClockOut = &out
	rec.HoursWorked = at.Sub(rec.ClockIn).Hours()
	rec.Active = false

	if err := l.records.UpdateTimeRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("seal time record: %w", err)
	}

	log.Debug().
		Str("worker_id", workerID).
		Str("record_id", rec.RecordID).
		Float64("hours_worked", rec.HoursWorked).
		Msg("Worker clocked out")

	return rec, nil
}

// ActiveRecord returns the worker's open record, or nil when not clocked in.
func (l *Ledger) ActiveRecord(ctx context.Context, workerID string) (*models.TimeRecord, error) {
	return l.records.ActiveForWorker(ctx, workerID)
}

// RecordsInRange returns the worker's records with clock-in inside [from, to).
func (l *Ledger) RecordsInRange(ctx context.Context, workerID string, from, to time.Time) ([]*models.TimeRecord, error) {
	return l.records.ListForWorkerBetween(ctx, workerID, from, to)
}
