package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/store"
	"github.com/SpaceTrucker2196/fieldhand/internal/store/memory"
)

func TestClockInOut(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("clock in creates an active record with iso week", func(t *testing.T) {
		l := New(memory.NewStore(), clock.NewFake(base))

		rec, err := l.ClockIn(ctx, "w-alice", "wo-1", base)
		require.NoError(t, err)
		require.True(t, rec.Active)
		require.Nil(t, rec.ClockOut)
		require.Equal(t, 2025, rec.ISOYear)
		require.Equal(t, 11, rec.ISOWeek)
		require.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), rec.WorkDate)

		active, err := l.ActiveRecord(ctx, "w-alice")
		require.NoError(t, err)
		require.Equal(t, rec.RecordID, active.RecordID)
	})

	t.Run("double clock in fails and creates nothing", func(t *testing.T) {
		st := memory.NewStore()
		l := New(st, clock.NewFake(base))

		_, err := l.ClockIn(ctx, "w-alice", "wo-1", base)
		require.NoError(t, err)

		_, err = l.ClockIn(ctx, "w-alice", "wo-2", base.Add(time.Hour))
		require.ErrorIs(t, err, ErrAlreadyClockedIn)

		recs, err := l.RecordsInRange(ctx, "w-alice", base, base.AddDate(0, 0, 1))
		require.NoError(t, err)
		require.Len(t, recs, 1)
	})

	t.Run("clock out seals the record and derives hours", func(t *testing.T) {
		l := New(memory.NewStore(), clock.NewFake(base))

		_, err := l.ClockIn(ctx, "w-alice", "wo-1", base)
		require.NoError(t, err)

		rec, err := l.ClockOut(ctx, "w-alice", base.Add(4*time.Hour))
		require.NoError(t, err)
		require.True(t, rec.Sealed())
		require.InDelta(t, 4.0, rec.HoursWorked, 1e-9)

		active, err := l.ActiveRecord(ctx, "w-alice")
		require.NoError(t, err)
		require.Nil(t, active)
	})

	t.Run("clock out without clock in fails", func(t *testing.T) {
		l := New(memory.NewStore(), clock.NewFake(base))
		_, err := l.ClockOut(ctx, "w-alice", base)
		require.ErrorIs(t, err, ErrNotClockedIn)
	})

	t.Run("clock out at or before clock in fails", func(t *testing.T) {
		l := New(memory.NewStore(), clock.NewFake(base))

		_, err := l.ClockIn(ctx, "w-alice", "wo-1", base)
		require.NoError(t, err)

		_, err = l.ClockOut(ctx, "w-alice", base)
		require.ErrorIs(t, err, ErrInvalidInterval)

		_, err = l.ClockOut(ctx, "w-alice", base.Add(-time.Minute))
		require.ErrorIs(t, err, ErrInvalidInterval)

		// Record is still open after the failed attempts.
		active, err := l.ActiveRecord(ctx, "w-alice")
		require.NoError(t, err)
		require.NotNil(t, active)
	})
}

// At most one active record per worker must hold under concurrent clock-in
// attempts: exactly one goroutine wins, the rest see AlreadyClockedIn or
// Busy, and nothing extra is written.
func TestConcurrentClockInInvariant(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	st := memory.NewStore()
	l := New(st, clock.NewFake(base))

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.ClockIn(ctx, "w-alice", "wo-1", base)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.True(t,
				errors.Is(err, ErrAlreadyClockedIn) || errors.Is(err, store.ErrBusy),
				"unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)

	recs, err := l.RecordsInRange(ctx, "w-alice", base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, recs, 1)
}
