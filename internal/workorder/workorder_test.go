package workorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SpaceTrucker2196/fieldhand/internal/audit"
	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/directory"
	"github.com/SpaceTrucker2196/fieldhand/internal/ledger"
	"github.com/SpaceTrucker2196/fieldhand/internal/models"
	"github.com/SpaceTrucker2196/fieldhand/internal/notify"
	"github.com/SpaceTrucker2196/fieldhand/internal/store/memory"
)

var monday = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *memory.Store
	dir   *directory.Memory
	clk   *clock.Fake
	audit *audit.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.NewStore()
	clk := clock.NewFake(monday)
	dir := directory.NewMemory()
	rec := audit.NewRecorder(st, clk)

	dir.PutWorker(directory.Worker{WorkerID: "w-alice", Name: "Alice", Active: true})
	dir.PutWorker(directory.Worker{WorkerID: "w-bob", Name: "Bob", Active: true})
	dir.PutTeam(directory.Team{TeamID: "t-1", Name: "Fence crew", Active: true})

	svc := NewService(Config{
		Orders:    st,
		Records:   st,
		Ledger:    ledger.New(st, clk),
		Audit:     rec,
		Directory: dir,
		Clock:     clk,
	})
	return &fixture{svc: svc, store: st, dir: dir, clk: clk, audit: rec}
}

func (f *fixture) create(t *testing.T, teamID string) *models.WorkOrder {
	t.Helper()
	order, err := f.svc.Create(context.Background(), NewWorkOrder{
		Title:  "Fix north fence",
		TeamID: teamID,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) auditActions(t *testing.T, orderID string) []string {
	t.Helper()
	entries, err := f.store.ListAuditEntries(context.Background(), orderID)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	order := f.create(t, "t-1")
	require.NotEmpty(t, order.WorkOrderID)
	require.Equal(t, models.StatusNotStarted, order.Status)
	require.Equal(t, models.PriorityMedium, order.Priority)
	require.Equal(t, int64(1), order.Version)
	require.False(t, order.IsLocked())

	require.Equal(t, []string{models.AuditCreated}, f.auditActions(t, order.WorkOrderID))

	t.Run("title is required", func(t *testing.T) {
		_, err := f.svc.Create(ctx, NewWorkOrder{TeamID: "t-1"})
		require.Error(t, err)
	})
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("clocks in every active member", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		require.NoError(t, f.dir.AddMember("t-1", "w-bob"))
		order := f.create(t, "t-1")

		started, err := f.svc.Start(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.Equal(t, models.StatusInProgress, started.Status)

		actives, err := f.store.ActiveForOrder(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.Len(t, actives, 2)
		for _, rec := range actives {
			require.Equal(t, monday, rec.ClockIn)
		}

		require.Equal(t, []string{models.AuditCreated, models.AuditStarted}, f.auditActions(t, order.WorkOrderID))
	})

	t.Run("no team assigned", func(t *testing.T) {
		f := newFixture(t)
		order := f.create(t, "")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.ErrorIs(t, err, ErrNoTeamAssigned)
	})

	t.Run("team with no active members", func(t *testing.T) {
		f := newFixture(t)
		f.dir.PutWorker(directory.Worker{WorkerID: "w-carol", Name: "Carol", Active: false})
		require.NoError(t, f.dir.AddMember("t-1", "w-carol"))
		order := f.create(t, "t-1")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.ErrorIs(t, err, ErrNoTeamAssigned)

		// A failed start leaves the order untouched.
		got, err := f.svc.Get(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.Equal(t, models.StatusNotStarted, got.Status)
	})

	t.Run("start while in progress", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		order := f.create(t, "t-1")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.NoError(t, err)

		_, err = f.svc.Start(ctx, order.WorkOrderID)
		require.ErrorIs(t, err, ErrAlreadyRunning)
	})
}

func TestStop(t *testing.T) {
	ctx := context.Background()

	t.Run("accrues person hours for the crew", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		require.NoError(t, f.dir.AddMember("t-1", "w-bob"))
		order := f.create(t, "t-1")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.NoError(t, err)

		f.clk.Advance(4 * time.Hour)
		outcome, err := f.svc.Stop(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.False(t, outcome.Restarted)
		require.Empty(t, outcome.Added)
		require.Empty(t, outcome.Removed)
		require.Equal(t, models.StatusStopped, outcome.Order.Status)

		sum, err := f.svc.Summary(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.Equal(t, 1, sum.Segments)
		require.InDelta(t, 8.0, sum.PersonHours, 1e-9)

		require.Equal(t,
			[]string{models.AuditCreated, models.AuditStarted, models.AuditStopped},
			f.auditActions(t, order.WorkOrderID))
	})

	t.Run("stop while not running", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		order := f.create(t, "t-1")

		_, err := f.svc.Stop(ctx, order.WorkOrderID)
		require.ErrorIs(t, err, ErrNotRunning)
	})

	t.Run("team change restarts with the new crew", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		order := f.create(t, "t-1")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.NoError(t, err)

		// Bob joins the crew mid-task.
		require.NoError(t, f.dir.AddMember("t-1", "w-bob"))

		f.clk.Advance(2 * time.Hour)
		outcome, err := f.svc.Stop(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.True(t, outcome.Restarted)
		require.Equal(t, monday.Add(2*time.Hour), outcome.NewSegmentStart)
		require.Equal(t, []string{"w-bob"}, outcome.Added)
		require.Empty(t, outcome.Removed)
		require.Equal(t, models.StatusInProgress, outcome.Order.Status)

		// The old segment is closed with the old crew, the new one open
		// with both workers.
		segs, err := f.svc.Segments(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.Len(t, segs, 2)
		require.False(t, segs[0].Open())
		require.Equal(t, []string{"w-alice"}, segs[0].WorkerIDs)
		require.InDelta(t, 2.0, segs[0].TotalHours, 1e-9)
		require.True(t, segs[1].Open())
		require.Equal(t, []string{"w-alice", "w-bob"}, segs[1].WorkerIDs)

		require.Equal(t,
			[]string{models.AuditCreated, models.AuditStarted, models.AuditStopped, models.AuditTeamChanged, models.AuditStarted},
			f.auditActions(t, order.WorkOrderID))

		entries, err := f.store.ListAuditEntries(ctx, order.WorkOrderID)
		require.NoError(t, err)
		changed := entries[3]
		require.Equal(t, "Bob", changed.Details["added"])
		require.Empty(t, changed.Details["removed"])
	})

	t.Run("crew emptied out stops without restart", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		order := f.create(t, "t-1")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.NoError(t, err)

		require.NoError(t, f.dir.RemoveMember("t-1", "w-alice"))

		f.clk.Advance(time.Hour)
		outcome, err := f.svc.Stop(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.False(t, outcome.Restarted)
		require.Equal(t, []string{"w-alice"}, outcome.Removed)
		require.Equal(t, models.StatusStopped, outcome.Order.Status)

		require.Equal(t,
			[]string{models.AuditCreated, models.AuditStarted, models.AuditStopped, models.AuditTeamChanged},
			f.auditActions(t, order.WorkOrderID))
	})
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("implicitly closes the open segment and locks", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		order := f.create(t, "t-1")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.NoError(t, err)

		// Bob joins mid-task, but completing must not trip the change
		// detector: the order locks instead of restarting.
		require.NoError(t, f.dir.AddMember("t-1", "w-bob"))

		f.clk.Advance(3 * time.Hour)
		done, err := f.svc.Complete(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.True(t, done.Completed)
		require.True(t, done.IsLocked())
		require.NotNil(t, done.CompletedAt)
		require.Equal(t, monday.Add(3*time.Hour), *done.CompletedAt)

		sum, err := f.svc.Summary(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.InDelta(t, 3.0, sum.PersonHours, 1e-9)

		actions := f.auditActions(t, order.WorkOrderID)
		require.Equal(t,
			[]string{models.AuditCreated, models.AuditStarted, models.AuditStopped, models.AuditCompleted},
			actions)

		entries, err := f.store.ListAuditEntries(ctx, order.WorkOrderID)
		require.NoError(t, err)
		final := entries[len(entries)-1]
		require.Equal(t, "3.00", final.Details["total_hours"])
		require.Equal(t, "1", final.Details["segments"])
	})

	t.Run("complete from stopped", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
		order := f.create(t, "t-1")

		_, err := f.svc.Start(ctx, order.WorkOrderID)
		require.NoError(t, err)
		f.clk.Advance(time.Hour)
		_, err = f.svc.Stop(ctx, order.WorkOrderID)
		require.NoError(t, err)

		done, err := f.svc.Complete(ctx, order.WorkOrderID)
		require.NoError(t, err)
		require.True(t, done.IsLocked())
	})

	t.Run("complete from not started", func(t *testing.T) {
		f := newFixture(t)
		order := f.create(t, "t-1")

		_, err := f.svc.Complete(ctx, order.WorkOrderID)
		require.ErrorIs(t, err, ErrNotRunning)
	})
}

func TestLockedOrderRejectsEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.dir.AddMember("t-1", "w-alice"))
	order := f.create(t, "t-1")

	_, err := f.svc.Start(ctx, order.WorkOrderID)
	require.NoError(t, err)
	f.clk.Advance(time.Hour)
	_, err = f.svc.Complete(ctx, order.WorkOrderID)
	require.NoError(t, err)

	before := f.auditActions(t, order.WorkOrderID)
	recordsBefore, err := f.store.ListForOrder(ctx, order.WorkOrderID)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, order.WorkOrderID)
	require.ErrorIs(t, err, ErrWorkOrderLocked)
	_, err = f.svc.Stop(ctx, order.WorkOrderID)
	require.ErrorIs(t, err, ErrWorkOrderLocked)
	_, err = f.svc.Complete(ctx, order.WorkOrderID)
	require.ErrorIs(t, err, ErrWorkOrderLocked)

	// Rejections leave no trace: no state change, no audit entries.
	got, err := f.svc.Get(ctx, order.WorkOrderID)
	require.NoError(t, err)
	require.Equal(t, models.StatusLocked, got.Status)
	require.Equal(t, before, f.auditActions(t, order.WorkOrderID))

	recordsAfter, err := f.store.ListForOrder(ctx, order.WorkOrderID)
	require.NoError(t, err)
	require.Equal(t, recordsBefore, recordsAfter)
}

func TestEventsPublished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.dir.AddMember("t-1", "w-alice"))

	broadcast := notify.NewBroadcast()
	defer broadcast.Close()
	events, cancel := broadcast.Subscribe(16)
	defer cancel()

	svc := NewService(Config{
		Orders:    f.store,
		Records:   f.store,
		Ledger:    ledger.New(f.store, f.clk),
		Audit:     f.audit,
		Directory: f.dir,
		Notifier:  broadcast,
		Clock:     f.clk,
	})

	order, err := svc.Create(ctx, NewWorkOrder{Title: "Irrigation check", TeamID: "t-1"})
	require.NoError(t, err)
	_, err = svc.Start(ctx, order.WorkOrderID)
	require.NoError(t, err)
	f.clk.Advance(time.Hour)
	_, err = svc.Complete(ctx, order.WorkOrderID)
	require.NoError(t, err)

	var got []notify.Event
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	require.Equal(t, notify.ChangeCreated, got[0].Change)
	require.Equal(t, notify.ChangeUpdated, got[1].Change)
	require.Equal(t, notify.ChangeUpdated, got[2].Change)
	for _, ev := range got {
		require.Equal(t, EntityKind, ev.Kind)
		require.Equal(t, order.WorkOrderID, ev.EntityID)
	}
}
