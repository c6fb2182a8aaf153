// Package workorder governs the work order lifecycle: NotStarted,
// InProgress, Stopped, Completed, Locked. All transitions run through the
// Service, which serializes commands per order, drives the time ledger,
// appends the audit chain, and publishes change events after durable writes.
package workorder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/SpaceTrucker2196/fieldhand/internal/audit"
	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/directory"
	"github.com/SpaceTrucker2196/fieldhand/internal/ledger"
	"github.com/SpaceTrucker2196/fieldhand/internal/locks"
	"github.com/SpaceTrucker2196/fieldhand/internal/models"
	"github.com/SpaceTrucker2196/fieldhand/internal/notify"
	"github.com/SpaceTrucker2196/fieldhand/internal/segment"
	"github.com/SpaceTrucker2196/fieldhand/internal/store"
)

// Precondition errors. These cause no mutation and are driven by caller
// ordering, not defects.
var (
	ErrNoTeamAssigned  = errors.New("work order has no team with active members")
	ErrNotRunning      = errors.New("work order is not in progress")
	ErrAlreadyRunning  = errors.New("work order is already in progress")
	ErrWorkOrderLocked = errors.New("work order is locked")
)

// EntityKind is the kind published with change events.
const EntityKind = "work_order"

// Config wires the service's collaborators. Orders, Records, Ledger, Audit
// and Directory are required; Notifier defaults to notify.Nop and Clock to
// the system clock.
type Config struct {
	Orders    store.WorkOrderStore
	Records   store.TimeRecordStore
	Ledger    *ledger.Ledger
	Audit     *audit.Recorder
	Directory directory.Directory
	Notifier  notify.Publisher
	Clock     clock.Clock
}

// Service is the single writer of work order state.
type Service struct {
	orders   store.WorkOrderStore
	records  store.TimeRecordStore
	ledger   *ledger.Ledger
	audit    *audit.Recorder
	dir      directory.Directory
	notifier notify.Publisher
	clk      clock.Clock
	locks    *locks.Keyed
}

func NewService(cfg Config) *Service {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	return &Service{
		orders:   cfg.Orders,
		records:  cfg.Records,
		ledger:   cfg.Ledger,
		audit:    cfg.Audit,
		dir:      cfg.Directory,
		notifier: cfg.Notifier,
		clk:      cfg.Clock,
		locks:    locks.NewKeyed(),
	}
}

// NewWorkOrder carries the fields for Create.
type NewWorkOrder struct {
	Title    string
	Priority string // defaults to medium
	DueDate  *time.Time
	TeamID   string
}

// StopOutcome tells the caller what Stop actually did. When the team
// composition changed mid-task the detector reopens the order with the new
// crew, so callers must check Restarted instead of assuming the order ended
// up Stopped.
type StopOutcome struct {
	Order *models.WorkOrder

	Restarted       bool
	NewSegmentStart time.Time // set when Restarted

	// Worker ids that joined or left, set whenever a change was detected
	// (even if the new team was empty and no restart happened).
	Added   []string
	Removed []string
}

// Create registers a new work order in NotStarted and seeds its audit chain.
func (s *Service) Create(ctx context.Context, in NewWorkOrder) (*models.WorkOrder, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}

	now := s.clk.Now()
	order := &models.WorkOrder{
		WorkOrderID: uuid.Must(uuid.NewV7()).String(),
		Title:       in.Title,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		TeamID:      in.TeamID,
		Status:      models.StatusNotStarted,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := s.audit.Record(ctx, order.WorkOrderID, models.AuditCreated, map[string]string{
		"title":    order.Title,
		"priority": order.Priority,
	}); err != nil {
		return nil, err
	}

	if err := s.orders.CreateWorkOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create work order: %w", err)
	}

	log.Info().
		Str("work_order_id", order.WorkOrderID).
		Str("title", order.Title).
		Msg("Work order created")

	s.notifier.Publish(ctx, notify.Event{Kind: EntityKind, Change: notify.ChangeCreated, EntityID: order.WorkOrderID})
	return order.Clone(), nil
}

// Get returns the work order.
func (s *Service) Get(ctx context.Context, orderID string) (*models.WorkOrder, error) {
	return s.orders.GetWorkOrder(ctx, orderID)
}

// Start opens a new work segment: every active member of the assigned team
// is clocked in and the order moves to InProgress. Legal from NotStarted or
// Stopped.
func (s *Service) Start(ctx context.Context, orderID string) (*models.WorkOrder, error) {
	unlock, ok := s.locks.TryLock(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: work order %s", store.ErrBusy, orderID)
	}
	defer unlock()

	order, err := s.orders.GetWorkOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.StatusLocked:
		return nil, fmt.Errorf("%w: %s", ErrWorkOrderLocked, orderID)
	case models.StatusInProgress:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, orderID)
	case models.StatusNotStarted, models.StatusStopped:
	default:
		return nil, fmt.Errorf("cannot start work order %s from state %s", orderID, order.Status)
	}

	members, err := s.activeTeam(ctx, order)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	if err := s.openSegment(ctx, order, members, now); err != nil {
		return nil, err
	}

	order.Status = models.StatusInProgress
	order.UpdatedAt = now
	if err := s.orders.UpdateWorkOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}

	log.Info().
		Str("work_order_id", orderID).
		Int("crew_size", len(members)).
		Msg("Work order started")

	s.notifier.Publish(ctx, notify.Event{Kind: EntityKind, Change: notify.ChangeUpdated, EntityID: orderID})
	return order.Clone(), nil
}

// Stop closes the current work segment, clocking out every worker that was
// active at segment start. If the assigned team's composition has changed
// since then, the change detector immediately reopens the order with the
// new crew; the outcome reports which happened.
func (s *Service) Stop(ctx context.Context, orderID string) (*StopOutcome, error) {
	unlock, ok := s.locks.TryLock(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: work order %s", store.ErrBusy, orderID)
	}
	defer unlock()

	order, err := s.orders.GetWorkOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.StatusLocked {
		return nil, fmt.Errorf("%w: %s", ErrWorkOrderLocked, orderID)
	}
	if order.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRunning, orderID, order.Status)
	}

	// Snapshot the currently assigned team before any mutation, so a
	// directory failure cannot strand a half-stopped order.
	var current []directory.Worker
	if order.TeamID != "" {
		current, err = s.dir.ActiveMembers(ctx, order.TeamID)
		if err != nil {
			return nil, fmt.Errorf("resolve team %s: %w", order.TeamID, err)
		}
	}

	now := s.clk.Now()
	closedIDs, err := s.closeSegment(ctx, order, now)
	if err != nil {
		return nil, err
	}

	order.Status = models.StatusStopped
	order.UpdatedAt = now
	if err := s.orders.UpdateWorkOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}

	outcome := &StopOutcome{Order: order.Clone()}

	currentIDs := workerIDs(current)
	added, removed := diffIDs(closedIDs, currentIDs)
	if len(added) > 0 || len(removed) > 0 {
		outcome.Added = added
		outcome.Removed = removed

		if _, err := s.audit.Record(ctx, orderID, models.AuditTeamChanged, map[string]string{
			"added":   joinNames(added, current),
			"removed": joinNames(removed, current),
		}); err != nil {
			return nil, err
		}

		// Auto-restart with the new crew so mid-task membership changes
		// keep accruing time without operator intervention.
		if len(current) > 0 {
			restartAt := s.clk.Now()
			if err := s.openSegment(ctx, order, current, restartAt); err != nil {
				return nil, err
			}
			order.Status = models.StatusInProgress
			order.UpdatedAt = restartAt
			if err := s.orders.UpdateWorkOrder(ctx, order); err != nil {
				return nil, fmt.Errorf("update work order: %w", err)
			}
			outcome.Order = order.Clone()
			outcome.Restarted = true
			outcome.NewSegmentStart = restartAt

			log.Info().
				Str("work_order_id", orderID).
				Strs("added", added).
				Strs("removed", removed).
				Msg("Team change detected, work order restarted with new crew")
		}
	}

	s.notifier.Publish(ctx, notify.Event{Kind: EntityKind, Change: notify.ChangeUpdated, EntityID: orderID})
	return outcome, nil
}

// Complete finishes the work order. If it is still in progress the current
// segment is implicitly closed first (without team-change detection, since
// reopening a completing order would be absurd). The order moves to Locked
// and no command may mutate it afterward.
func (s *Service) Complete(ctx context.Context, orderID string) (*models.WorkOrder, error) {
	unlock, ok := s.locks.TryLock(orderID)
	if !ok {
		return nil, fmt.Errorf("%w: work order %s", store.ErrBusy, orderID)
	}
	defer unlock()

	order, err := s.orders.GetWorkOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.StatusLocked:
		return nil, fmt.Errorf("%w: %s", ErrWorkOrderLocked, orderID)
	case models.StatusInProgress, models.StatusStopped:
	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRunning, orderID, order.Status)
	}

	now := s.clk.Now()
	if order.Status == models.StatusInProgress {
		if _, err := s.closeSegment(ctx, order, now); err != nil {
			return nil, err
		}
	}

	recs, err := s.records.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	summary := segment.Summarize(segment.Fold(recs))

	if _, err := s.audit.Record(ctx, orderID, models.AuditCompleted, map[string]string{
		"total_hours": formatHours(summary.PersonHours),
		"segments":    fmt.Sprintf("%d", summary.Segments),
	}); err != nil {
		return nil, err
	}

	completedAt := now
	order.Completed = true
	order.CompletedAt = &completedAt
	order.Status = models.StatusLocked
	order.UpdatedAt = now
	if err := s.orders.UpdateWorkOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}

	log.Info().
		Str("work_order_id", orderID).
		Float64("person_hours", summary.PersonHours).
		Int("segments", summary.Segments).
		Msg("Work order completed and locked")

	s.notifier.Publish(ctx, notify.Event{Kind: EntityKind, Change: notify.ChangeUpdated, EntityID: orderID})
	return order.Clone(), nil
}

// Segments folds the order's time records into its segment history.
func (s *Service) Segments(ctx context.Context, orderID string) ([]segment.WorkSegment, error) {
	recs, err := s.records.ListForOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return segment.Fold(recs), nil
}

// Summary returns the accumulated person-hours over closed segments.
func (s *Service) Summary(ctx context.Context, orderID string) (segment.Summary, error) {
	segs, err := s.Segments(ctx, orderID)
	if err != nil {
		return segment.Summary{}, err
	}
	return segment.Summarize(segs), nil
}

// activeTeam resolves the order's assigned team to its active members,
// failing with ErrNoTeamAssigned when there is no usable crew.
func (s *Service) activeTeam(ctx context.Context, order *models.WorkOrder) ([]directory.Worker, error) {
	if order.TeamID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoTeamAssigned, order.WorkOrderID)
	}
	members, err := s.dir.ActiveMembers(ctx, order.TeamID)
	if err != nil {
		return nil, fmt.Errorf("resolve team %s: %w", order.TeamID, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: team %s", ErrNoTeamAssigned, order.TeamID)
	}
	return members, nil
}

// openSegment audits the start and clocks in every member at the same
// instant. A member that cannot be clocked in aborts the start; records
// created so far are voided to zero-hour sealed rows.
func (s *Service) openSegment(ctx context.Context, order *models.WorkOrder, members []directory.Worker, at time.Time) error {
	if _, err := s.audit.Record(ctx, order.WorkOrderID, models.AuditStarted, map[string]string{
		"team_id": order.TeamID,
		"workers": joinWorkers(members),
	}); err != nil {
		return err
	}

	var created []*models.TimeRecord
	for _, w := range members {
		var rec *models.TimeRecord
		err := RetryBusy(ctx, func() error {
			var cerr error
			rec, cerr = s.ledger.ClockIn(ctx, w.WorkerID, order.WorkOrderID, at)
			return cerr
		})
		if err != nil {
			s.voidRecords(ctx, created)
			return fmt.Errorf("clock in worker %s: %w", w.WorkerID, err)
		}
		created = append(created, rec)
	}
	return nil
}

// closeSegment clocks out every worker active on the order and audits the
// closed segment. Returns the sorted worker ids that were active.
func (s *Service) closeSegment(ctx context.Context, order *models.WorkOrder, at time.Time) ([]string, error) {
	actives, err := s.records.ActiveForOrder(ctx, order.WorkOrderID)
	if err != nil {
		return nil, fmt.Errorf("list active records: %w", err)
	}

	var ids []string
	segStart := at
	for _, rec := range actives {
		ids = append(ids, rec.WorkerID)
		if rec.ClockIn.Before(segStart) {
			segStart = rec.ClockIn
		}
	}
	sort.Strings(ids)

	elapsed := at.Sub(segStart).Hours()
	if _, err := s.audit.Record(ctx, order.WorkOrderID, models.AuditStopped, map[string]string{
		"elapsed_hours": formatHours(elapsed),
		"total_hours":   formatHours(elapsed * float64(len(ids))),
		"workers":       joinIDs(ids),
	}); err != nil {
		return nil, err
	}

	for _, rec := range actives {
		err := RetryBusy(ctx, func() error {
			_, cerr := s.ledger.ClockOut(ctx, rec.WorkerID, at)
			return cerr
		})
		if err != nil {
			return nil, fmt.Errorf("clock out worker %s: %w", rec.WorkerID, err)
		}
	}
	return ids, nil
}

// voidRecords compensates a partially opened segment by sealing the records
// as zero-hour rows. Best effort; failures are logged, not returned, since
// the caller is already propagating the original error.
func (s *Service) voidRecords(ctx context.Context, recs []*models.TimeRecord) {
	for _, rec := range recs {
		out := rec.ClockIn
		rec.ClockOut = &out
		rec.HoursWorked = 0
		rec.Active = false
		if err := s.records.UpdateTimeRecord(ctx, rec); err != nil {
			log.Error().
				Err(err).
				Str("record_id", rec.RecordID).
				Str("worker_id", rec.WorkerID).
				Msg("Failed to void time record after aborted start")
		}
	}
}

func formatHours(h float64) string {
	return fmt.Sprintf("%.2f", h)
}
