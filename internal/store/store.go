package store

import (
	"context"
	"errors"
	"time"

	"github.com/SpaceTrucker2196/fieldhand/internal/models"
)

// Sentinel errors for common error conditions
var (
	ErrWorkOrderNotFound  = errors.New("work order not found")
	ErrTimeRecordNotFound = errors.New("time record not found")

	// ErrVersionConflict signals a lost optimistic-concurrency race on a
	// work order update. Callers reload and retry.
	ErrVersionConflict = errors.New("work order version conflict")

	// ErrDuplicateActiveRecord enforces the one-active-record-per-worker
	// invariant at the storage layer.
	ErrDuplicateActiveRecord = errors.New("worker already has an active time record")

	// ErrAuditSeqConflict signals a duplicate (work order, seq) audit append.
	ErrAuditSeqConflict = errors.New("audit sequence conflict")

	// ErrBusy is surfaced when a single-writer lock guarding a store write
	// cannot be acquired. Callers retry with backoff rather than block.
	ErrBusy = errors.New("resource busy")
)

// WorkOrderStore persists work orders with optimistic concurrency.
type WorkOrderStore interface {
	CreateWorkOrder(ctx context.Context, order *models.WorkOrder) error
	GetWorkOrder(ctx context.Context, orderID string) (*models.WorkOrder, error)

	// UpdateWorkOrder writes the order only if the stored Version matches
	// order.Version, then increments it. Returns ErrVersionConflict on a
	// lost race.
	UpdateWorkOrder(ctx context.Context, order *models.WorkOrder) error
}

// TimeRecordStore persists per-worker clock intervals. Records are only
// ever created and sealed, never deleted.
type TimeRecordStore interface {
	CreateTimeRecord(ctx context.Context, rec *models.TimeRecord) error
	UpdateTimeRecord(ctx context.Context, rec *models.TimeRecord) error

	// ActiveForWorker returns the worker's open record, or nil when the
	// worker is not clocked in.
	ActiveForWorker(ctx context.Context, workerID string) (*models.TimeRecord, error)

	// ActiveForOrder returns all open records attached to the work order.
	ActiveForOrder(ctx context.Context, orderID string) ([]*models.TimeRecord, error)

	// ListForWorkerBetween returns records with ClockIn in [from, to),
	// ordered by ClockIn.
	ListForWorkerBetween(ctx context.Context, workerID string, from, to time.Time) ([]*models.TimeRecord, error)

	// ListForOrder returns all records for the work order ordered by ClockIn.
	ListForOrder(ctx context.Context, orderID string) ([]*models.TimeRecord, error)
}

// AuditStore persists the append-only audit chain.
type AuditStore interface {
	// AppendAuditEntry appends one entry. Returns ErrAuditSeqConflict if the
	// (work order, seq) slot is already taken.
	AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error

	// ListAuditEntries returns the order's entries sorted by Seq ascending.
	ListAuditEntries(ctx context.Context, orderID string) ([]*models.AuditEntry, error)

	// LastAuditEntry returns the highest-Seq entry, or nil when the order
	// has no audit history yet.
	LastAuditEntry(ctx context.Context, orderID string) (*models.AuditEntry, error)
}

// Store is the full persistence boundary the core composes over.
type Store interface {
	WorkOrderStore
	TimeRecordStore
	AuditStore
}
