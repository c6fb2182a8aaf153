package models

import "time"

// Priority ranks how urgently a work order needs crew time.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Work order lifecycle states. Locked is reached only through Completed and
// forbids every further mutation except audit-trail append.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusStopped    = "stopped"
	StatusCompleted  = "completed"
	StatusLocked     = "locked"
)

// WorkOrder is a trackable unit of field labor. All status transitions go
// through the workorder service; nothing else writes these rows.
type WorkOrder struct {
	WorkOrderID string // UUIDv7
	Title       string
	Priority    string     // "low", "medium", "high", "urgent"
	DueDate     *time.Time // nil when no due date was set
	TeamID      string     // empty while unassigned

	Status      string
	Completed   bool
	CompletedAt *time.Time

	// Version is the optimistic-concurrency token for conditional updates.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLocked returns true once the order has been completed and sealed.
func (w *WorkOrder) IsLocked() bool {
	return w.Status == StatusLocked
}

// Clone returns a deep copy so stores never hand out aliased pointers.
func (w *WorkOrder) Clone() *WorkOrder {
	cp := *w
	if w.DueDate != nil {
		d := *w.DueDate
		cp.DueDate = &d
	}
	if w.CompletedAt != nil {
		c := *w.CompletedAt
		cp.CompletedAt = &c
	}
	return &cp
}
