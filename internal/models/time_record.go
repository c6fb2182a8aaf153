package models

import "time"

// TimeRecord is one worker's continuous clocked-in interval. Records are the
// durable source of truth for all hour aggregation: created on clock-in,
// sealed on clock-out, never deleted.
//
// Invariant: at most one record per worker has Active set at any instant.
type TimeRecord struct {
	RecordID    string // UUIDv7
	WorkerID    string
	WorkOrderID string // empty while not tied to a work order

	WorkDate time.Time // calendar date of ClockIn, midnight in ClockIn's location
	ClockIn  time.Time
	ClockOut *time.Time // nil while the record is open

	HoursWorked float64 // set when sealed
	Active      bool

	// ISO 8601 week numbering of ClockIn, used for weekly overtime splits.
	ISOWeek int
	ISOYear int
}

// Sealed returns true once the record has a clock-out and derived hours.
func (r *TimeRecord) Sealed() bool {
	return !r.Active && r.ClockOut != nil
}

// Clone returns a deep copy so stores never hand out aliased pointers.
func (r *TimeRecord) Clone() *TimeRecord {
	cp := *r
	if r.ClockOut != nil {
		out := *r.ClockOut
		cp.ClockOut = &out
	}
	return &cp
}
