package models

import "time"

// Audit action tags. "modified" is reserved for the separate correction
// path; the core never writes it.
const (
	AuditCreated     = "created"
	AuditStarted     = "started"
	AuditStopped     = "stopped"
	AuditTeamChanged = "team_changed"
	AuditCompleted   = "completed"
	AuditModified    = "modified"
)

// AuditEntry is one immutable link in a work order's audit chain. EntryHash
// covers the entry's content plus the previous entry's hash (or a fixed seed
// for the first entry), so any mutation of history is detectable.
type AuditEntry struct {
	EntryID     string // UUIDv7
	WorkOrderID string
	Seq         int64 // 1-based position in the order's chain

	Action  string
	Details map[string]string

	EntryHash string // hex sha256
	PrevHash  string

	CreatedAt time.Time
}

// Clone returns a deep copy so stores never hand out aliased pointers.
func (e *AuditEntry) Clone() *AuditEntry {
	cp := *e
	if e.Details != nil {
		cp.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			cp.Details[k] = v
		}
	}
	return &cp
}
