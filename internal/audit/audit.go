// Package audit appends the immutable, hash-chained record of every work
// order state transition. Each entry's hash covers its own content plus the
// previous entry's hash, so recomputing the chain detects any tampering.
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/models"
	"github.com/SpaceTrucker2196/fieldhand/internal/store"
)

var (
	// ErrAuditWriteFailed wraps any failure to persist an audit entry. The
	// enclosing state transition must fail with it: an unaudited mutation is
	// a consistency violation, so the system prefers staying in the old
	// state over mutating without audit.
	ErrAuditWriteFailed = errors.New("audit write failed")

	// ErrChainBroken is returned by VerifyChain when a stored hash does not
	// match the recomputed one.
	ErrChainBroken = errors.New("audit chain broken")
)

// Recorder is the only writer of audit entries.
type Recorder struct {
	entries store.AuditStore
	clk     clock.Clock
}

func NewRecorder(entries store.AuditStore, clk clock.Clock) *Recorder {
	return &Recorder{entries: entries, clk: clk}
}

// Record appends one entry to the work order's chain.
func (r *Recorder) Record(ctx context.Context, orderID, action string, details map[string]string) (*models.AuditEntry, error) {
	last, err := r.entries.LastAuditEntry(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: read chain head: %w", ErrAuditWriteFailed, err)
	}

	prevHash := chainSeed
	var seq int64 = 1
	if last != nil {
		prevHash = last.EntryHash
		seq = last.Seq + 1
	}

	entry := &models.AuditEntry{
		EntryID:     uuid.Must(uuid.NewV7()).String(),
		WorkOrderID: orderID,
		Seq:         seq,
		Action:      action,
		Details:     details,
		PrevHash:    prevHash,
		CreatedAt:   r.clk.Now(),
	}
	entry.EntryHash = entryHash(entry)

	if err := r.entries.AppendAuditEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuditWriteFailed, err)
	}

	log.Debug().
		Str("work_order_id", orderID).
		Str("action", action).
		Int64("seq", seq).
		Msg("Audit entry recorded")

	return entry, nil
}

// VerifyChain recomputes the full chain for the work order from entry one
// and compares it against the stored hashes. Returns ErrChainBroken naming
// the first bad sequence number.
func (r *Recorder) VerifyChain(ctx context.Context, orderID string) error {
	entries, err := r.entries.ListAuditEntries(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}

	prevHash := chainSeed
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			return fmt.Errorf("%w: work order %s missing seq %d", ErrChainBroken, orderID, i+1)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("%w: work order %s seq %d prev hash mismatch", ErrChainBroken, orderID, e.Seq)
		}
		if got := entryHash(e); got != e.EntryHash {
			return fmt.Errorf("%w: work order %s seq %d content hash mismatch", ErrChainBroken, orderID, e.Seq)
		}
		prevHash = e.EntryHash
	}
	return nil
}
