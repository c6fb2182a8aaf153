// Package memory provides an in-memory Store implementation. It honors the
// same conditional-write semantics as the PostgreSQL backend (version
// checks, unique active record, audit seq uniqueness) under a single lock,
// which makes it suitable for tests and single-process embedding.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SpaceTrucker2196/fieldhand/internal/models"
	"github.com/SpaceTrucker2196/fieldhand/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store using in-memory maps.
type Store struct {
	mu sync.RWMutex

	orders  map[string]*models.WorkOrder  // work order ID -> order
	records map[string]*models.TimeRecord // record ID -> record

	// active worker ID -> record ID, the enforcement point for the
	// one-active-record-per-worker invariant
	activeByWorker map[string]string

	audits map[string][]*models.AuditEntry // work order ID -> entries by Seq
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		orders:         make(map[string]*models.WorkOrder),
		records:        make(map[string]*models.TimeRecord),
		activeByWorker: make(map[string]string),
		audits:         make(map[string][]*models.AuditEntry),
	}
}

func (s *Store) CreateWorkOrder(ctx context.Context, order *models.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.WorkOrderID]; exists {
		return fmt.Errorf("work order %s already exists", order.WorkOrderID)
	}
	s.orders[order.WorkOrderID] = order.Clone()
	return nil
}

func (s *Store) GetWorkOrder(ctx context.Context, orderID string) (*models.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrWorkOrderNotFound, orderID)
	}
	return order.Clone(), nil
}

func (s *Store) UpdateWorkOrder(ctx context.Context, order *models.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[order.WorkOrderID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrWorkOrderNotFound, order.WorkOrderID)
	}
	if current.Version != order.Version {
		return fmt.Errorf("%w: have %d, want %d", store.ErrVersionConflict, current.Version, order.Version)
	}

	next := order.Clone()
	next.Version++
	s.orders[order.WorkOrderID] = next
	order.Version = next.Version
	return nil
}

func (s *Store) CreateTimeRecord(ctx context.Context, rec *models.TimeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Active {
		if existing, ok := s.activeByWorker[rec.WorkerID]; ok {
			return fmt.Errorf("%w: worker %s record %s", store.ErrDuplicateActiveRecord, rec.WorkerID, existing)
		}
		s.activeByWorker[rec.WorkerID] = rec.RecordID
	}
	s.records[rec.RecordID] = rec.Clone()
	return nil
}

func (s *Store) UpdateTimeRecord(ctx context.Context, rec *models.TimeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.RecordID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTimeRecordNotFound, rec.RecordID)
	}
	if current.Active && !rec.Active {
		delete(s.activeByWorker, current.WorkerID)
	}
	s.records[rec.RecordID] = rec.Clone()
	return nil
}

func (s *Store) ActiveForWorker(ctx context.Context, workerID string) (*models.TimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recordID, ok := s.activeByWorker[workerID]
	if !ok {
		return nil, nil
	}
	return s.records[recordID].Clone(), nil
}

func (s *Store) ActiveForOrder(ctx context.Context, orderID string) ([]*models.TimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TimeRecord
	for _, rec := range s.records {
		if rec.Active && rec.WorkOrderID == orderID {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) ListForWorkerBetween(ctx context.Context, workerID string, from, to time.Time) ([]*models.TimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TimeRecord
	for _, rec := range s.records {
		if rec.WorkerID != workerID {
			continue
		}
		if rec.ClockIn.Before(from) || !rec.ClockIn.Before(to) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) ListForOrder(ctx context.Context, orderID string) ([]*models.TimeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TimeRecord
	for _, rec := range s.records {
		if rec.WorkOrderID == orderID {
			out = append(out, rec.Clone())
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *Store) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.audits[entry.WorkOrderID]
	for _, e := range entries {
		if e.Seq == entry.Seq {
			return fmt.Errorf("%w: work order %s seq %d", store.ErrAuditSeqConflict, entry.WorkOrderID, entry.Seq)
		}
	}
	s.audits[entry.WorkOrderID] = append(entries, entry.Clone())
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, orderID string) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.audits[orderID]
	out := make([]*models.AuditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *Store) LastAuditEntry(ctx context.Context, orderID string) (*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.audits[orderID]
	if len(entries) == 0 {
		return nil, nil
	}
	last := entries[0]
	for _, e := range entries[1:] {
		if e.Seq > last.Seq {
			last = e
		}
	}
	return last.Clone(), nil
}

func sortRecords(recs []*models.TimeRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].ClockIn.Equal(recs[j].ClockIn) {
			return recs[i].WorkerID < recs[j].WorkerID
		}
		return recs[i].ClockIn.Before(recs[j].ClockIn)
	})
}
