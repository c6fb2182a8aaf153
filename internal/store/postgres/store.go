// Package postgres implements the persistence boundary on PostgreSQL. The
// conditional-write invariants live in the schema: a partial unique index
// enforces one active time record per worker, a version column guards work
// order updates, and a (work_order_id, seq) unique constraint keeps the
// audit chain gap-free under concurrent writers.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/SpaceTrucker2196/fieldhand/internal/models"
	"github.com/SpaceTrucker2196/fieldhand/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	cfg  *StoreConfig
}

// NewStore connects the pool, optionally runs migrations, and returns the
// store.
func NewStore(ctx context.Context, cfg *StoreConfig) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pool, err := NewPool(ctx, &cfg.Pool)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("max_conns", cfg.Pool.MaxConns).
		Msg("Connected to PostgreSQL")

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	return &Store{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// queryCtx applies the configured query timeout, when set.
func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(s.cfg.QueryTimeoutSeconds)*time.Second)
}

func (s *Store) CreateWorkOrder(ctx context.Context, order *models.WorkOrder) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO work_orders (
			work_order_id, title, priority, due_date, team_id, status,
			completed, completed_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		order.WorkOrderID, order.Title, order.Priority, order.DueDate,
		order.TeamID, order.Status, order.Completed, order.CompletedAt,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (s *Store) GetWorkOrder(ctx context.Context, orderID string) (*models.WorkOrder, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT work_order_id, title, priority, due_date, team_id, status,
		       completed, completed_at, version, created_at, updated_at
		FROM work_orders
		WHERE work_order_id = $1
	`, orderID)

	order, err := scanWorkOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrWorkOrderNotFound, orderID)
		}
		return nil, mapPostgresError(err)
	}
	return order, nil
}

func (s *Store) UpdateWorkOrder(ctx context.Context, order *models.WorkOrder) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	// Conditional write: the version predicate makes this a check-and-set.
	tag, err := s.pool.Exec(ctx, `
		UPDATE work_orders
		SET title = $2, priority = $3, due_date = $4, team_id = $5,
		    status = $6, completed = $7, completed_at = $8,
		    version = version + 1, updated_at = $9
		WHERE work_order_id = $1 AND version = $10
	`,
		order.WorkOrderID, order.Title, order.Priority, order.DueDate,
		order.TeamID, order.Status, order.Completed, order.CompletedAt,
		order.UpdatedAt, order.Version,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a lost version race.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM work_orders WHERE work_order_id = $1)`,
			order.WorkOrderID,
		).Scan(&exists); err != nil {
			return mapPostgresError(err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", store.ErrWorkOrderNotFound, order.WorkOrderID)
		}
		return fmt.Errorf("%w: %s version %d", store.ErrVersionConflict, order.WorkOrderID, order.Version)
	}
	order.Version++
	return nil
}

func (s *Store) CreateTimeRecord(ctx context.Context, rec *models.TimeRecord) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO time_records (
			record_id, worker_id, work_order_id, work_date, clock_in,
			clock_out, hours_worked, active, iso_week, iso_year
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.RecordID, rec.WorkerID, nullableID(rec.WorkOrderID), rec.WorkDate,
		rec.ClockIn, rec.ClockOut, rec.HoursWorked, rec.Active, rec.ISOWeek, rec.ISOYear,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (s *Store) UpdateTimeRecord(ctx context.Context, rec *models.TimeRecord) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE time_records
		SET clock_out = $2, hours_worked = $3, active = $4
		WHERE record_id = $1
	`, rec.RecordID, rec.ClockOut, rec.HoursWorked, rec.Active)
	if err != nil {
		return mapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrTimeRecordNotFound, rec.RecordID)
	}
	return nil
}

func (s *Store) ActiveForWorker(ctx context.Context, workerID string) (*models.TimeRecord, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, selectTimeRecord+`WHERE worker_id = $1 AND active`, workerID)
	rec, err := scanTimeRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPostgresError(err)
	}
	return rec, nil
}

func (s *Store) ActiveForOrder(ctx context.Context, orderID string) ([]*models.TimeRecord, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectTimeRecord+`WHERE work_order_id = $1 AND active ORDER BY clock_in, worker_id`, orderID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return collectTimeRecords(rows)
}

func (s *Store) ListForWorkerBetween(ctx context.Context, workerID string, from, to time.Time) ([]*models.TimeRecord, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectTimeRecord+`WHERE worker_id = $1 AND clock_in >= $2 AND clock_in < $3 ORDER BY clock_in, worker_id`,
		workerID, from, to)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return collectTimeRecords(rows)
}

func (s *Store) ListForOrder(ctx context.Context, orderID string) ([]*models.TimeRecord, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		selectTimeRecord+`WHERE work_order_id = $1 ORDER BY clock_in, worker_id`, orderID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return collectTimeRecords(rows)
}

func (s *Store) AppendAuditEntry(ctx context.Context, entry *models.AuditEntry) error {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_entries (
			entry_id, work_order_id, seq, action, details,
			entry_hash, prev_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		entry.EntryID, entry.WorkOrderID, entry.Seq, entry.Action, details,
		entry.EntryHash, entry.PrevHash, entry.CreatedAt,
	)
	if err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (s *Store) ListAuditEntries(ctx context.Context, orderID string) ([]*models.AuditEntry, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, selectAuditEntry+`WHERE work_order_id = $1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, mapPostgresError(err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) LastAuditEntry(ctx context.Context, orderID string) (*models.AuditEntry, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		selectAuditEntry+`WHERE work_order_id = $1 ORDER BY seq DESC LIMIT 1`, orderID)
	entry, err := scanAuditEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPostgresError(err)
	}
	return entry, nil
}

const selectTimeRecord = `
	SELECT record_id, worker_id, work_order_id, work_date, clock_in,
	       clock_out, hours_worked, active, iso_week, iso_year
	FROM time_records
`

const selectAuditEntry = `
	SELECT entry_id, work_order_id, seq, action, details,
	       entry_hash, prev_hash, created_at
	FROM audit_entries
`

func scanWorkOrder(row pgx.Row) (*models.WorkOrder, error) {
	var order models.WorkOrder
	err := row.Scan(
		&order.WorkOrderID, &order.Title, &order.Priority, &order.DueDate,
		&order.TeamID, &order.Status, &order.Completed, &order.CompletedAt,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func scanTimeRecord(row pgx.Row) (*models.TimeRecord, error) {
	var rec models.TimeRecord
	var orderID *string
	err := row.Scan(
		&rec.RecordID, &rec.WorkerID, &orderID, &rec.WorkDate, &rec.ClockIn,
		&rec.ClockOut, &rec.HoursWorked, &rec.Active, &rec.ISOWeek, &rec.ISOYear,
	)
	if err != nil {
		return nil, err
	}
	if orderID != nil {
		rec.WorkOrderID = *orderID
	}
	return &rec, nil
}

func scanAuditEntry(row pgx.Row) (*models.AuditEntry, error) {
	var entry models.AuditEntry
	var details []byte
	err := row.Scan(
		&entry.EntryID, &entry.WorkOrderID, &entry.Seq, &entry.Action, &details,
		&entry.EntryHash, &entry.PrevHash, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &entry.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return &entry, nil
}

func collectTimeRecords(rows pgx.Rows) ([]*models.TimeRecord, error) {
	defer rows.Close()

	var out []*models.TimeRecord
	for rows.Next() {
		rec, err := scanTimeRecord(rows)
		if err != nil {
			return nil, mapPostgresError(err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// nullableID maps an empty string id to SQL NULL.
func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
