/*
Package sqlite provides a SQLite-backed implementation of the settlement
storage interfaces.

PURPOSE:
  Implements settlement.TxStore plus the three read-only collaborators
  (WorkerDirectory, AppointmentLedger, SalesLedger) on one SQLite file.
  In production the same patterns apply to PostgreSQL (store/postgres).

INTERFACES IMPLEMENTED:
  settlement.TxStore:           Settlement persistence
  settlement.WorkerDirectory:   workers table
  settlement.AppointmentLedger: appointments table
  settlement.SalesLedger:       sales table (optional, see Sales())

KEY TABLES:
  settlements:  One row per worker and exact period
  workers:      Payee directory
  appointments: Completed and scheduled appointments
  sales:        Point-of-sale transactions. Absent in salons without a
                point-of-sale module.

INDEXES:
  - idx_settlements_worker_period (UNIQUE): enforces one settlement per
    worker and exact period. Backs the Period Validator under concurrency.
  - idx_settlements_order: list ordering (period_start DESC, created_at DESC)
  - idx_appointments_worker_date / idx_sales_worker_date: aggregation range
    scans (hot path)

MONEY:
  Amounts are stored as TEXT decimal strings and parsed with
  shopspring/decimal. SQLite REAL would lose cents.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole callback, so check-then-insert is serialized even before the unique
  index is consulted.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/payouts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  agg := settlement.NewAggregator(store, store.Sales(), logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - settlement/store.go: Interface definitions
  - settlement/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/settlement"
)

// timestampLayout sorts lexically, which the list ordering relies on.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	hasSales bool
}

// Option configures New.
type Option func(*options)

type options struct {
	salesTable bool
}

// WithSalesTable controls whether the sales table is created. A database
// created without it serves a nil SalesLedger.
func WithSalesTable(enabled bool) Option {
	return func(o *options) { o.salesTable = enabled }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	o := options{salesTable: true}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(o); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if store.hasSales, err = store.tableExists(context.Background(), "sales"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate(o options) error {
	schema := `
	-- Settlements
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		base_amount TEXT NOT NULL DEFAULT '0',
		bonus_amount TEXT NOT NULL DEFAULT '0',
		appointments_total TEXT NOT NULL DEFAULT '0',
		state TEXT NOT NULL DEFAULT 'pending',
		paid_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (state IN ('pending', 'paid'))
	);

	-- CRITICAL: one settlement per worker and exact period
	CREATE UNIQUE INDEX IF NOT EXISTS idx_settlements_worker_period
		ON settlements(worker_id, period_start, period_end);

	CREATE INDEX IF NOT EXISTS idx_settlements_order
		ON settlements(period_start DESC, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_settlements_state
		ON settlements(state);

	-- Workers
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT ''
	);

	-- Appointments
	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		service_name TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_worker_date
		ON appointments(worker_id, status, date);
	`
	if o.salesTable {
		schema += `
	-- Sales (point-of-sale module)
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		sold_at TEXT NOT NULL,
		client_name TEXT NOT NULL DEFAULT '',
		service_name TEXT NOT NULL DEFAULT '',
		total TEXT NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_worker_date
		ON sales(worker_id, status, sold_at);
	`
	}

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	return count > 0, err
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// SETTLEMENT STORE (settlement.Store interface)
// =============================================================================

const settlementColumns = `id, worker_id, period_start, period_end, base_amount, bonus_amount,
	appointments_total, state, paid_at, created_at, updated_at`

// Insert adds a settlement.
func (s *Store) Insert(ctx context.Context, st settlement.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insert(ctx, s.db, st)
}

func insert(ctx context.Context, q querier, st settlement.Settlement) error {
	query := `INSERT INTO settlements (` + settlementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		st.ID,
		st.WorkerID,
		st.Period.Start.String(),
		st.Period.End.String(),
		st.BaseAmount.String(),
		st.BonusAmount.String(),
		st.AppointmentsTotal.String(),
		st.State,
		nullTime(st.PaidAt),
		formatTime(st.CreatedAt),
		formatTime(st.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			dup := &settlement.DuplicatePeriodError{WorkerID: st.WorkerID, Period: st.Period}
			if existing, ferr := findByPeriod(ctx, q, st.WorkerID, st.Period); ferr == nil && len(existing) > 0 {
				dup.ExistingID = existing[0].ID
			}
			return dup
		}
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// Get returns a settlement by id.
func (s *Store) Get(ctx context.Context, id settlement.SettlementID) (settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(ctx, s.db, id)
}

func get(ctx context.Context, q querier, id settlement.SettlementID) (settlement.Settlement, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+settlementColumns+` FROM settlements WHERE id = ?`, id)
	if err != nil {
		return settlement.Settlement{}, fmt.Errorf("failed to query settlement: %w", err)
	}
	list, err := scanSettlements(rows)
	if err != nil {
		return settlement.Settlement{}, err
	}
	if len(list) == 0 {
		return settlement.Settlement{}, settlement.ErrNotFound
	}
	return list[0], nil
}

// FindByPeriod returns the settlements of a worker with exactly this period.
func (s *Store) FindByPeriod(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByPeriod(ctx, s.db, workerID, period)
}

func findByPeriod(ctx context.Context, q querier, workerID settlement.WorkerID, period generic.Period) ([]settlement.Settlement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements
		 WHERE worker_id = ? AND period_start = ? AND period_end = ?`,
		workerID, period.Start.String(), period.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	return scanSettlements(rows)
}

// List returns settlements matching filter, newest period first.
func (s *Store) List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return list(ctx, s.db, filter)
}

func list(ctx context.Context, q querier, filter settlement.Filter) ([]settlement.Settlement, error) {
	var (
		where []string
		args  []any
	)
	if filter.WorkerID != nil {
		where = append(where, "worker_id = ?")
		args = append(args, *filter.WorkerID)
	}
	if filter.State != nil {
		where = append(where, "state = ?")
		args = append(args, *filter.State)
	}
	if filter.Period != nil {
		where = append(where, "period_start = ? AND period_end = ?")
		args = append(args, filter.Period.Start.String(), filter.Period.End.String())
	}

	query := `SELECT ` + settlementColumns + ` FROM settlements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start DESC, created_at DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	result, err := scanSettlements(rows)
	if result == nil && err == nil {
		result = []settlement.Settlement{}
	}
	return result, err
}

// Update writes the mutable columns of a pending settlement.
func (s *Store) Update(ctx context.Context, st settlement.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return update(ctx, s.db, st)
}

func update(ctx context.Context, q querier, st settlement.Settlement) error {
	res, err := q.ExecContext(ctx, `
		UPDATE settlements SET
			base_amount = ?,
			bonus_amount = ?,
			appointments_total = ?,
			state = ?,
			paid_at = ?,
			updated_at = ?
		WHERE id = ? AND state = 'pending'`,
		st.BaseAmount.String(),
		st.BonusAmount.String(),
		st.AppointmentsTotal.String(),
		st.State,
		nullTime(st.PaidAt),
		formatTime(st.UpdatedAt),
		st.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Either missing or no longer pending.
	if _, err := get(ctx, q, st.ID); err != nil {
		return err
	}
	return generic.ErrConcurrentModification
}

// Delete removes a settlement.
func (s *Store) Delete(ctx context.Context, id settlement.SettlementID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(ctx, s.db, id)
}

func remove(ctx context.Context, q querier, id settlement.SettlementID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM settlements WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return settlement.ErrNotFound
	}
	return nil
}

func scanSettlements(rows *sql.Rows) ([]settlement.Settlement, error) {
	defer rows.Close()

	var result []settlement.Settlement
	for rows.Next() {
		var (
			st                        settlement.Settlement
			start, end                string
			base, bonus, appointments string
			paidAt                    sql.NullString
			createdAt, updatedAt      string
		)
		if err := rows.Scan(&st.ID, &st.WorkerID, &start, &end, &base, &bonus,
			&appointments, &st.State, &paidAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}

		var err error
		if st.Period, err = generic.ParsePeriod(start, end); err != nil {
			return nil, fmt.Errorf("settlement %s: %w", st.ID, err)
		}
		if st.BaseAmount, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("settlement %s base_amount: %w", st.ID, err)
		}
		if st.BonusAmount, err = decimal.NewFromString(bonus); err != nil {
			return nil, fmt.Errorf("settlement %s bonus_amount: %w", st.ID, err)
		}
		if st.AppointmentsTotal, err = decimal.NewFromString(appointments); err != nil {
			return nil, fmt.Errorf("settlement %s appointments_total: %w", st.ID, err)
		}
		if paidAt.Valid {
			t, err := parseTime(paidAt.String)
			if err != nil {
				return nil, fmt.Errorf("settlement %s paid_at: %w", st.ID, err)
			}
			st.PaidAt = &t
		}
		if st.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("settlement %s created_at: %w", st.ID, err)
		}
		if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("settlement %s updated_at: %w", st.ID, err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (settlement.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store settlement.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every call on the open transaction without taking the lock
// WithTx already holds.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Insert(ctx context.Context, st settlement.Settlement) error {
	return insert(ctx, ts.tx, st)
}

func (ts *txStore) Get(ctx context.Context, id settlement.SettlementID) (settlement.Settlement, error) {
	return get(ctx, ts.tx, id)
}

func (ts *txStore) FindByPeriod(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Settlement, error) {
	return findByPeriod(ctx, ts.tx, workerID, period)
}

func (ts *txStore) List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	return list(ctx, ts.tx, filter)
}

func (ts *txStore) Update(ctx context.Context, st settlement.Settlement) error {
	return update(ctx, ts.tx, st)
}

func (ts *txStore) Delete(ctx context.Context, id settlement.SettlementID) error {
	return remove(ctx, ts.tx, id)
}

// =============================================================================
// WORKER DIRECTORY
// =============================================================================

// Worker returns a worker by id.
func (s *Store) Worker(ctx context.Context, id settlement.WorkerID) (settlement.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w settlement.Worker
	err := s.db.QueryRowContext(ctx,
		"SELECT id, first_name, last_name, email FROM workers WHERE id = ?", id,
	).Scan(&w.ID, &w.FirstName, &w.LastName, &w.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.Worker{}, settlement.ErrWorkerNotFound
	}
	if err != nil {
		return settlement.Worker{}, fmt.Errorf("failed to query worker: %w", err)
	}
	return w, nil
}

// SaveWorker upserts a worker.
func (s *Store) SaveWorker(ctx context.Context, w settlement.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (id, first_name, last_name, email)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email`,
		w.ID, w.FirstName, w.LastName, w.Email,
	)
	return err
}

// =============================================================================
// APPOINTMENT LEDGER
// =============================================================================

// ListCompleted returns completed appointments in the period.
func (s *Store) ListCompleted(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, date, time, client_name, service_name, price, status
		FROM appointments
		WHERE worker_id = ? AND status = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, time ASC`,
		workerID, settlement.AppointmentCompleted, period.Start.String(), period.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var result []settlement.Appointment
	for rows.Next() {
		var (
			a           settlement.Appointment
			date, price string
		)
		if err := rows.Scan(&a.ID, &a.WorkerID, &date, &a.Time, &a.ClientName, &a.ServiceName, &price, &a.Status); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		if a.Date, err = generic.ParseDate(date); err != nil {
			return nil, fmt.Errorf("appointment %s: %w", a.ID, err)
		}
		if a.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("appointment %s price: %w", a.ID, err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// SaveAppointment upserts an appointment.
func (s *Store) SaveAppointment(ctx context.Context, a settlement.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (id, worker_id, date, time, client_name, service_name, price, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			time = excluded.time,
			price = excluded.price,
			status = excluded.status`,
		a.ID, a.WorkerID, a.Date.String(), a.Time, a.ClientName, a.ServiceName, a.Price.String(), a.Status,
	)
	return err
}

// =============================================================================
// SALES LEDGER (optional)
// =============================================================================

// Sales returns the sales ledger, or nil when the database has no sales
// table. The nil is untyped so the Aggregator sees a nil interface.
func (s *Store) Sales() settlement.SalesLedger {
	if !s.hasSales {
		return nil
	}
	return salesLedger{s}
}

type salesLedger struct{ s *Store }

func (l salesLedger) ListSettled(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Sale, error) {
	return l.s.listSettled(ctx, workerID, period)
}

func (s *Store) listSettled(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, sold_at, client_name, service_name, total, payment_method, status
		FROM sales
		WHERE worker_id = ? AND status = ? AND substr(sold_at, 1, 10) >= ? AND substr(sold_at, 1, 10) <= ?
		ORDER BY sold_at ASC`,
		workerID, settlement.SaleSettled, period.Start.String(), period.End.String(),
	)
	if err != nil {
		if isNoSuchTableError(err) {
			return nil, fmt.Errorf("%w: %v", settlement.ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var result []settlement.Sale
	for rows.Next() {
		var (
			sale          settlement.Sale
			soldAt, total string
		)
		if err := rows.Scan(&sale.ID, &sale.WorkerID, &soldAt, &sale.ClientName, &sale.ServiceName,
			&total, &sale.PaymentMethod, &sale.Status); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		if sale.SoldAt, err = parseTime(soldAt); err != nil {
			return nil, fmt.Errorf("sale %s sold_at: %w", sale.ID, err)
		}
		if sale.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("sale %s total: %w", sale.ID, err)
		}
		result = append(result, sale)
	}
	return result, rows.Err()
}

// SaveSale upserts a sale. Fails when the sales table is absent.
func (s *Store) SaveSale(ctx context.Context, sale settlement.Sale) error {
	if !s.hasSales {
		return fmt.Errorf("%w: no sales table", settlement.ErrSourceUnavailable)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, worker_id, sold_at, client_name, service_name, total, payment_method, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sold_at = excluded.sold_at,
			total = excluded.total,
			status = excluded.status`,
		sale.ID, sale.WorkerID, formatTime(sale.SoldAt), sale.ClientName, sale.ServiceName,
		sale.Total.String(), sale.PaymentMethod, sale.Status,
	)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"settlements", "appointments", "workers"}
	if s.hasSales {
		tables = append(tables, "sales")
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q: %w", s, err)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNoSuchTableError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
