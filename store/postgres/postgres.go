/*
Package postgres provides a PostgreSQL-backed implementation of the
settlement storage interfaces, built on pgx/v5.

PURPOSE:
  Same contract as store/sqlite, for multi-instance deployments. Uniqueness
  of (worker_id, period_start, period_end) is a database constraint, so
  concurrent creates on different instances still produce exactly one row.

MONEY AND DATES:
  NUMERIC(12,2) and DATE columns. Values cross the wire as text and are
  parsed with shopspring/decimal and generic.ParseDate, so no float64 is
  ever involved.

ERRORS:
  SQLSTATE 23505 (unique_violation) on uq_settlements_worker_period maps to
  *settlement.DuplicatePeriodError. Inside a transaction the aborted
  transaction cannot be queried, so ExistingID is left empty there.

SEE ALSO:
  - store/sqlite/sqlite.go: Single-file implementation
  - settlement/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/settlement"
)

const (
	uniqueViolation     = "23505"
	undefinedTable      = "42P01"
	uniquePeriodIndexID = "uq_settlements_worker_period"
)

// Store implements all storage interfaces using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	hasSales bool
}

// Option configures New.
type Option func(*options)

type options struct {
	salesTable bool
}

// WithSalesTable controls whether the sales table is created.
func WithSalesTable(enabled bool) Option {
	return func(o *options) { o.salesTable = enabled }
}

// New connects to dsn and migrates the schema.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	o := options{salesTable: true}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	store := &Store{pool: pool}
	if err := store.migrate(ctx, o); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	var regclass *string
	if err := pool.QueryRow(ctx, "SELECT to_regclass('sales')::text").Scan(&regclass); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to inspect schema: %w", err)
	}
	store.hasSales = regclass != nil
	return store, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context, o options) error {
	schema := `
	CREATE TABLE IF NOT EXISTS settlements (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		base_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		bonus_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		appointments_total NUMERIC(12,2) NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'pending' CHECK (state IN ('pending', 'paid')),
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (period_end >= period_start)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uq_settlements_worker_period
		ON settlements(worker_id, period_start, period_end);
	CREATE INDEX IF NOT EXISTS idx_settlements_order
		ON settlements(period_start DESC, created_at DESC);

	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		date DATE NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		service_name TEXT NOT NULL DEFAULT '',
		price NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_appointments_worker_date
		ON appointments(worker_id, status, date);
	`
	if o.salesTable {
		schema += `
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		sold_at TIMESTAMPTZ NOT NULL,
		client_name TEXT NOT NULL DEFAULT '',
		service_name TEXT NOT NULL DEFAULT '',
		total NUMERIC(12,2) NOT NULL,
		payment_method TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sales_worker_date
		ON sales(worker_id, status, sold_at);
	`
	}
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// =============================================================================
// SETTLEMENT STORE
// =============================================================================

const selectSettlement = `SELECT id, worker_id, period_start::text, period_end::text,
	base_amount::text, bonus_amount::text, appointments_total::text,
	state, paid_at, created_at, updated_at FROM settlements`

func (s *Store) Insert(ctx context.Context, st settlement.Settlement) error {
	return insert(ctx, s.pool, s.pool, st)
}

// insert writes st. lookup resolves the conflicting id after a unique
// violation and is nil inside a transaction.
func insert(ctx context.Context, q, lookup querier, st settlement.Settlement) error {
	_, err := q.Exec(ctx, `
		INSERT INTO settlements (id, worker_id, period_start, period_end, base_amount, bonus_amount,
			appointments_total, state, paid_at, created_at, updated_at)
		VALUES ($1, $2, $3::text::date, $4::text::date, $5::text::numeric, $6::text::numeric,
			$7::text::numeric, $8, $9, $10, $11)`,
		string(st.ID), string(st.WorkerID), st.Period.Start.String(), st.Period.End.String(),
		st.BaseAmount.String(), st.BonusAmount.String(), st.AppointmentsTotal.String(),
		string(st.State), st.PaidAt, st.CreatedAt, st.UpdatedAt,
	)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == uniquePeriodIndexID {
		dup := &settlement.DuplicatePeriodError{WorkerID: st.WorkerID, Period: st.Period}
		if lookup != nil {
			if existing, ferr := findByPeriod(ctx, lookup, st.WorkerID, st.Period); ferr == nil && len(existing) > 0 {
				dup.ExistingID = existing[0].ID
			}
		}
		return dup
	}
	return fmt.Errorf("failed to insert settlement: %w", err)
}

func (s *Store) Get(ctx context.Context, id settlement.SettlementID) (settlement.Settlement, error) {
	return get(ctx, s.pool, id)
}

func get(ctx context.Context, q querier, id settlement.SettlementID) (settlement.Settlement, error) {
	rows, err := q.Query(ctx, selectSettlement+` WHERE id = $1`, string(id))
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

func (s *Store) FindByPeriod(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Settlement, error) {
	return findByPeriod(ctx, s.pool, workerID, period)
}

func findByPeriod(ctx context.Context, q querier, workerID settlement.WorkerID, period generic.Period) ([]settlement.Settlement, error) {
	rows, err := q.Query(ctx,
		selectSettlement+` WHERE worker_id = $1 AND period_start = $2::text::date AND period_end = $3::text::date`,
		string(workerID), period.Start.String(), period.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	return scanSettlements(rows)
}

func (s *Store) List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	return list(ctx, s.pool, filter)
}

func list(ctx context.Context, q querier, filter settlement.Filter) ([]settlement.Settlement, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.WorkerID != nil {
		where = append(where, "worker_id = "+arg(string(*filter.WorkerID)))
	}
	if filter.State != nil {
		where = append(where, "state = "+arg(string(*filter.State)))
	}
	if filter.Period != nil {
		where = append(where, "period_start = "+arg(filter.Period.Start.String())+"::text::date")
		where = append(where, "period_end = "+arg(filter.Period.End.String())+"::text::date")
	}

	query := selectSettlement
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start DESC, created_at DESC"

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	result, err := scanSettlements(rows)
	if result == nil && err == nil {
		result = []settlement.Settlement{}
	}
	return result, err
}

func (s *Store) Update(ctx context.Context, st settlement.Settlement) error {
	return update(ctx, s.pool, st)
}

func update(ctx context.Context, q querier, st settlement.Settlement) error {
	tag, err := q.Exec(ctx, `
		UPDATE settlements SET
			base_amount = $1::text::numeric,
			bonus_amount = $2::text::numeric,
			appointments_total = $3::text::numeric,
			state = $4,
			paid_at = $5,
			updated_at = $6
		WHERE id = $7 AND state = 'pending'`,
		st.BaseAmount.String(), st.BonusAmount.String(), st.AppointmentsTotal.String(),
		string(st.State), st.PaidAt, st.UpdatedAt, string(st.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := get(ctx, q, st.ID); err != nil {
		return err
	}
	return generic.ErrConcurrentModification
}

func (s *Store) Delete(ctx context.Context, id settlement.SettlementID) error {
	return remove(ctx, s.pool, id)
}

func remove(ctx context.Context, q querier, id settlement.SettlementID) error {
	tag, err := q.Exec(ctx, "DELETE FROM settlements WHERE id = $1", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return settlement.ErrNotFound
	}
	return nil
}

func scanSettlements(rows pgx.Rows) ([]settlement.Settlement, error) {
	defer rows.Close()

	var result []settlement.Settlement
	for rows.Next() {
		var (
			st                        settlement.Settlement
			id, workerID, state       string
			start, end                string
			base, bonus, appointments string
		)
		if err := rows.Scan(&id, &workerID, &start, &end, &base, &bonus, &appointments,
			&state, &st.PaidAt, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		st.ID = settlement.SettlementID(id)
		st.WorkerID = settlement.WorkerID(workerID)
		st.State = settlement.State(state)

		var err error
		if st.Period, err = generic.ParsePeriod(start, end); err != nil {
			return nil, fmt.Errorf("settlement %s: %w", id, err)
		}
		if st.BaseAmount, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("settlement %s base_amount: %w", id, err)
		}
		if st.BonusAmount, err = decimal.NewFromString(bonus); err != nil {
			return nil, fmt.Errorf("settlement %s bonus_amount: %w", id, err)
		}
		if st.AppointmentsTotal, err = decimal.NewFromString(appointments); err != nil {
			return nil, fmt.Errorf("settlement %s appointments_total: %w", id, err)
		}
		st.CreatedAt = st.CreatedAt.UTC()
		st.UpdatedAt = st.UpdatedAt.UTC()
		if st.PaidAt != nil {
			t := st.PaidAt.UTC()
			st.PaidAt = &t
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(settlement.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op after Commit.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txStore struct {
	tx pgx.Tx
}

func (ts *txStore) Insert(ctx context.Context, st settlement.Settlement) error {
	return insert(ctx, ts.tx, nil, st)
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
// COLLABORATORS
// =============================================================================

func (s *Store) Worker(ctx context.Context, id settlement.WorkerID) (settlement.Worker, error) {
	var (
		w      settlement.Worker
		idText string
	)
	err := s.pool.QueryRow(ctx,
		"SELECT id, first_name, last_name, email FROM workers WHERE id = $1", string(id),
	).Scan(&idText, &w.FirstName, &w.LastName, &w.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return settlement.Worker{}, settlement.ErrWorkerNotFound
	}
	if err != nil {
		return settlement.Worker{}, fmt.Errorf("failed to query worker: %w", err)
	}
	w.ID = settlement.WorkerID(idText)
	return w, nil
}

func (s *Store) ListCompleted(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, date::text, time, client_name, service_name, price::text, status
		FROM appointments
		WHERE worker_id = $1 AND status = $2 AND date BETWEEN $3::text::date AND $4::text::date
		ORDER BY date ASC, time ASC`,
		string(workerID), settlement.AppointmentCompleted, period.Start.String(), period.End.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var result []settlement.Appointment
	for rows.Next() {
		a := settlement.Appointment{WorkerID: workerID}
		var date, price string
		if err := rows.Scan(&a.ID, &date, &a.Time, &a.ClientName, &a.ServiceName, &price, &a.Status); err != nil {
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

// Sales returns the sales ledger, or nil when there is no sales table.
func (s *Store) Sales() settlement.SalesLedger {
	if !s.hasSales {
		return nil
	}
	return salesLedger{s}
}

type salesLedger struct{ s *Store }

func (l salesLedger) ListSettled(ctx context.Context, workerID settlement.WorkerID, period generic.Period) ([]settlement.Sale, error) {
	rows, err := l.s.pool.Query(ctx, `
		SELECT id, sold_at, client_name, service_name, total::text, payment_method, status
		FROM sales
		WHERE worker_id = $1 AND status = $2
		  AND (sold_at AT TIME ZONE 'UTC')::date BETWEEN $3::text::date AND $4::text::date
		ORDER BY sold_at ASC`,
		string(workerID), settlement.SaleSettled, period.Start.String(), period.End.String(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
			return nil, fmt.Errorf("%w: %v", settlement.ErrSourceUnavailable, err)
		}
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var result []settlement.Sale
	for rows.Next() {
		sale := settlement.Sale{WorkerID: workerID}
		var total string
		if err := rows.Scan(&sale.ID, &sale.SoldAt, &sale.ClientName, &sale.ServiceName,
			&total, &sale.PaymentMethod, &sale.Status); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sale.SoldAt = sale.SoldAt.UTC()
		if sale.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("sale %s total: %w", sale.ID, err)
		}
		result = append(result, sale)
	}
	return result, rows.Err()
}

// =============================================================================
// SEEDING
// =============================================================================

func (s *Store) SaveWorker(ctx context.Context, w settlement.Worker) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workers (id, first_name, last_name, email) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email`,
		string(w.ID), w.FirstName, w.LastName, w.Email,
	)
	return err
}

func (s *Store) SaveAppointment(ctx context.Context, a settlement.Appointment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO appointments (id, worker_id, date, time, client_name, service_name, price, status)
		VALUES ($1, $2, $3::text::date, $4, $5, $6, $7::text::numeric, $8)
		ON CONFLICT (id) DO UPDATE SET
			date = EXCLUDED.date,
			time = EXCLUDED.time,
			price = EXCLUDED.price,
			status = EXCLUDED.status`,
		a.ID, string(a.WorkerID), a.Date.String(), a.Time, a.ClientName, a.ServiceName, a.Price.String(), a.Status,
	)
	return err
}

func (s *Store) SaveSale(ctx context.Context, sale settlement.Sale) error {
	if !s.hasSales {
		return fmt.Errorf("%w: no sales table", settlement.ErrSourceUnavailable)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sales (id, worker_id, sold_at, client_name, service_name, total, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sold_at = EXCLUDED.sold_at,
			total = EXCLUDED.total,
			status = EXCLUDED.status`,
		sale.ID, string(sale.WorkerID), sale.SoldAt.UTC(), sale.ClientName, sale.ServiceName,
		sale.Total.String(), sale.PaymentMethod, sale.Status,
	)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := "settlements, appointments, workers"
	if s.hasSales {
		tables += ", sales"
	}
	_, err := s.pool.Exec(ctx, "TRUNCATE "+tables)
	return err
}
