/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the boundary between settlement logic and everything it does not
  own: the settlement table, the worker directory and the two earnings
  ledgers.

KEY INTERFACES:
  Store:             Settlement persistence
  TxStore:           Store + atomic check-then-write
  WorkerDirectory:   Worker existence and display attributes
  AppointmentLedger: Completed appointments in a period
  SalesLedger:       Settled sales in a period (optional capability)

UNIQUENESS:
  Implementations MUST enforce uniqueness of (worker, period_start,
  period_end) at write time (unique index or equivalent lock) and report a
  violation as *DuplicatePeriodError. The Period Validator check alone is
  not enough under concurrent creates.

OPTIONAL SALES LEDGER:
  Some deployments have no point-of-sale module. They pass a nil
  SalesLedger; the Aggregator treats nil as "unavailable", never as "zero
  sales". A ledger may also return ErrSourceUnavailable at query time
  (for example when its table is missing).

IMPLEMENTATIONS:
  - settlement/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite
  - store/postgres/postgres.go: PostgreSQL

SEE ALSO:
  - mutation.go: The enumerated updates passed to Store.Update
  - validator.go: Period Validator built on FindByPeriod
*/
package settlement

import (
	"context"

	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// STORE - Settlement persistence
// =============================================================================

// Store persists settlements.
type Store interface {
	// Insert adds a new settlement. Returns *DuplicatePeriodError when the
	// worker already has one for the exact period.
	Insert(ctx context.Context, s Settlement) error

	// Get returns the settlement or ErrNotFound.
	Get(ctx context.Context, id SettlementID) (Settlement, error)

	// FindByPeriod returns settlements for worker with exactly this period.
	FindByPeriod(ctx context.Context, workerID WorkerID, period generic.Period) ([]Settlement, error)

	// List returns settlements matching filter, newest period first.
	List(ctx context.Context, filter Filter) ([]Settlement, error)

	// Update writes the mutable columns of a pending settlement (amounts,
	// cached appointments total, state, paid_at, updated_at). Returns
	// ErrNotFound for an unknown id and generic.ErrConcurrentModification
	// when the stored row is no longer pending.
	Update(ctx context.Context, s Settlement) error

	// Delete removes a settlement. Administrative use only.
	Delete(ctx context.Context, id SettlementID) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Filter narrows List. Nil fields do not filter.
type Filter struct {
	WorkerID *WorkerID
	State    *State
	Period   *generic.Period // exact match
}

// Matches applies the filter to one settlement. In-memory stores use it;
// SQL stores translate the same rules into WHERE clauses.
func (f Filter) Matches(s Settlement) bool {
	if f.WorkerID != nil && s.WorkerID != *f.WorkerID {
		return false
	}
	if f.State != nil && s.State != *f.State {
		return false
	}
	if f.Period != nil && !s.Period.Equal(*f.Period) {
		return false
	}
	return true
}

// =============================================================================
// COLLABORATORS - Read-only views over subsystems owned elsewhere
// =============================================================================

// WorkerDirectory resolves worker identities.
type WorkerDirectory interface {
	// Worker returns the worker or ErrWorkerNotFound.
	Worker(ctx context.Context, id WorkerID) (Worker, error)
}

// AppointmentLedger lists completed appointments.
type AppointmentLedger interface {
	// ListCompleted returns appointments in status AppointmentCompleted whose
	// date falls within period (inclusive), ordered by date and time.
	ListCompleted(ctx context.Context, workerID WorkerID, period generic.Period) ([]Appointment, error)
}

// SalesLedger lists settled sales.
type SalesLedger interface {
	// ListSettled returns sales in status SaleSettled whose date falls within
	// period (inclusive), ordered by sale time.
	ListSettled(ctx context.Context, workerID WorkerID, period generic.Period) ([]Sale, error)
}
