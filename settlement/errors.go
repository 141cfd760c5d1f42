/*
errors.go - Settlement error taxonomy

PURPOSE:
  Every failure a caller can see has a distinct kind so the API (or a CLI)
  can map it to its own message and status code.

ERROR CATEGORIES:
  1. Validation: InvalidAmount, InvalidPeriod, DuplicatePeriod
  2. Lifecycle:  IllegalState, AlreadyPaid
  3. Lookup:     WorkerNotFound, NotFound
  4. Internal:   SourceUnavailable (absorbed by the Aggregator, never returned)

USAGE:
  switch settlement.KindOf(err) {
  case settlement.KindDuplicatePeriod:
      // 409
  }

SEE ALSO:
  - generic/errors.go: ErrInvalidPeriod, ErrConcurrentModification
  - api/handlers.go: Kind to HTTP status mapping
*/
package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicatePeriod is returned when the worker already has a settlement
	// for exactly the same date range.
	ErrDuplicatePeriod = errors.New("settlement already exists for this worker and period")

	// ErrInvalidAmount is returned for a negative base or bonus amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrIllegalState is returned when mutating a paid settlement.
	ErrIllegalState = errors.New("illegal settlement state")

	// ErrAlreadyPaid is returned by a second mark-paid.
	ErrAlreadyPaid = errors.New("settlement already paid")

	// ErrWorkerNotFound is returned when the worker directory has no such worker.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrNotFound is returned for an unknown settlement id.
	ErrNotFound = errors.New("settlement not found")

	// ErrSourceUnavailable marks an earnings source that is not deployed.
	// The Aggregator absorbs it; callers never receive it.
	ErrSourceUnavailable = errors.New("earnings source unavailable")

	// ErrInvalidPeriod is the shared period error.
	ErrInvalidPeriod = generic.ErrInvalidPeriod
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DuplicatePeriodError names the conflicting settlement when it is known.
// ExistingID is empty when the conflict was caught by the store constraint.
type DuplicatePeriodError struct {
	WorkerID   WorkerID
	Period     generic.Period
	ExistingID SettlementID
}

func (e *DuplicatePeriodError) Error() string {
	if e.ExistingID == "" {
		return fmt.Sprintf("settlement already exists for worker %s in %s", e.WorkerID, e.Period)
	}
	return fmt.Sprintf("settlement already exists for worker %s in %s (id: %s)", e.WorkerID, e.Period, e.ExistingID)
}

func (e *DuplicatePeriodError) Unwrap() error { return ErrDuplicatePeriod }

// InvalidAmountError names the offending field.
type InvalidAmountError struct {
	Field string
	Value decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	if e.Value.IsNegative() {
		return fmt.Sprintf("invalid amount: %s must not be negative (got %s)", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid amount: %s must be in whole cents (got %s)", e.Field, e.Value)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// IllegalStateError describes a rejected operation on a settlement.
type IllegalStateError struct {
	ID        SettlementID
	State     State
	Operation Operation
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("cannot %s settlement %s in state %s", e.Operation, e.ID, e.State)
}

func (e *IllegalStateError) Unwrap() error { return ErrIllegalState }

// =============================================================================
// ERROR KINDS
// =============================================================================

// ErrorKind is the caller-facing classification of an error.
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindDuplicatePeriod ErrorKind = "duplicate_period"
	KindInvalidAmount   ErrorKind = "invalid_amount"
	KindInvalidPeriod   ErrorKind = "invalid_period"
	KindIllegalState    ErrorKind = "illegal_state"
	KindAlreadyPaid     ErrorKind = "already_paid"
	KindWorkerNotFound  ErrorKind = "worker_not_found"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindInternal        ErrorKind = "internal"
)

// KindOf classifies err. AlreadyPaid is checked before IllegalState.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrDuplicatePeriod):
		return KindDuplicatePeriod
	case errors.Is(err, ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrInvalidPeriod):
		return KindInvalidPeriod
	case errors.Is(err, ErrAlreadyPaid):
		return KindAlreadyPaid
	case errors.Is(err, ErrIllegalState):
		return KindIllegalState
	case errors.Is(err, ErrWorkerNotFound):
		return KindWorkerNotFound
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, generic.ErrConcurrentModification):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindDuplicatePeriod, KindInvalidAmount, KindInvalidPeriod, KindIllegalState, KindAlreadyPaid:
		return true
	}
	return false
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrWorkerNotFound)
}

func alreadyPaid(id SettlementID) error {
	return fmt.Errorf("%w: %s", ErrAlreadyPaid, id)
}
