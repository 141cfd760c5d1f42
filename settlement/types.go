/*
Package settlement computes, records and settles what a salon worker is owed
for a date range.

PURPOSE:
  A Settlement is the payable record for one worker over one inclusive
  period. Its base amount is either supplied by an operator or suggested by
  the Aggregator from the worker's completed appointments and settled sales.
  Settlements move through a two-state lifecycle: pending -> paid.

KEY CONCEPTS IN THIS FILE (types.go):
  - Settlement: the persisted record and its derived payable total
  - Worker: payee identity, owned by an external directory
  - Appointment / Sale: read-only facts owned by external ledgers
  - State: pending or paid (terminal)

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal, never float64
  2. No drift: PayableTotal is computed from its operands, never stored
  3. Immutability after payment: a paid settlement rejects every mutation

SEE ALSO:
  - lifecycle.go: Create / recompute / update / mark paid
  - aggregator.go: Suggested amount from appointments and sales
  - reports.go: Read-only projections
*/
package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type SettlementID string

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StatePending State = "pending"
	StatePaid    State = "paid" // terminal
)

func (s State) Valid() bool {
	return s == StatePending || s == StatePaid
}

// ParseState accepts the wire value of a state.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown settlement state %q", s)
	}
	return st, nil
}

// =============================================================================
// SETTLEMENT
// =============================================================================

// Settlement is the payable record for one worker over one period.
// At most one exists per (WorkerID, Period) pair.
type Settlement struct {
	ID       SettlementID
	WorkerID WorkerID
	Period   generic.Period

	BaseAmount  decimal.Decimal
	BonusAmount decimal.Decimal

	// AppointmentsTotal caches the completed-appointment revenue for the
	// period as of the last create or recompute.
	AppointmentsTotal decimal.Decimal

	State State

	// Audit fields
	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PayableTotal is BaseAmount + BonusAmount.
func (s Settlement) PayableTotal() decimal.Decimal {
	return s.BaseAmount.Add(s.BonusAmount)
}

func (s Settlement) IsPaid() bool { return s.State == StatePaid }

// =============================================================================
// EXTERNAL FACTS - Owned by collaborating subsystems, read-only here
// =============================================================================

// Worker is the payee (manicurist).
type Worker struct {
	ID        WorkerID
	FirstName string
	LastName  string
	Email     string
}

func (w Worker) FullName() string {
	return strings.TrimSpace(w.FirstName + " " + w.LastName)
}

// Terminal statuses the ledgers filter on.
const (
	AppointmentCompleted = "finalized"
	SaleSettled          = "paid"
)

// Appointment is a completed appointment contributing its service price.
type Appointment struct {
	ID          string
	WorkerID    WorkerID
	Date        generic.TimePoint
	Time        string // HH:MM, informational
	ClientName  string
	ServiceName string
	Price       decimal.Decimal
	Status      string
}

// Sale is a settled point-of-sale transaction contributing its total.
type Sale struct {
	ID            string
	WorkerID      WorkerID
	SoldAt        time.Time
	ClientName    string
	ServiceName   string
	Total         decimal.Decimal
	PaymentMethod string
	Status        string
}

// Date is the UTC calendar day the sale counts towards.
func (s Sale) Date() generic.TimePoint { return generic.DateOf(s.SoldAt.UTC()) }
