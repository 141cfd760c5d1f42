package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation names a lifecycle operation for errors, logs and metrics.
type Operation string

const (
	OpCreate                Operation = "create"
	OpUpdate                Operation = "update"
	OpRecomputeAppointments Operation = "recompute_appointments"
	OpRecomputeSales        Operation = "recompute_sales"
	OpMarkPaid              Operation = "mark_paid"
	OpDelete                Operation = "delete"
)

// =============================================================================
// MUTATIONS - The complete set of changes a settlement accepts
// =============================================================================

// Mutation is one of AmountsUpdate, AppointmentsRecompute, BaseRecompute or
// PaidTransition. The interface is sealed: each type names exactly which
// fields it may touch.
type Mutation interface {
	Operation() Operation
	apply(s *Settlement) error
}

// AmountsUpdate sets the operator-supplied amounts. Nil leaves a field as is.
type AmountsUpdate struct {
	Base  *decimal.Decimal
	Bonus *decimal.Decimal
}

func (AmountsUpdate) Operation() Operation { return OpUpdate }

func (m AmountsUpdate) apply(s *Settlement) error {
	if err := CheckAmounts(m.Base, m.Bonus); err != nil {
		return err
	}
	if m.Base != nil {
		s.BaseAmount = *m.Base
	}
	if m.Bonus != nil {
		s.BonusAmount = *m.Bonus
	}
	return nil
}

// AppointmentsRecompute replaces the cached appointments total.
type AppointmentsRecompute struct {
	Total decimal.Decimal
}

func (AppointmentsRecompute) Operation() Operation { return OpRecomputeAppointments }

func (m AppointmentsRecompute) apply(s *Settlement) error {
	s.AppointmentsTotal = m.Total
	return nil
}

// BaseRecompute replaces the base amount with a freshly suggested one.
type BaseRecompute struct {
	Base decimal.Decimal
}

func (BaseRecompute) Operation() Operation { return OpRecomputeSales }

func (m BaseRecompute) apply(s *Settlement) error {
	if err := checkAmount("base_amount", m.Base); err != nil {
		return err
	}
	s.BaseAmount = m.Base
	return nil
}

// PaidTransition moves pending -> paid.
type PaidTransition struct {
	At time.Time
}

func (PaidTransition) Operation() Operation { return OpMarkPaid }

func (m PaidTransition) apply(s *Settlement) error {
	at := m.At
	s.State = StatePaid
	s.PaidAt = &at
	return nil
}

// Apply returns a copy of s with m applied, or an error and no copy.
// Every mutation requires a pending settlement; a repeated payment reports
// ErrAlreadyPaid, anything else on a paid settlement ErrIllegalState.
func (s Settlement) Apply(m Mutation, now time.Time) (Settlement, error) {
	if s.IsPaid() {
		if _, ok := m.(PaidTransition); ok {
			return Settlement{}, alreadyPaid(s.ID)
		}
		return Settlement{}, &IllegalStateError{ID: s.ID, State: s.State, Operation: m.Operation()}
	}
	if s.State != StatePending {
		return Settlement{}, &IllegalStateError{ID: s.ID, State: s.State, Operation: m.Operation()}
	}
	next := s
	if err := m.apply(&next); err != nil {
		return Settlement{}, err
	}
	next.UpdatedAt = now
	return next, nil
}

// CheckAmounts rejects negative amounts and amounts finer than a cent.
// Nil amounts are not checked.
func CheckAmounts(base, bonus *decimal.Decimal) error {
	if base != nil {
		if err := checkAmount("base_amount", *base); err != nil {
			return err
		}
	}
	if bonus != nil {
		if err := checkAmount("bonus_amount", *bonus); err != nil {
			return err
		}
	}
	return nil
}

func checkAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() || !d.Equal(d.Round(2)) {
		return &InvalidAmountError{Field: field, Value: d}
	}
	return nil
}
