/*
lifecycle.go - Settlement Lifecycle Controller

PURPOSE:
  Orchestrates every write: create, update, recompute appointments,
  recompute sales, mark paid and the administrative delete.

STATE MACHINE:
  pending --mark_paid--> paid
  paid is terminal. Every other operation requires pending.

ATOMICITY:
  Each operation is one TxStore.WithTx call. Inside it the settlement is
  re-read, the state is re-checked, the Mutation is applied to a copy and
  the copy is written. Any error rolls the whole transaction back, so a
  failed operation leaves no partial write.

  Aggregation runs before the transaction: it only reads collaborators and
  never blocks a write.

UNIQUENESS:
  create runs the Period Validator inside the transaction, and the store's
  unique constraint backs it up. SkipPeriodCheck skips only the validator;
  the constraint still rejects an exact duplicate.

SEE ALSO:
  - mutation.go: What each operation may change
  - validator.go: Period Validator
  - aggregator.go: Suggested amounts
*/
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"go.uber.org/zap"
)

// =============================================================================
// CONTROLLER
// =============================================================================

type Controller struct {
	Store      TxStore
	Workers    WorkerDirectory
	Aggregator *Aggregator
	Logger     *zap.Logger
	Observer   Observer

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() SettlementID
}

// NewController wires a controller with real clock and uuid ids.
func NewController(store TxStore, workers WorkerDirectory, agg *Aggregator, logger *zap.Logger) *Controller {
	return &Controller{
		Store:      store,
		Workers:    workers,
		Aggregator: agg,
		Logger:     logger,
	}
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput is the request to create a settlement.
type CreateInput struct {
	WorkerID WorkerID
	Period   generic.Period

	// Optional operator amounts. Nil means not supplied.
	BaseAmount  *decimal.Decimal
	BonusAmount *decimal.Decimal

	// AutoCompute fills BaseAmount from the Aggregator when it is missing or
	// zero.
	AutoCompute bool

	// SkipPeriodCheck is set by callers that already confirmed there is no
	// conflicting period.
	SkipPeriodCheck bool
}

// NewCreateInput returns an input with AutoCompute on.
func NewCreateInput(workerID WorkerID, period generic.Period) CreateInput {
	return CreateInput{WorkerID: workerID, Period: period, AutoCompute: true}
}

// Create validates, aggregates and inserts a pending settlement.
func (c *Controller) Create(ctx context.Context, in CreateInput) (s Settlement, err error) {
	defer func() { c.done(OpCreate, err, s.ID) }()

	if err := in.Period.Validate(); err != nil {
		return Settlement{}, err
	}
	if err := CheckAmounts(in.BaseAmount, in.BonusAmount); err != nil {
		return Settlement{}, err
	}
	if _, err := c.Workers.Worker(ctx, in.WorkerID); err != nil {
		return Settlement{}, err
	}
	if !in.SkipPeriodCheck {
		// Fail fast before aggregating; re-checked inside the transaction.
		if err := (PeriodValidator{Store: c.Store}).Check(ctx, in.WorkerID, in.Period, ""); err != nil {
			return Settlement{}, err
		}
	}

	sg := c.Aggregator.Compute(ctx, in.WorkerID, in.Period)

	base := decimal.Zero
	if in.BaseAmount != nil {
		base = *in.BaseAmount
	}
	if in.AutoCompute && base.IsZero() {
		base = sg.SuggestedAmount
	}
	bonus := decimal.Zero
	if in.BonusAmount != nil {
		bonus = *in.BonusAmount
	}

	now := c.now()
	s = Settlement{
		ID:                c.newID(),
		WorkerID:          in.WorkerID,
		Period:            in.Period,
		BaseAmount:        base,
		BonusAmount:       bonus,
		AppointmentsTotal: sg.AppointmentsTotal,
		State:             StatePending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = c.Store.WithTx(ctx, func(tx Store) error {
		if !in.SkipPeriodCheck {
			if err := (PeriodValidator{Store: tx}).Check(ctx, s.WorkerID, s.Period, ""); err != nil {
				return err
			}
		}
		return tx.Insert(ctx, s)
	})
	if err != nil {
		return Settlement{}, err
	}
	return s, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateInput carries the updatable operator amounts. Nil leaves a field.
type UpdateInput struct {
	BaseAmount  *decimal.Decimal
	BonusAmount *decimal.Decimal
}

// Update changes operator amounts on a pending settlement.
func (c *Controller) Update(ctx context.Context, id SettlementID, in UpdateInput) (s Settlement, err error) {
	defer func() { c.done(OpUpdate, err, id) }()
	_, s, err = c.mutate(ctx, id, AmountsUpdate{Base: in.BaseAmount, Bonus: in.BonusAmount})
	return s, err
}

// =============================================================================
// RECOMPUTE
// =============================================================================

// AppointmentsDelta is the result of recomputing the appointments total.
type AppointmentsDelta struct {
	OldValue   decimal.Decimal
	NewValue   decimal.Decimal
	Difference decimal.Decimal
	// Degraded is set when the appointment ledger did not answer; the stored
	// value is then left untouched.
	Degraded   bool
	Settlement Settlement
}

// RecomputeAppointments refreshes the cached appointments total.
func (c *Controller) RecomputeAppointments(ctx context.Context, id SettlementID) (d AppointmentsDelta, err error) {
	defer func() { c.done(OpRecomputeAppointments, err, id) }()

	cur, err := c.pending(ctx, id, OpRecomputeAppointments)
	if err != nil {
		return AppointmentsDelta{}, err
	}

	res := c.Aggregator.ComputeAppointments(ctx, cur.WorkerID, cur.Period)
	if !res.Source.OK() {
		return AppointmentsDelta{
			OldValue:   cur.AppointmentsTotal,
			NewValue:   cur.AppointmentsTotal,
			Difference: decimal.Zero,
			Degraded:   true,
			Settlement: cur,
		}, nil
	}

	before, after, err := c.mutate(ctx, id, AppointmentsRecompute{Total: res.Total})
	if err != nil {
		return AppointmentsDelta{}, err
	}
	return AppointmentsDelta{
		OldValue:   before.AppointmentsTotal,
		NewValue:   after.AppointmentsTotal,
		Difference: after.AppointmentsTotal.Sub(before.AppointmentsTotal),
		Settlement: after,
	}, nil
}

// RecomputeSales re-derives the base amount with the creation fallback
// rule. When a source the rule depends on is unavailable, the stored base
// amount is kept.
func (c *Controller) RecomputeSales(ctx context.Context, id SettlementID) (s Settlement, err error) {
	defer func() { c.done(OpRecomputeSales, err, id) }()

	cur, err := c.pending(ctx, id, OpRecomputeSales)
	if err != nil {
		return Settlement{}, err
	}

	sg := c.Aggregator.Compute(ctx, cur.WorkerID, cur.Period)
	if !sg.Reliable() {
		c.logger().Info("keeping base amount, earnings source unavailable",
			zap.String("settlement_id", string(id)),
			zap.String("sales_status", string(sg.SalesSource.Status)),
			zap.String("appointments_status", string(sg.AppointmentsSource.Status)),
		)
		return cur, nil
	}

	_, s, err = c.mutate(ctx, id, BaseRecompute{Base: sg.SuggestedAmount})
	return s, err
}

// =============================================================================
// MARK PAID
// =============================================================================

// MarkPaid transitions pending -> paid. A second call fails with
// ErrAlreadyPaid.
func (c *Controller) MarkPaid(ctx context.Context, id SettlementID) (s Settlement, err error) {
	defer func() { c.done(OpMarkPaid, err, id) }()
	_, s, err = c.mutate(ctx, id, PaidTransition{At: c.now()})
	return s, err
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a settlement in any state. Administrative escape hatch.
func (c *Controller) Delete(ctx context.Context, id SettlementID) (err error) {
	defer func() { c.done(OpDelete, err, id) }()
	return c.Store.WithTx(ctx, func(tx Store) error {
		if _, err := tx.Get(ctx, id); err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// mutate applies m inside a transaction and returns the row before and after.
func (c *Controller) mutate(ctx context.Context, id SettlementID, m Mutation) (before, after Settlement, err error) {
	err = c.Store.WithTx(ctx, func(tx Store) error {
		cur, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		next, err := cur.Apply(m, c.now())
		if err != nil {
			return err
		}
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		before, after = cur, next
		return nil
	})
	if err != nil {
		return Settlement{}, Settlement{}, err
	}
	return before, after, nil
}

// pending loads id and rejects paid settlements before any aggregation.
func (c *Controller) pending(ctx context.Context, id SettlementID, op Operation) (Settlement, error) {
	cur, err := c.Store.Get(ctx, id)
	if err != nil {
		return Settlement{}, err
	}
	if cur.State != StatePending {
		return Settlement{}, &IllegalStateError{ID: id, State: cur.State, Operation: op}
	}
	return cur, nil
}

func (c *Controller) done(op Operation, err error, id SettlementID) {
	c.observer().OperationCompleted(op, err)
	if err == nil {
		c.logger().Info("settlement operation completed",
			zap.String("operation", string(op)), zap.String("settlement_id", string(id)))
		return
	}
	if IsClientError(err) || IsNotFound(err) || errors.Is(err, generic.ErrConcurrentModification) {
		c.logger().Info("settlement operation rejected",
			zap.String("operation", string(op)), zap.String("settlement_id", string(id)),
			zap.String("kind", string(KindOf(err))), zap.Error(err))
		return
	}
	c.logger().Error("settlement operation failed",
		zap.String("operation", string(op)), zap.String("settlement_id", string(id)), zap.Error(err))
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c *Controller) newID() SettlementID {
	if c.NewID != nil {
		return c.NewID()
	}
	return SettlementID(uuid.NewString())
}

func (c *Controller) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Controller) observer() Observer {
	if c.Observer == nil {
		return nopObserver{}
	}
	return c.Observer
}
