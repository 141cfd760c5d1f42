/*
aggregator.go - Earnings Aggregator

PURPOSE:
  Reduces a worker's completed appointments and settled sales in a period
  to a suggested payable amount.

ALGORITHM:
  1. sales_total / sales_count from the SalesLedger (settled sales)
  2. appointments_total / appointments_count from the AppointmentLedger
  3. commission = appointments_total * CommissionRate (default 0.5)
  4. suggested = sales_total if sales_total > 0, else commission
     The two figures are never summed.

DEGRADATION:
  A source that fails or is not deployed contributes zero. That decision is
  made in one place (absorb) and is logged and counted there. Compute never
  returns an error; the per-source status tells the caller what was missing.

CONCURRENCY:
  Both ledgers are queried concurrently with errgroup. Neither query takes
  locks, and both are bounded by the period.

SEE ALSO:
  - lifecycle.go: Uses Compute on create and recompute
  - reports.go: Uses Compute for previews and breakdowns
*/
package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/generic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCommissionRate is the share of appointment revenue paid to the
// worker when the period has no sales.
var DefaultCommissionRate = decimal.RequireFromString("0.5")

// =============================================================================
// SOURCE STATUS
// =============================================================================

type SourceName string

const (
	SourceAppointments SourceName = "appointments"
	SourceSales        SourceName = "sales"
)

type SourceStatus string

const (
	SourceOK          SourceStatus = "ok"
	SourceUnavailable SourceStatus = "unavailable" // not deployed
	SourceFailed      SourceStatus = "failed"      // query error
)

// SourceReport says whether a source contributed and, if not, why.
type SourceReport struct {
	Status SourceStatus
	Note   string
}

func (r SourceReport) OK() bool { return r.Status == SourceOK }

// Basis names the figure the suggestion was taken from.
type Basis string

const (
	BasisSales                  Basis = "sales"
	BasisAppointmentsCommission Basis = "appointments_commission"
)

// =============================================================================
// SUGGESTION
// =============================================================================

// Suggestion is the Aggregator's result for one worker and period.
type Suggestion struct {
	WorkerID WorkerID
	Period   generic.Period

	SalesTotal   decimal.Decimal
	SalesCount   int
	SalesAverage decimal.Decimal

	AppointmentsTotal decimal.Decimal
	AppointmentsCount int

	CommissionRate             decimal.Decimal
	CommissionFromAppointments decimal.Decimal

	SuggestedAmount decimal.Decimal
	Basis           Basis

	SalesSource        SourceReport
	AppointmentsSource SourceReport

	Sales        []Sale
	Appointments []Appointment
}

// Degraded reports whether any source was missing from the computation.
func (s Suggestion) Degraded() bool {
	return !s.SalesSource.OK() || !s.AppointmentsSource.OK()
}

// Reliable reports whether the source that produced SuggestedAmount, and
// every source that decided the basis, contributed.
func (s Suggestion) Reliable() bool {
	if !s.SalesSource.OK() {
		return false
	}
	return s.Basis == BasisSales || s.AppointmentsSource.OK()
}

// =============================================================================
// AGGREGATOR
// =============================================================================

type Aggregator struct {
	Appointments AppointmentLedger
	// Sales is nil in deployments without a point-of-sale module.
	Sales SalesLedger

	// CommissionRate is the single commission parameter. The zero value
	// means 0%; use NewAggregator for the default.
	CommissionRate decimal.Decimal
	Logger         *zap.Logger
	Observer       Observer
}

// NewAggregator builds an Aggregator with the default commission rate.
// sales may be nil.
func NewAggregator(appointments AppointmentLedger, sales SalesLedger, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		Appointments:   appointments,
		Sales:          sales,
		CommissionRate: DefaultCommissionRate,
		Logger:         logger,
	}
}

// Compute runs both sources and applies the fallback policy.
func (a *Aggregator) Compute(ctx context.Context, workerID WorkerID, period generic.Period) Suggestion {
	sg := Suggestion{
		WorkerID:       workerID,
		Period:         period,
		CommissionRate: a.rate(),
	}

	var (
		sales    []Sale
		salesErr error
		appts    []Appointment
		apptsErr error
		g        errgroup.Group
	)
	g.Go(func() error {
		sales, salesErr = a.listSales(ctx, workerID, period)
		return nil
	})
	g.Go(func() error {
		appts, apptsErr = a.listAppointments(ctx, workerID, period)
		return nil
	})
	_ = g.Wait()

	sg.SalesSource = a.absorb(workerID, period, SourceSales, salesErr)
	if sg.SalesSource.OK() {
		sg.Sales = sales
		sg.SalesTotal, sg.SalesCount = sumSales(sales)
	} else {
		sg.SalesTotal = decimal.Zero
	}
	if sg.SalesCount > 0 {
		sg.SalesAverage = sg.SalesTotal.Div(decimal.NewFromInt(int64(sg.SalesCount))).Round(2)
	}

	sg.AppointmentsSource = a.absorb(workerID, period, SourceAppointments, apptsErr)
	if sg.AppointmentsSource.OK() {
		sg.Appointments = appts
		sg.AppointmentsTotal, sg.AppointmentsCount = sumAppointments(appts)
	} else {
		sg.AppointmentsTotal = decimal.Zero
	}
	sg.CommissionFromAppointments = a.Commission(sg.AppointmentsTotal)

	if sg.SalesTotal.IsPositive() {
		sg.SuggestedAmount = sg.SalesTotal
		sg.Basis = BasisSales
	} else {
		sg.SuggestedAmount = sg.CommissionFromAppointments
		sg.Basis = BasisAppointmentsCommission
	}
	return sg
}

// AppointmentsResult is the appointments-only half of a Suggestion.
type AppointmentsResult struct {
	Total        decimal.Decimal
	Count        int
	Commission   decimal.Decimal
	Appointments []Appointment
	Source       SourceReport
}

// ComputeAppointments queries only the appointment ledger.
func (a *Aggregator) ComputeAppointments(ctx context.Context, workerID WorkerID, period generic.Period) AppointmentsResult {
	appts, err := a.listAppointments(ctx, workerID, period)
	res := AppointmentsResult{Source: a.absorb(workerID, period, SourceAppointments, err), Total: decimal.Zero}
	if res.Source.OK() {
		res.Appointments = appts
		res.Total, res.Count = sumAppointments(appts)
	}
	res.Commission = a.Commission(res.Total)
	return res
}

// Commission applies the commission rate, rounded half away from zero to
// cents. For odd-cent totals the result differs from the exact product:
// 33.33 at 0.5 gives 16.67.
func (a *Aggregator) Commission(appointmentsTotal decimal.Decimal) decimal.Decimal {
	return appointmentsTotal.Mul(a.rate()).Round(2)
}

func (a *Aggregator) rate() decimal.Decimal {
	return a.CommissionRate
}

func (a *Aggregator) listSales(ctx context.Context, workerID WorkerID, period generic.Period) ([]Sale, error) {
	if a.Sales == nil {
		return nil, fmt.Errorf("%w: sales ledger not configured", ErrSourceUnavailable)
	}
	return a.Sales.ListSettled(ctx, workerID, period)
}

func (a *Aggregator) listAppointments(ctx context.Context, workerID WorkerID, period generic.Period) ([]Appointment, error) {
	if a.Appointments == nil {
		return nil, fmt.Errorf("%w: appointment ledger not configured", ErrSourceUnavailable)
	}
	return a.Appointments.ListCompleted(ctx, workerID, period)
}

// absorb is the single place where a source failure becomes a zero
// contribution.
func (a *Aggregator) absorb(workerID WorkerID, period generic.Period, source SourceName, err error) SourceReport {
	if err == nil {
		return SourceReport{Status: SourceOK}
	}
	status := SourceFailed
	if errors.Is(err, ErrSourceUnavailable) {
		status = SourceUnavailable
	}
	a.logger().Warn("earnings source degraded, counting as zero",
		zap.String("worker_id", string(workerID)),
		zap.Stringer("period", period),
		zap.String("source", string(source)),
		zap.String("status", string(status)),
		zap.Error(err),
	)
	a.observer().SourceDegraded(source, status)
	return SourceReport{Status: status, Note: err.Error()}
}

func (a *Aggregator) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func (a *Aggregator) observer() Observer {
	if a.Observer == nil {
		return nopObserver{}
	}
	return a.Observer
}

func sumSales(sales []Sale) (decimal.Decimal, int) {
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.Total)
	}
	return total.Round(2), len(sales)
}

func sumAppointments(appts []Appointment) (decimal.Decimal, int) {
	total := decimal.Zero
	for _, a := range appts {
		total = total.Add(a.Price)
	}
	return total.Round(2), len(appts)
}
