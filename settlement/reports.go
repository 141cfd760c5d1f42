package settlement

import (
	"context"
	"errors"

	"github.com/warp/payout-engine/generic"
)

// =============================================================================
// REPORTING VIEWS - Read-only, never mutate
// =============================================================================

// Reports builds read-only projections over settlements and live
// aggregation previews.
type Reports struct {
	Store      Store
	Workers    WorkerDirectory
	Aggregator *Aggregator
}

// View is a settlement with its worker's display attributes.
type View struct {
	Settlement
	Worker Worker
}

// Preview is a suggestion for a settlement that does not exist yet.
type Preview struct {
	Worker Worker
	Suggestion
}

// AppointmentsPreview is the appointments-only preview.
type AppointmentsPreview struct {
	Worker Worker
	Period generic.Period
	AppointmentsResult
}

// Breakdown itemizes the records contributing to a settlement's period.
// Totals are re-derived now and may differ from the cached ones.
type Breakdown struct {
	View
	Suggestion Suggestion
}

// PreviewFor runs the Aggregator without persisting anything.
func (r *Reports) PreviewFor(ctx context.Context, workerID WorkerID, period generic.Period) (Preview, error) {
	if err := period.Validate(); err != nil {
		return Preview{}, err
	}
	w, err := r.Workers.Worker(ctx, workerID)
	if err != nil {
		return Preview{}, err
	}
	return Preview{Worker: w, Suggestion: r.Aggregator.Compute(ctx, workerID, period)}, nil
}

// PreviewAppointments is PreviewFor restricted to completed appointments.
func (r *Reports) PreviewAppointments(ctx context.Context, workerID WorkerID, period generic.Period) (AppointmentsPreview, error) {
	if err := period.Validate(); err != nil {
		return AppointmentsPreview{}, err
	}
	w, err := r.Workers.Worker(ctx, workerID)
	if err != nil {
		return AppointmentsPreview{}, err
	}
	res := r.Aggregator.ComputeAppointments(ctx, workerID, period)
	return AppointmentsPreview{Worker: w, Period: period, AppointmentsResult: res}, nil
}

// Get returns one settlement with its worker.
func (r *Reports) Get(ctx context.Context, id SettlementID) (View, error) {
	s, err := r.Store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	w, err := r.worker(ctx, s.WorkerID)
	if err != nil {
		return View{}, err
	}
	return View{Settlement: s, Worker: w}, nil
}

// List returns settlements matching filter, newest period first.
func (r *Reports) List(ctx context.Context, filter Filter) ([]Settlement, error) {
	if filter.Period != nil {
		if err := filter.Period.Validate(); err != nil {
			return nil, err
		}
	}
	return r.Store.List(ctx, filter)
}

// ListPending returns every pending settlement.
func (r *Reports) ListPending(ctx context.Context) ([]Settlement, error) {
	st := StatePending
	return r.Store.List(ctx, Filter{State: &st})
}

// ListForWorker returns every settlement of one worker.
func (r *Reports) ListForWorker(ctx context.Context, workerID WorkerID) ([]Settlement, error) {
	return r.Store.List(ctx, Filter{WorkerID: &workerID})
}

// Breakdown joins each contributing appointment and sale for the period of
// an existing settlement.
func (r *Reports) Breakdown(ctx context.Context, id SettlementID) (Breakdown, error) {
	v, err := r.Get(ctx, id)
	if err != nil {
		return Breakdown{}, err
	}
	sg := r.Aggregator.Compute(ctx, v.WorkerID, v.Period)
	return Breakdown{View: v, Suggestion: sg}, nil
}

// worker resolves display attributes; a worker removed from the directory
// still shows its settlements.
func (r *Reports) worker(ctx context.Context, id WorkerID) (Worker, error) {
	w, err := r.Workers.Worker(ctx, id)
	if errors.Is(err, ErrWorkerNotFound) {
		return Worker{ID: id}, nil
	}
	return w, err
}
