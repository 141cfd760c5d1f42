package settlement

import (
	"context"

	"github.com/warp/payout-engine/generic"
)

// PeriodValidator enforces at most one settlement per worker and exact
// period. Overlapping but unequal periods do not conflict.
type PeriodValidator struct {
	Store Store
}

// Check returns *DuplicatePeriodError if another settlement exists for the
// worker with exactly this period. excluding lets an update check itself
// without self-conflict; pass "" on create. Pure read.
func (v PeriodValidator) Check(ctx context.Context, workerID WorkerID, period generic.Period, excluding SettlementID) error {
	existing, err := v.Store.FindByPeriod(ctx, workerID, period)
	if err != nil {
		return err
	}
	for _, s := range existing {
		if excluding != "" && s.ID == excluding {
			continue
		}
		return &DuplicatePeriodError{WorkerID: workerID, Period: period, ExistingID: s.ID}
	}
	return nil
}
