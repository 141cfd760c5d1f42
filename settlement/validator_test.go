package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/settlement"
	"github.com/warp/payout-engine/settlement/store"
)

// =============================================================================
// PERIOD VALIDATOR
// =============================================================================

func seedSettlement(t *testing.T, m *store.Memory, id settlement.SettlementID, workerID settlement.WorkerID, period generic.Period) {
	t.Helper()
	now := time.Date(2024, time.June, 16, 9, 0, 0, 0, time.UTC)
	require.NoError(t, m.Insert(context.Background(), settlement.Settlement{
		ID:                id,
		WorkerID:          workerID,
		Period:            period,
		BaseAmount:        dec("10.00"),
		BonusAmount:       dec("0"),
		AppointmentsTotal: dec("0"),
		State:             settlement.StatePending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}))
}

func TestPeriodValidator_Check(t *testing.T) {
	// GIVEN: stl-1 covers the first half of June for w-1
	m := store.NewMemory()
	seedSettlement(t, m, "stl-1", worker, firstHalfOfJune())
	v := settlement.PeriodValidator{Store: m}

	overlapping := generic.Period{Start: generic.MustParseDate("2024-06-10"), End: generic.MustParseDate("2024-06-20")}

	tests := []struct {
		name      string
		workerID  settlement.WorkerID
		period    generic.Period
		excluding settlement.SettlementID
		conflict  bool
	}{
		{"same range on create", worker, firstHalfOfJune(), "", true},
		{"same range excluding itself", worker, firstHalfOfJune(), "stl-1", false},
		{"same range excluding another id", worker, firstHalfOfJune(), "stl-2", true},
		{"overlapping range", worker, overlapping, "", false},
		{"other worker same range", "w-2", firstHalfOfJune(), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// WHEN: Checking the candidate period
			err := v.Check(context.Background(), tt.workerID, tt.period, tt.excluding)

			// THEN: Only an exact match with a different settlement conflicts
			if !tt.conflict {
				assert.NoError(t, err)
				return
			}
			var dup *settlement.DuplicatePeriodError
			require.ErrorAs(t, err, &dup)
			assert.ErrorIs(t, err, settlement.ErrDuplicatePeriod)
			assert.Equal(t, settlement.SettlementID("stl-1"), dup.ExistingID)
			assert.Equal(t, tt.workerID, dup.WorkerID)
			assert.True(t, dup.Period.Equal(tt.period))
		})
	}
}

func TestPeriodValidator_IsPureRead(t *testing.T) {
	m := store.NewMemory()
	seedSettlement(t, m, "stl-1", worker, firstHalfOfJune())
	before, err := m.List(context.Background(), settlement.Filter{})
	require.NoError(t, err)

	_ = settlement.PeriodValidator{Store: m}.Check(context.Background(), worker, firstHalfOfJune(), "")

	after, err := m.List(context.Background(), settlement.Filter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
