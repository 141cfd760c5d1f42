package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/settlement"
)

// newTestStore connects to PG_DSN and wipes the tables. Tests are skipped
// when no database is configured.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	store, err := New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func june() generic.Period {
	return generic.Period{Start: generic.MustParseDate("2024-06-01"), End: generic.MustParseDate("2024-06-15")}
}

func TestPostgres_SettlementLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWorker(ctx, settlement.Worker{ID: "w-1", FirstName: "Ana", LastName: "Gómez"}))
	require.NoError(t, store.SaveAppointment(ctx, settlement.Appointment{
		ID: "a1", WorkerID: "w-1", Date: generic.MustParseDate("2024-06-15"),
		Price: decimal.RequireFromString("40.00"), Status: settlement.AppointmentCompleted,
	}))
	require.NoError(t, store.SaveSale(ctx, settlement.Sale{
		ID: "s1", WorkerID: "w-1", SoldAt: time.Date(2024, time.June, 2, 12, 0, 0, 0, time.UTC),
		Total: decimal.RequireFromString("100.00"), Status: settlement.SaleSettled,
	}))

	ctrl := settlement.NewController(store, store, settlement.NewAggregator(store, store.Sales(), nil), nil)

	s, err := ctrl.Create(ctx, settlement.NewCreateInput("w-1", june()))
	require.NoError(t, err)
	assert.True(t, s.BaseAmount.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, s.AppointmentsTotal.Equal(decimal.RequireFromString("40.00")))

	// The unique index catches the duplicate even when the validator is skipped.
	in := settlement.NewCreateInput("w-1", june())
	in.SkipPeriodCheck = true
	_, err = ctrl.Create(ctx, in)
	assert.ErrorIs(t, err, settlement.ErrDuplicatePeriod)

	paid, err := ctrl.MarkPaid(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)

	_, err = ctrl.Update(ctx, s.ID, settlement.UpdateInput{BonusAmount: &decimal.Zero})
	assert.ErrorIs(t, err, settlement.ErrIllegalState)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, settlement.StatePaid, got.State)
	assert.True(t, got.PayableTotal().Equal(decimal.RequireFromString("100.00")))
}

func TestPostgres_WithTxRollsBackOnPanic(t *testing.T) {
	// GIVEN: A transaction that inserts and then panics
	store := newTestStore(t)
	ctx := context.Background()
	s := settlement.Settlement{
		ID: "stl-panic", WorkerID: "w-1", Period: june(),
		BaseAmount: decimal.Zero, BonusAmount: decimal.Zero, AppointmentsTotal: decimal.Zero,
		State: settlement.StatePending, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}

	assert.Panics(t, func() {
		_ = store.WithTx(ctx, func(tx settlement.Store) error {
			require.NoError(t, tx.Insert(ctx, s))
			panic("boom")
		})
	})

	// THEN: The insert is gone and the connection went back to the pool
	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, settlement.ErrNotFound)
	assert.Zero(t, store.pool.Stat().AcquiredConns())
}

func TestPostgres_ListOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

	may := generic.Period{Start: generic.MustParseDate("2024-05-01"), End: generic.MustParseDate("2024-05-31")}
	for i, p := range []generic.Period{may, june()} {
		require.NoError(t, store.Insert(ctx, settlement.Settlement{
			ID: settlement.SettlementID([]string{"old", "new"}[i]), WorkerID: "w-1", Period: p,
			BaseAmount: decimal.Zero, BonusAmount: decimal.Zero, AppointmentsTotal: decimal.Zero,
			State: settlement.StatePending, CreatedAt: created, UpdatedAt: created,
		}))
	}

	all, err := store.List(ctx, settlement.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, settlement.SettlementID("new"), all[0].ID)
}
