package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/settlement"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := New(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func june() generic.Period {
	return generic.Period{Start: generic.MustParseDate("2024-06-01"), End: generic.MustParseDate("2024-06-15")}
}

func sampleSettlement(id string, period generic.Period) settlement.Settlement {
	created := time.Date(2024, time.June, 16, 9, 30, 0, 0, time.UTC)
	return settlement.Settlement{
		ID:                settlement.SettlementID(id),
		WorkerID:          "w-1",
		Period:            period,
		BaseAmount:        decimal.RequireFromString("123.45"),
		BonusAmount:       decimal.RequireFromString("10.05"),
		AppointmentsTotal: decimal.RequireFromString("246.90"),
		State:             settlement.StatePending,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
}

func TestStore_InsertAndGetRoundTripsMoney(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := sampleSettlement("a", june())

	require.NoError(t, store.Insert(ctx, s))
	got, err := store.Get(ctx, "a")

	require.NoError(t, err)
	assert.True(t, got.BaseAmount.Equal(s.BaseAmount))
	assert.True(t, got.BonusAmount.Equal(s.BonusAmount))
	assert.True(t, got.AppointmentsTotal.Equal(s.AppointmentsTotal))
	assert.True(t, got.PayableTotal().Equal(decimal.RequireFromString("133.50")))
	assert.True(t, got.Period.Equal(s.Period))
	assert.Equal(t, settlement.StatePending, got.State)
	assert.Nil(t, got.PaidAt)
	assert.True(t, got.CreatedAt.Equal(s.CreatedAt))
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, settlement.ErrNotFound)
}

func TestStore_CorruptTimestampIsAnError(t *testing.T) {
	// GIVEN: A row whose created_at was written by hand
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Insert(ctx, sampleSettlement("stl-1", june())))
	_, err := store.db.ExecContext(ctx, `UPDATE settlements SET created_at = 'yesterday' WHERE id = 'stl-1'`)
	require.NoError(t, err)

	// WHEN: Reading it back
	_, err = store.Get(ctx, "stl-1")

	// THEN: The scan fails instead of yielding a zero time
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")
	assert.NotErrorIs(t, err, settlement.ErrNotFound)
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, time.June, 16, 9, 30, 0, 0, time.UTC)

	got, err := parseTime(formatTime(want))
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	got, err = parseTime("2024-06-16T04:30:00-05:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(want))

	_, err = parseTime("")
	assert.Error(t, err)
}

func TestStore_UniqueIndexRejectsExactDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Insert(ctx, sampleSettlement("a", june())))

	err := store.Insert(ctx, sampleSettlement("b", june()))

	var dup *settlement.DuplicatePeriodError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, settlement.SettlementID("a"), dup.ExistingID)

	// Overlapping, not equal.
	overlap := generic.Period{Start: generic.MustParseDate("2024-06-10"), End: generic.MustParseDate("2024-06-20")}
	assert.NoError(t, store.Insert(ctx, sampleSettlement("c", overlap)))
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx settlement.Store) error {
		require.NoError(t, tx.Insert(ctx, sampleSettlement("a", june())))
		found, err := tx.FindByPeriod(ctx, "w-1", june())
		require.NoError(t, err)
		require.Len(t, found, 1)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, settlement.ErrNotFound)
}

func TestStore_UpdateOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	s := sampleSettlement("a", june())
	require.NoError(t, store.Insert(ctx, s))

	paidAt := s.CreatedAt.Add(2 * time.Hour)
	s.State = settlement.StatePaid
	s.PaidAt = &paidAt
	s.UpdatedAt = paidAt
	require.NoError(t, store.Update(ctx, s))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, settlement.StatePaid, got.State)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))

	s.BonusAmount = decimal.RequireFromString("1000")
	assert.ErrorIs(t, store.Update(ctx, s), generic.ErrConcurrentModification)
	assert.ErrorIs(t, store.Update(ctx, sampleSettlement("missing", june())), settlement.ErrNotFound)
}

func TestStore_ListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	may := generic.Period{Start: generic.MustParseDate("2024-05-01"), End: generic.MustParseDate("2024-05-31")}

	a := sampleSettlement("a", may)
	b := sampleSettlement("b", june())
	c := sampleSettlement("c", june())
	c.WorkerID = "w-2"
	c.CreatedAt = c.CreatedAt.Add(time.Second)
	for _, s := range []settlement.Settlement{a, b, c} {
		require.NoError(t, store.Insert(ctx, s))
	}

	all, err := store.List(ctx, settlement.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, settlement.SettlementID("c"), all[0].ID)
	assert.Equal(t, settlement.SettlementID("b"), all[1].ID)
	assert.Equal(t, settlement.SettlementID("a"), all[2].ID)

	w1 := settlement.WorkerID("w-1")
	p := june()
	filtered, err := store.List(ctx, settlement.Filter{WorkerID: &w1, Period: &p})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, settlement.SettlementID("b"), filtered[0].ID)

	paid := settlement.StatePaid
	none, err := store.List(ctx, settlement.Filter{State: &paid})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Insert(ctx, sampleSettlement("a", june())))

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Delete(ctx, "a"), settlement.ErrNotFound)
	assert.NoError(t, store.Insert(ctx, sampleSettlement("b", june())))
}

func TestStore_Ledgers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveWorker(ctx, settlement.Worker{ID: "w-1", FirstName: "Lucía", LastName: "Pérez", Email: "lucia@example.com"}))
	require.NoError(t, store.SaveAppointment(ctx, settlement.Appointment{
		ID: "a1", WorkerID: "w-1", Date: generic.MustParseDate("2024-06-15"), Time: "18:00",
		Price: decimal.RequireFromString("40.00"), Status: settlement.AppointmentCompleted,
	}))
	require.NoError(t, store.SaveAppointment(ctx, settlement.Appointment{
		ID: "a2", WorkerID: "w-1", Date: generic.MustParseDate("2024-06-16"),
		Price: decimal.RequireFromString("99.00"), Status: settlement.AppointmentCompleted,
	}))
	require.NoError(t, store.SaveSale(ctx, settlement.Sale{
		ID: "s1", WorkerID: "w-1", SoldAt: time.Date(2024, time.June, 15, 23, 30, 0, 0, time.UTC),
		Total: decimal.RequireFromString("100.00"), Status: settlement.SaleSettled,
	}))
	require.NoError(t, store.SaveSale(ctx, settlement.Sale{
		ID: "s2", WorkerID: "w-1", SoldAt: time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC),
		Total: decimal.RequireFromString("5.00"), Status: "cancelled",
	}))

	w, err := store.Worker(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, "Lucía Pérez", w.FullName())
	_, err = store.Worker(ctx, "ghost")
	assert.ErrorIs(t, err, settlement.ErrWorkerNotFound)

	appts, err := store.ListCompleted(ctx, "w-1", june())
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, "a1", appts[0].ID)
	assert.True(t, appts[0].Price.Equal(decimal.RequireFromString("40")))

	ledger := store.Sales()
	require.NotNil(t, ledger)
	sales, err := ledger.ListSettled(ctx, "w-1", june())
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "s1", sales[0].ID)
}

func TestStore_SalesCountByUTCDay(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	late := time.Date(2024, time.June, 15, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	require.NoError(t, store.SaveSale(ctx, settlement.Sale{
		ID: "s1", WorkerID: "w-1", SoldAt: late,
		Total: decimal.RequireFromString("30.00"), Status: settlement.SaleSettled,
	}))

	sales, err := store.Sales().ListSettled(ctx, "w-1", june())
	require.NoError(t, err)
	assert.Empty(t, sales)

	sales, err = store.Sales().ListSettled(ctx, "w-1", generic.Period{
		Start: generic.MustParseDate("2024-06-16"), End: generic.MustParseDate("2024-06-16"),
	})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "2024-06-16", sales[0].Date().String())
}

func TestStore_WithoutSalesTable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, WithSalesTable(false))

	assert.Nil(t, store.Sales())
	err := store.SaveSale(ctx, settlement.Sale{ID: "s1", WorkerID: "w-1"})
	assert.ErrorIs(t, err, settlement.ErrSourceUnavailable)

	// The aggregator reports the source as unavailable, not as zero sales.
	agg := settlement.NewAggregator(store, store.Sales(), nil)
	sg := agg.Compute(ctx, "w-1", june())
	assert.Equal(t, settlement.SourceUnavailable, sg.SalesSource.Status)
}

func TestStore_ControllerEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveWorker(ctx, settlement.Worker{ID: "w-1", FirstName: "Ana"}))
	require.NoError(t, store.SaveAppointment(ctx, settlement.Appointment{
		ID: "a1", WorkerID: "w-1", Date: generic.MustParseDate("2024-06-02"),
		Price: decimal.RequireFromString("60.00"), Status: settlement.AppointmentCompleted,
	}))

	ctrl := settlement.NewController(store, store, settlement.NewAggregator(store, store.Sales(), nil), nil)
	s, err := ctrl.Create(ctx, settlement.NewCreateInput("w-1", june()))
	require.NoError(t, err)
	assert.True(t, s.BaseAmount.Equal(decimal.RequireFromString("30.00")))

	_, err = ctrl.Create(ctx, settlement.NewCreateInput("w-1", june()))
	assert.ErrorIs(t, err, settlement.ErrDuplicatePeriod)

	_, err = ctrl.MarkPaid(ctx, s.ID)
	require.NoError(t, err)
	_, err = ctrl.MarkPaid(ctx, s.ID)
	assert.ErrorIs(t, err, settlement.ErrAlreadyPaid)
}
