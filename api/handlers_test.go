/*
handlers_test.go - HTTP tests for the settlement API

Tests for:
- Create / update / recompute / pay / delete through the router
- Error kind to status mapping
- Previews, listings, breakdown and exports
- Health, metrics and security headers
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/observability"
	"github.com/warp/payout-engine/settlement"
	"github.com/warp/payout-engine/settlement/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	handler *Handler
	router  http.Handler
	mem     *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	agg := settlement.NewAggregator(mem, mem, nil)
	ctrl := settlement.NewController(mem, mem, agg, nil)
	ctrl.Now = func() time.Time { return time.Date(2024, time.June, 16, 9, 0, 0, 0, time.UTC) }
	reports := &settlement.Reports{Store: mem, Workers: mem, Aggregator: agg}
	metrics := observability.NewMetrics()
	agg.Observer = metrics
	ctrl.Observer = metrics

	h := NewHandler(ctrl, reports, nil)
	h.Seeder = mem
	router := NewRouter(h, RouterOptions{Metrics: metrics})
	return &testServer{handler: h, router: router, mem: mem}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// seedAna stores a worker with 100.00 of settled sales and 100.00 of
// completed appointments in the first half of June 2024.
func (ts *testServer) seedAna(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ts.mem.SaveWorker(ctx, settlement.Worker{ID: "w-1", FirstName: "Ana", LastName: "Gómez", Email: "ana@example.com"}))
	require.NoError(t, ts.mem.SaveAppointment(ctx, appointment("a1", "w-1", 3, "10:00", "Marta", "Manicura", "40.00")))
	require.NoError(t, ts.mem.SaveAppointment(ctx, appointment("a2", "w-1", 5, "11:00", "Sofía", "Pedicura", "60.00")))
	require.NoError(t, ts.mem.SaveSale(ctx, sale("s1", "w-1", 3, "Marta", "Manicura", "100.00", "card")))
}

func createBody(extra map[string]any) map[string]any {
	body := map[string]any{
		"worker_id":    "w-1",
		"period_start": "2024-06-01",
		"period_end":   "2024-06-15",
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func (ts *testServer) create(t *testing.T, extra map[string]any) SettlementDTO {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/settlements", createBody(extra))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[SettlementDTO](t, rec)
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateSettlement_FromSales(t *testing.T) {
	// GIVEN: A worker with sales and appointments in the period
	ts := newTestServer(t)
	ts.seedAna(t)

	// WHEN: Creating without amounts
	s := ts.create(t, nil)

	// THEN: Base is the sales total and the appointments total is cached
	assert.Equal(t, "100.00", s.BaseAmount)
	assert.Equal(t, "0.00", s.BonusAmount)
	assert.Equal(t, "100.00", s.PayableTotal)
	assert.Equal(t, "100.00", s.AppointmentsTotal)
	assert.Equal(t, "pending", s.State)
	assert.Nil(t, s.PaidAt)
	assert.Equal(t, "2024-06-01", s.PeriodStart)
	assert.Equal(t, "2024-06-16T09:00:00Z", s.CreatedAt)
}

func TestCreateSettlement_ExplicitAmountsAndAutoComputeOff(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	s := ts.create(t, map[string]any{"auto_compute": false, "bonus_amount": "15.5"})

	assert.Equal(t, "0.00", s.BaseAmount)
	assert.Equal(t, "15.50", s.BonusAmount)
	assert.Equal(t, "15.50", s.PayableTotal)
}

func TestCreateSettlement_DuplicatePeriod(t *testing.T) {
	// GIVEN: An existing settlement for the period
	ts := newTestServer(t)
	ts.seedAna(t)
	first := ts.create(t, nil)

	// WHEN: Creating the same period again
	rec := ts.do(t, http.MethodPost, "/api/settlements", createBody(nil))

	// THEN: 409 naming the existing settlement
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "duplicate_period", resp.Kind)
	assert.Contains(t, resp.Details, first.ID)

	// AND: skip_period_check still hits the store constraint
	rec = ts.do(t, http.MethodPost, "/api/settlements", createBody(map[string]any{"skip_period_check": true}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSettlement_OverlappingPeriodAllowed(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	ts.create(t, nil)

	s := ts.create(t, map[string]any{"period_start": "2024-06-10", "period_end": "2024-06-20"})

	assert.Equal(t, "2024-06-10", s.PeriodStart)
}

func TestCreateSettlement_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"negative base", createBody(map[string]any{"base_amount": "-1"}), http.StatusBadRequest, "invalid_amount"},
		{"negative bonus", createBody(map[string]any{"bonus_amount": -0.01}), http.StatusBadRequest, "invalid_amount"},
		{"sub-cent amounts", createBody(map[string]any{"base_amount": "10.005", "bonus_amount": "0.005"}), http.StatusBadRequest, "invalid_amount"},
		{"end before start", createBody(map[string]any{"period_start": "2024-06-15", "period_end": "2024-06-01"}), http.StatusBadRequest, "invalid_period"},
		{"missing worker", createBody(map[string]any{"worker_id": ""}), http.StatusBadRequest, "validation"},
		{"malformed date", createBody(map[string]any{"period_end": "15/06/2024"}), http.StatusBadRequest, "validation"},
		{"unknown worker", createBody(map[string]any{"worker_id": "ghost"}), http.StatusNotFound, "worker_not_found"},
		{"malformed json", "{", http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/settlements", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decodeBody[ErrorResponse](t, rec).Kind)
		})
	}

	all, err := ts.mem.List(context.Background(), settlement.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all, "no settlement persisted")
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestSettlementLifecycle(t *testing.T) {
	// GIVEN: A pending settlement
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, nil)
	path := "/api/settlements/" + s.ID

	// WHEN: Updating the bonus
	rec := ts.do(t, http.MethodPatch, path, map[string]any{"bonus_amount": "20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[SettlementDTO](t, rec)
	assert.Equal(t, "100.00", updated.BaseAmount)
	assert.Equal(t, "120.00", updated.PayableTotal)

	// AND: Paying it
	rec = ts.do(t, http.MethodPost, path+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	paid := decodeBody[SettlementDTO](t, rec)
	assert.Equal(t, "paid", paid.State)
	require.NotNil(t, paid.PaidAt)

	// THEN: A second payment is rejected as already paid
	rec = ts.do(t, http.MethodPost, path+"/pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_paid", decodeBody[ErrorResponse](t, rec).Kind)

	// AND: Every other mutation is an illegal state
	for _, req := range []struct{ method, path string }{
		{http.MethodPatch, path},
		{http.MethodPost, path + "/recompute-appointments"},
		{http.MethodPost, path + "/recompute-sales"},
	} {
		var body any
		if req.method == http.MethodPatch {
			body = map[string]any{"base_amount": "1"}
		}
		rec = ts.do(t, req.method, req.path, body)
		assert.Equal(t, http.StatusConflict, rec.Code, req.path)
		assert.Equal(t, "illegal_state", decodeBody[ErrorResponse](t, rec).Kind)
	}

	// AND: The stored amounts are unchanged
	rec = ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120.00", decodeBody[SettlementDTO](t, rec).PayableTotal)
}

func TestUpdateSettlement_NegativeAmountRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, nil)

	rec := ts.do(t, http.MethodPatch, "/api/settlements/"+s.ID, map[string]any{"base_amount": "-5"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestUpdateSettlement_SubCentAmountRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, nil)

	rec := ts.do(t, http.MethodPatch, "/api/settlements/"+s.ID, map[string]any{"bonus_amount": 0.001})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", decodeBody[ErrorResponse](t, rec).Kind)

	rec = ts.do(t, http.MethodGet, "/api/settlements/"+s.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, s.PayableTotal, decodeBody[SettlementDTO](t, rec).PayableTotal)
}

func TestRecomputeAppointments_ReportsDelta(t *testing.T) {
	// GIVEN: A settlement and a late-finalized appointment
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, nil)
	require.NoError(t, ts.mem.SaveAppointment(context.Background(), appointment("a3", "w-1", 14, "17:00", "Eva", "Manicura", "25.50")))

	// WHEN: Recomputing
	rec := ts.do(t, http.MethodPost, "/api/settlements/"+s.ID+"/recompute-appointments", nil)

	// THEN: Old, new and difference are reported
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decodeBody[AppointmentsDeltaDTO](t, rec)
	assert.Equal(t, "100.00", d.OldValue)
	assert.Equal(t, "125.50", d.NewValue)
	assert.Equal(t, "25.50", d.Difference)
	assert.False(t, d.Degraded)
	assert.Equal(t, "125.50", d.Settlement.AppointmentsTotal)
	assert.Equal(t, "100.00", d.Settlement.BaseAmount, "base untouched")
}

func TestRecomputeSales_AppliesFallback(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, map[string]any{"base_amount": "10"})
	require.Equal(t, "10.00", s.BaseAmount)

	rec := ts.do(t, http.MethodPost, "/api/settlements/"+s.ID+"/recompute-sales", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "100.00", decodeBody[SettlementDTO](t, rec).BaseAmount)
}

func TestUnknownSettlement_NotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/settlements/missing"},
		{http.MethodPost, "/api/settlements/missing/pay"},
		{http.MethodPost, "/api/settlements/missing/recompute-sales"},
		{http.MethodGet, "/api/settlements/missing/breakdown"},
		{http.MethodDelete, "/api/admin/settlements/missing"},
	} {
		rec := ts.do(t, req.method, req.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.path)
	}
}

func TestDeleteSettlement_AnyState(t *testing.T) {
	// GIVEN: A paid settlement
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, nil)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/settlements/"+s.ID+"/pay", nil).Code)

	// WHEN: Deleting through the admin route
	rec := ts.do(t, http.MethodDelete, "/api/admin/settlements/"+s.ID, nil)

	// THEN: It is gone and the period is free again
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/settlements/"+s.ID, nil).Code)
	ts.create(t, nil)
}

// =============================================================================
// PREVIEWS AND REPORTS
// =============================================================================

func TestPreview_DoesNotPersist(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	rec := ts.do(t, http.MethodPost, "/api/settlements/preview", createBody(nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decodeBody[PreviewDTO](t, rec)
	assert.Equal(t, "Ana Gómez", p.Worker.FullName)
	assert.Equal(t, "100.00", p.SalesTotal)
	assert.Equal(t, 1, p.SalesCount)
	assert.Equal(t, "100.00", p.SalesAverage)
	assert.Equal(t, "100.00", p.AppointmentsTotal)
	assert.Equal(t, "50.00", p.CommissionFromAppointments)
	assert.Equal(t, "100.00", p.SuggestedAmount)
	assert.Equal(t, "sales", p.Basis)
	assert.Equal(t, "ok", p.Sources["sales"].Status)
	assert.Len(t, p.Appointments, 2)
	assert.Len(t, p.Sales, 1)

	all, err := ts.mem.List(context.Background(), settlement.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPreviewAppointments(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	rec := ts.do(t, http.MethodPost, "/api/settlements/preview/appointments", createBody(nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decodeBody[AppointmentsPreviewDTO](t, rec)
	assert.Equal(t, "100.00", p.AppointmentsTotal)
	assert.Equal(t, 2, p.AppointmentsCount)
	assert.Equal(t, "0.5", p.CommissionRate)
	assert.Equal(t, "50.00", p.Commission)
	assert.Equal(t, "ok", p.Source.Status)
}

func TestPreview_UnknownWorkerAndBadPeriod(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/settlements/preview", createBody(map[string]any{"worker_id": "ghost"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/settlements/preview", createBody(map[string]any{"period_start": "2024-07-01"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_period", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestListSettlements_Filters(t *testing.T) {
	// GIVEN: Two settlements for w-1 and one for w-2, one of them paid
	ts := newTestServer(t)
	ts.seedAna(t)
	require.NoError(t, ts.mem.SaveWorker(context.Background(), settlement.Worker{ID: "w-2", FirstName: "Lucía"}))
	june := ts.create(t, nil)
	may := ts.create(t, map[string]any{"period_start": "2024-05-01", "period_end": "2024-05-31"})
	other := ts.create(t, map[string]any{"worker_id": "w-2"})
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/settlements/"+may.ID+"/pay", nil).Code)

	ids := func(rec *httptest.ResponseRecorder) []string {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, s := range decodeBody[[]SettlementDTO](t, rec) {
			out = append(out, s.ID)
		}
		return out
	}

	// THEN: Newest period first; filters narrow the result
	all := ids(ts.do(t, http.MethodGet, "/api/settlements", nil))
	require.Len(t, all, 3)
	assert.Equal(t, may.ID, all[2])

	assert.ElementsMatch(t, []string{june.ID, may.ID}, ids(ts.do(t, http.MethodGet, "/api/settlements?worker_id=w-1", nil)))
	assert.Equal(t, []string{may.ID}, ids(ts.do(t, http.MethodGet, "/api/settlements?state=paid", nil)))
	assert.ElementsMatch(t, []string{june.ID, other.ID}, ids(ts.do(t, http.MethodGet, "/api/settlements/pending", nil)))
	assert.ElementsMatch(t, []string{june.ID, other.ID},
		ids(ts.do(t, http.MethodGet, "/api/settlements?period_start=2024-06-01&period_end=2024-06-15", nil)))
	assert.ElementsMatch(t, []string{june.ID, may.ID}, ids(ts.do(t, http.MethodGet, "/api/workers/w-1/settlements", nil)))

	// AND: Bad filters are rejected
	rec := ts.do(t, http.MethodGet, "/api/settlements?period_start=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/settlements?state=cancelled", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestListSettlements_EmptyIsArray(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/settlements", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetSettlement_IncludesWorker(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/settlements/"+s.ID, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[SettlementDTO](t, rec)
	require.NotNil(t, got.Worker)
	assert.Equal(t, "Ana Gómez", got.Worker.FullName)
	assert.Equal(t, "ana@example.com", got.Worker.Email)
}

func TestBreakdownAndExport(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	s := ts.create(t, nil)
	path := "/api/settlements/" + s.ID + "/breakdown"

	rec := ts.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b := decodeBody[BreakdownDTO](t, rec)
	assert.Equal(t, s.ID, b.Settlement.ID)
	assert.Len(t, b.Suggestion.Appointments, 2)
	assert.Len(t, b.Suggestion.Sales, 1)

	rec = ts.do(t, http.MethodGet, path+"/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "settlement-w-1-2024-06-01_2024-06-15.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	rec = ts.do(t, http.MethodGet, path+"/export?format=pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = ts.do(t, http.MethodGet, path+"/export?format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.handler.Health = failingPinger{}
	rec = ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)
	ts.create(t, nil)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `payouts_settlement_operations_total{operation="create",outcome="ok"} 1`)
	assert.Contains(t, body, `payouts_http_requests_total{method="POST"`)
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRateLimit(t *testing.T) {
	mem := store.NewMemory()
	agg := settlement.NewAggregator(mem, mem, nil)
	h := NewHandler(settlement.NewController(mem, mem, agg, nil), &settlement.Reports{Store: mem, Workers: mem, Aggregator: agg}, nil)
	router := NewRouter(h, RouterOptions{RateLimitPerMinute: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{settlement.ErrDuplicatePeriod, http.StatusConflict},
		{settlement.ErrAlreadyPaid, http.StatusConflict},
		{settlement.ErrIllegalState, http.StatusConflict},
		{generic.ErrConcurrentModification, http.StatusConflict},
		{settlement.ErrInvalidAmount, http.StatusBadRequest},
		{generic.ErrInvalidPeriod, http.StatusBadRequest},
		{settlement.ErrWorkerNotFound, http.StatusNotFound},
		{settlement.ErrNotFound, http.StatusNotFound},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(settlement.KindOf(tt.err)), tt.err.Error())
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	ts := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)

	ts.handler.writeDomainError(rec, req, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "password"))
}

func TestCreateSettlement_AmountsAcceptNumbersAndStrings(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAna(t)

	s := ts.create(t, map[string]any{"base_amount": 33.5, "bonus_amount": "0.10"})

	assert.Equal(t, "33.50", s.BaseAmount)
	assert.Equal(t, "33.60", s.PayableTotal)
}
