/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built salon scenarios that populate the store with workers,
	appointments and sales, then create settlements through the Controller
	so every rule the API enforces also applies to demo data.

AVAILABLE SCENARIOS:

	sales-first:      Settled sales drive the suggested amount
	commission-only:  No sales, appointments pay out at the commission rate
	paid-history:     A paid fortnight followed by a pending one
	noisy-ledgers:    Cancelled appointments and unpaid sales are ignored

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Save workers
 3. Save appointments and sales
 4. Create settlements via the Controller
 5. Optionally mark some paid

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "sales-first"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.
	When the store has no sales table, sales rows are skipped.

SEE ALSO:
  - handlers.go: Handler
  - settlement/lifecycle.go: Controller
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/settlement"
)

// Seeder writes the external facts scenarios need. Every store
// implementation provides it.
type Seeder interface {
	SaveWorker(ctx context.Context, w settlement.Worker) error
	SaveAppointment(ctx context.Context, a settlement.Appointment) error
	SaveSale(ctx context.Context, s settlement.Sale) error
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sales-first",
		Name:        "Sales First",
		Description: "Two manicurists with settled sales; the suggestion is the sales total",
	},
	{
		ID:          "commission-only",
		Name:        "Commission Only",
		Description: "No point-of-sale data; the suggestion is 50% of appointment revenue",
	},
	{
		ID:          "paid-history",
		Name:        "Paid History",
		Description: "First fortnight paid, second fortnight pending",
	},
	{
		ID:          "noisy-ledgers",
		Name:        "Noisy Ledgers",
		Description: "Cancelled appointments and unpaid sales that must not count",
	},
}

var scenarioLoaders = map[string]func(*Handler, context.Context) error{
	"sales-first":     (*Handler).loadSalesFirstScenario,
	"commission-only": (*Handler).loadCommissionOnlyScenario,
	"paid-history":    (*Handler).loadPaidHistoryScenario,
	"noisy-ledgers":   (*Handler).loadNoisyLedgersScenario,
}

// Scenario dates are fixed so the demo figures are reproducible.
var (
	firstFortnight  = generic.Period{Start: generic.NewTimePoint(2024, time.June, 1), End: generic.NewTimePoint(2024, time.June, 15)}
	secondFortnight = generic.Period{Start: generic.NewTimePoint(2024, time.June, 16), End: generic.NewTimePoint(2024, time.June, 30)}
)

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Seeder == nil {
		writeError(w, http.StatusNotFound, string(settlement.KindNotFound), "Scenarios are disabled", nil)
		return
	}
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, kindValidation, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Seeder.Reset(ctx); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("reset: %w", err))
		return
	}
	if err := load(h, ctx); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}
	h.currentScenario = req.ScenarioID
	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// ResetData clears every settlement and seeded fact.
// POST /api/scenarios/reset
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	if h.Seeder == nil {
		writeError(w, http.StatusNotFound, string(settlement.KindNotFound), "Scenarios are disabled", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Seeder.Reset(r.Context()); err != nil {
		h.writeDomainError(w, r, fmt.Errorf("reset: %w", err))
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadSalesFirstScenario(ctx context.Context) error {
	workers := []settlement.Worker{
		{ID: "w-ana", FirstName: "Ana", LastName: "Gómez", Email: "ana@salon.example"},
		{ID: "w-lucia", FirstName: "Lucía", LastName: "Pérez", Email: "lucia@salon.example"},
	}
	if err := h.seedWorkers(ctx, workers); err != nil {
		return err
	}

	seed := seedBatch{
		appointments: []settlement.Appointment{
			appointment("ap-1", "w-ana", 3, "10:00", "Marta Ruiz", "Manicura semipermanente", "35.00"),
			appointment("ap-2", "w-ana", 7, "12:30", "Sofía León", "Pedicura spa", "45.00"),
			appointment("ap-3", "w-lucia", 4, "16:00", "Carla Vidal", "Uñas acrílicas", "60.00"),
		},
		sales: []settlement.Sale{
			sale("sl-1", "w-ana", 3, "Marta Ruiz", "Manicura semipermanente", "35.00", "card"),
			sale("sl-2", "w-ana", 7, "Sofía León", "Pedicura spa", "45.00", "cash"),
			sale("sl-3", "w-ana", 7, "Sofía León", "Aceite de cutícula", "12.50", "cash"),
			sale("sl-4", "w-lucia", 4, "Carla Vidal", "Uñas acrílicas", "60.00", "transfer"),
		},
	}
	if err := h.seed(ctx, seed); err != nil {
		return err
	}

	for _, w := range workers {
		if _, err := h.Controller.Create(ctx, settlement.NewCreateInput(w.ID, firstFortnight)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadCommissionOnlyScenario(ctx context.Context) error {
	if err := h.seedWorkers(ctx, []settlement.Worker{
		{ID: "w-marta", FirstName: "Marta", LastName: "Sanz", Email: "marta@salon.example"},
	}); err != nil {
		return err
	}

	seed := seedBatch{
		appointments: []settlement.Appointment{
			appointment("ap-1", "w-marta", 1, "09:00", "Elena Mora", "Manicura clásica", "20.00"),
			appointment("ap-2", "w-marta", 8, "11:00", "Paula Gil", "Esmaltado gel", "30.00"),
			appointment("ap-3", "w-marta", 15, "18:00", "Irene Soto", "Pedicura", "35.00"),
		},
	}
	if err := h.seed(ctx, seed); err != nil {
		return err
	}

	_, err := h.Controller.Create(ctx, settlement.NewCreateInput("w-marta", firstFortnight))
	return err
}

func (h *Handler) loadPaidHistoryScenario(ctx context.Context) error {
	if err := h.seedWorkers(ctx, []settlement.Worker{
		{ID: "w-ana", FirstName: "Ana", LastName: "Gómez", Email: "ana@salon.example"},
	}); err != nil {
		return err
	}

	seed := seedBatch{
		appointments: []settlement.Appointment{
			appointment("ap-1", "w-ana", 5, "10:00", "Marta Ruiz", "Manicura", "25.00"),
			appointment("ap-2", "w-ana", 20, "10:00", "Marta Ruiz", "Manicura", "25.00"),
			appointment("ap-3", "w-ana", 22, "17:00", "Nuria Paz", "Uñas esculpidas", "55.00"),
		},
		sales: []settlement.Sale{
			sale("sl-1", "w-ana", 20, "Marta Ruiz", "Manicura", "25.00", "card"),
		},
	}
	if err := h.seed(ctx, seed); err != nil {
		return err
	}

	first, err := h.Controller.Create(ctx, settlement.NewCreateInput("w-ana", firstFortnight))
	if err != nil {
		return err
	}
	bonus := decimal.RequireFromString("10.00")
	if _, err := h.Controller.Update(ctx, first.ID, settlement.UpdateInput{BonusAmount: &bonus}); err != nil {
		return err
	}
	if _, err := h.Controller.MarkPaid(ctx, first.ID); err != nil {
		return err
	}

	_, err = h.Controller.Create(ctx, settlement.NewCreateInput("w-ana", secondFortnight))
	return err
}

func (h *Handler) loadNoisyLedgersScenario(ctx context.Context) error {
	if err := h.seedWorkers(ctx, []settlement.Worker{
		{ID: "w-lucia", FirstName: "Lucía", LastName: "Pérez", Email: "lucia@salon.example"},
	}); err != nil {
		return err
	}

	cancelled := appointment("ap-2", "w-lucia", 9, "13:00", "Rosa Blanco", "Manicura", "30.00")
	cancelled.Status = "cancelled"
	pending := sale("sl-2", "w-lucia", 9, "Rosa Blanco", "Manicura", "30.00", "card")
	pending.Status = "pending"

	seed := seedBatch{
		appointments: []settlement.Appointment{
			appointment("ap-1", "w-lucia", 2, "10:00", "Eva Ramos", "Pedicura", "40.00"),
			cancelled,
			// Outside the first fortnight.
			appointment("ap-3", "w-lucia", 16, "10:00", "Eva Ramos", "Pedicura", "40.00"),
		},
		sales: []settlement.Sale{pending},
	}
	if err := h.seed(ctx, seed); err != nil {
		return err
	}

	_, err := h.Controller.Create(ctx, settlement.NewCreateInput("w-lucia", firstFortnight))
	return err
}

// =============================================================================
// SEED HELPERS
// =============================================================================

type seedBatch struct {
	appointments []settlement.Appointment
	sales        []settlement.Sale
}

func (h *Handler) seedWorkers(ctx context.Context, workers []settlement.Worker) error {
	for _, w := range workers {
		if err := h.Seeder.SaveWorker(ctx, w); err != nil {
			return fmt.Errorf("save worker %s: %w", w.ID, err)
		}
	}
	return nil
}

func (h *Handler) seed(ctx context.Context, b seedBatch) error {
	for _, a := range b.appointments {
		if err := h.Seeder.SaveAppointment(ctx, a); err != nil {
			return fmt.Errorf("save appointment %s: %w", a.ID, err)
		}
	}
	for _, s := range b.sales {
		err := h.Seeder.SaveSale(ctx, s)
		if errors.Is(err, settlement.ErrSourceUnavailable) {
			h.Logger.Info("store has no sales table, skipping scenario sales")
			return nil
		}
		if err != nil {
			return fmt.Errorf("save sale %s: %w", s.ID, err)
		}
	}
	return nil
}

// appointment builds a completed June 2024 appointment.
func appointment(id string, worker settlement.WorkerID, day int, at, client, service, price string) settlement.Appointment {
	return settlement.Appointment{
		ID:          id,
		WorkerID:    worker,
		Date:        generic.NewTimePoint(2024, time.June, day),
		Time:        at,
		ClientName:  client,
		ServiceName: service,
		Price:       decimal.RequireFromString(price),
		Status:      settlement.AppointmentCompleted,
	}
}

// sale builds a settled June 2024 sale at 15:00 UTC.
func sale(id string, worker settlement.WorkerID, day int, client, service, total, method string) settlement.Sale {
	return settlement.Sale{
		ID:            id,
		WorkerID:      worker,
		SoldAt:        time.Date(2024, time.June, day, 15, 0, 0, 0, time.UTC),
		ClientName:    client,
		ServiceName:   service,
		Total:         decimal.RequireFromString(total),
		PaymentMethod: method,
		Status:        settlement.SaleSettled,
	}
}
