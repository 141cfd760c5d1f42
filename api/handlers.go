/*
handlers.go - HTTP API handlers for worker settlements

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the settlement package.

ENDPOINTS:
  Previews:
    POST   /api/settlements/preview                 Suggested amount, no write
    POST   /api/settlements/preview/appointments    Appointments-only preview

  Settlements:
    GET    /api/settlements                         List (worker, state, period)
    POST   /api/settlements                         Create
    GET    /api/settlements/pending                 Pending settlements
    GET    /api/settlements/{id}                    Settlement with worker
    PATCH  /api/settlements/{id}                    Update operator amounts
    POST   /api/settlements/{id}/recompute-appointments
    POST   /api/settlements/{id}/recompute-sales
    POST   /api/settlements/{id}/pay                Mark paid
    GET    /api/settlements/{id}/breakdown          Contributing records
    GET    /api/settlements/{id}/breakdown/export   ?format=xlsx|pdf
    GET    /api/workers/{id}/settlements            Settlements of one worker

  Admin:
    DELETE /api/admin/settlements/{id}              Delete in any state

REQUEST FLOW:
  1. Decode and validate the body (go-playground/validator)
  2. Build settlement inputs (periods, optional amounts)
  3. Call the Controller or Reports
  4. Serialize response DTOs
  5. Map errors by kind

ERROR HANDLING:
  settlement.KindOf classifies every error:
  - 400: invalid_amount, invalid_period, validation
  - 404: not_found, worker_not_found
  - 409: duplicate_period, illegal_state, already_paid, conflict
  - 500: internal (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/report"
	"github.com/warp/payout-engine/settlement"
)

// kindValidation marks a request that failed shape validation.
const kindValidation = "validation"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Controller *settlement.Controller
	Reports    *settlement.Reports

	// Seeder loads demo scenarios; nil disables the scenario endpoints.
	Seeder Seeder
	// Health is pinged by /healthz; nil always reports ok.
	Health Pinger
	Logger *zap.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over a controller and its reports.
func NewHandler(ctrl *settlement.Controller, reports *settlement.Reports, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Controller: ctrl,
		Reports:    reports,
		Logger:     logger,
		validate:   v,
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports whether the store answers.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Logger.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PREVIEWS
// =============================================================================

// Preview computes the suggested amount without persisting anything.
// POST /api/settlements/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	period, err := generic.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	p, err := h.Reports.PreviewFor(r.Context(), settlement.WorkerID(req.WorkerID), period)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewDTO{Worker: toWorkerDTO(p.Worker), SuggestionDTO: toSuggestionDTO(p.Suggestion)})
}

// PreviewAppointments is Preview restricted to completed appointments.
// POST /api/settlements/preview/appointments
func (h *Handler) PreviewAppointments(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !h.decode(w, r, &req) {
		return
	}
	period, err := generic.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	p, err := h.Reports.PreviewAppointments(r.Context(), settlement.WorkerID(req.WorkerID), period)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AppointmentsPreviewDTO{
		Worker:            toWorkerDTO(p.Worker),
		PeriodStart:       p.Period.Start.String(),
		PeriodEnd:         p.Period.End.String(),
		AppointmentsTotal: money(p.Total),
		AppointmentsCount: p.Count,
		CommissionRate:    h.Reports.Aggregator.CommissionRate.String(),
		Commission:        money(p.Commission),
		Source:            toSourceDTO(p.Source),
		Appointments:      toAppointmentDTOs(p.Appointments),
	})
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// ListSettlements returns settlements matching the query filters.
// GET /api/settlements?worker_id=&state=&period_start=&period_end=
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	list, err := h.Reports.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTOs(list))
}

// ListPending returns every pending settlement.
// GET /api/settlements/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reports.ListPending(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTOs(list))
}

// ListWorkerSettlements returns every settlement of one worker.
// GET /api/workers/{id}/settlements
func (h *Handler) ListWorkerSettlements(w http.ResponseWriter, r *http.Request) {
	workerID := settlement.WorkerID(chi.URLParam(r, "id"))

	list, err := h.Reports.ListForWorker(r.Context(), workerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTOs(list))
}

// CreateSettlement creates a pending settlement.
// POST /api/settlements
func (h *Handler) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req CreateSettlementRequest
	if !h.decode(w, r, &req) {
		return
	}
	period, err := generic.ParsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	in := settlement.NewCreateInput(settlement.WorkerID(req.WorkerID), period)
	in.BaseAmount = req.BaseAmount
	in.BonusAmount = req.BonusAmount
	if req.AutoCompute != nil {
		in.AutoCompute = *req.AutoCompute
	}
	in.SkipPeriodCheck = req.SkipPeriodCheck

	s, err := h.Controller.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementDTO(s))
}

// GetSettlement returns one settlement with its worker.
// GET /api/settlements/{id}
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	v, err := h.Reports.Get(r.Context(), settlementID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewDTO(v))
}

// UpdateSettlement changes operator amounts on a pending settlement.
// PATCH /api/settlements/{id}
func (h *Handler) UpdateSettlement(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettlementRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.Controller.Update(r.Context(), settlementID(r), settlement.UpdateInput{
		BaseAmount:  req.BaseAmount,
		BonusAmount: req.BonusAmount,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// RecomputeAppointments refreshes the cached appointments total.
// POST /api/settlements/{id}/recompute-appointments
func (h *Handler) RecomputeAppointments(w http.ResponseWriter, r *http.Request) {
	d, err := h.Controller.RecomputeAppointments(r.Context(), settlementID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AppointmentsDeltaDTO{
		OldValue:   money(d.OldValue),
		NewValue:   money(d.NewValue),
		Difference: money(d.Difference),
		Degraded:   d.Degraded,
		Settlement: toSettlementDTO(d.Settlement),
	})
}

// RecomputeSales re-derives the base amount from current sales.
// POST /api/settlements/{id}/recompute-sales
func (h *Handler) RecomputeSales(w http.ResponseWriter, r *http.Request) {
	s, err := h.Controller.RecomputeSales(r.Context(), settlementID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// MarkPaid transitions a settlement to paid.
// POST /api/settlements/{id}/pay
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	s, err := h.Controller.MarkPaid(r.Context(), settlementID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(s))
}

// GetBreakdown itemizes the appointments and sales in a settlement's period.
// GET /api/settlements/{id}/breakdown
func (h *Handler) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	b, err := h.Reports.Breakdown(r.Context(), settlementID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BreakdownDTO{
		Settlement: toViewDTO(b.View),
		Suggestion: toSuggestionDTO(b.Suggestion),
	})
}

// ExportBreakdown renders the breakdown as a spreadsheet or PDF download.
// GET /api/settlements/{id}/breakdown/export?format=xlsx|pdf
func (h *Handler) ExportBreakdown(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" && format != "pdf" {
		writeError(w, http.StatusBadRequest, kindValidation, "format must be xlsx or pdf", nil)
		return
	}

	b, err := h.Reports.Breakdown(r.Context(), settlementID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = report.BuildBreakdownPDF(b)
		contentType = report.ContentTypePDF
	default:
		data, err = report.BuildBreakdownXLSX(b)
		contentType = report.ContentTypeXLSX
	}
	if err != nil {
		h.writeDomainError(w, r, fmt.Errorf("render %s: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(b, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteSettlement removes a settlement in any state.
// DELETE /api/admin/settlements/{id}
func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	id := settlementID(r)
	if err := h.Controller.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.Logger.Info("settlement deleted",
		zap.String("settlement_id", string(id)),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HELPERS
// =============================================================================

func settlementID(r *http.Request) settlement.SettlementID {
	return settlement.SettlementID(chi.URLParam(r, "id"))
}

// parseFilter reads list filters. Filtering on a period needs both dates.
func parseFilter(r *http.Request) (settlement.Filter, error) {
	q := r.URL.Query()
	var filter settlement.Filter

	if v := q.Get("worker_id"); v != "" {
		id := settlement.WorkerID(v)
		filter.WorkerID = &id
	}
	if v := q.Get("state"); v != "" {
		st, err := settlement.ParseState(v)
		if err != nil {
			return settlement.Filter{}, validationError{msg: err.Error()}
		}
		filter.State = &st
	}

	start, end := q.Get("period_start"), q.Get("period_end")
	switch {
	case start == "" && end == "":
	case start == "" || end == "":
		return settlement.Filter{}, fmt.Errorf("%w: period_start and period_end go together", generic.ErrInvalidPeriod)
	default:
		p, err := generic.ParsePeriod(start, end)
		if err != nil {
			return settlement.Filter{}, err
		}
		filter.Period = &p
	}
	return filter, nil
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, kindValidation, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
			}
			writeError(w, http.StatusBadRequest, kindValidation, "Invalid request", errors.New(strings.Join(msgs, "; ")))
			return false
		}
		writeError(w, http.StatusBadRequest, kindValidation, "Invalid request", err)
		return false
	}
	return true
}

type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// statusFor maps an error kind to its HTTP status.
func statusFor(kind settlement.ErrorKind) int {
	switch kind {
	case settlement.KindInvalidAmount, settlement.KindInvalidPeriod:
		return http.StatusBadRequest
	case settlement.KindNotFound, settlement.KindWorkerNotFound:
		return http.StatusNotFound
	case settlement.KindDuplicatePeriod, settlement.KindIllegalState,
		settlement.KindAlreadyPaid, settlement.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps err by kind. Internal errors are logged and their
// details withheld.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, kindValidation, verr.msg, nil)
		return
	}

	kind := settlement.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, string(kind), "Internal error", nil)
		return
	}

	resp := ErrorResponse{Error: err.Error(), Kind: string(kind)}
	var dup *settlement.DuplicatePeriodError
	if errors.As(err, &dup) && dup.ExistingID != "" {
		resp.Details = "existing settlement " + string(dup.ExistingID)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, kind, message string, err error) {
	resp := ErrorResponse{Error: message, Kind: kind}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
