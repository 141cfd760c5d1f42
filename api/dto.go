/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the settlement model from the external contract: money is rendered as
  fixed two-decimal strings, dates as YYYY-MM-DD, timestamps as RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Settlements:
    SettlementDTO, CreateSettlementRequest, UpdateSettlementRequest,
    AppointmentsDeltaDTO, BreakdownDTO

  Previews:
    PreviewRequest, PreviewDTO, AppointmentsPreviewDTO, SuggestionDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags for shape (required
  fields, date format). Domain rules such as non-negative amounts and
  start <= end are enforced by the settlement package so every caller gets
  the same errors.

SEE ALSO:
  - handlers.go: Uses these types
  - settlement/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/settlement"
)

// =============================================================================
// REQUESTS
// =============================================================================

// PreviewRequest identifies a worker and period to aggregate.
type PreviewRequest struct {
	WorkerID    string `json:"worker_id" validate:"required"`
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"required,datetime=2006-01-02"`
}

// CreateSettlementRequest is the request to create a settlement.
type CreateSettlementRequest struct {
	WorkerID    string           `json:"worker_id" validate:"required"`
	PeriodStart string           `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string           `json:"period_end" validate:"required,datetime=2006-01-02"`
	BaseAmount  *decimal.Decimal `json:"base_amount,omitempty"`
	BonusAmount *decimal.Decimal `json:"bonus_amount,omitempty"`

	// AutoCompute defaults to true when omitted.
	AutoCompute     *bool `json:"auto_compute,omitempty"`
	SkipPeriodCheck bool  `json:"skip_period_check,omitempty"`
}

// UpdateSettlementRequest changes operator amounts. Omitted fields are kept.
type UpdateSettlementRequest struct {
	BaseAmount  *decimal.Decimal `json:"base_amount,omitempty"`
	BonusAmount *decimal.Decimal `json:"bonus_amount,omitempty"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// WorkerDTO carries a worker's display attributes.
type WorkerDTO struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// SettlementDTO represents a settlement in API responses.
type SettlementDTO struct {
	ID                string     `json:"id"`
	WorkerID          string     `json:"worker_id"`
	Worker            *WorkerDTO `json:"worker,omitempty"`
	PeriodStart       string     `json:"period_start"`
	PeriodEnd         string     `json:"period_end"`
	BaseAmount        string     `json:"base_amount"`
	BonusAmount       string     `json:"bonus_amount"`
	PayableTotal      string     `json:"payable_total"`
	AppointmentsTotal string     `json:"appointments_total"`
	State             string     `json:"state"`
	PaidAt            *string    `json:"paid_at"`
	CreatedAt         string     `json:"created_at"`
	UpdatedAt         string     `json:"updated_at"`
}

// SourceDTO reports whether an earnings source contributed.
type SourceDTO struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

// AppointmentDTO is one contributing appointment.
type AppointmentDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time,omitempty"`
	ClientName  string `json:"client_name,omitempty"`
	ServiceName string `json:"service_name,omitempty"`
	Price       string `json:"price"`
}

// SaleDTO is one contributing sale.
type SaleDTO struct {
	ID            string `json:"id"`
	SoldAt        string `json:"sold_at"`
	ClientName    string `json:"client_name,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	Total         string `json:"total"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// SuggestionDTO is the Aggregator's result.
type SuggestionDTO struct {
	PeriodStart                string               `json:"period_start"`
	PeriodEnd                  string               `json:"period_end"`
	SalesTotal                 string               `json:"sales_total"`
	SalesCount                 int                  `json:"sales_count"`
	SalesAverage               string               `json:"sales_average"`
	AppointmentsTotal          string               `json:"appointments_total"`
	AppointmentsCount          int                  `json:"appointments_count"`
	CommissionRate             string               `json:"commission_rate"`
	CommissionFromAppointments string               `json:"commission_from_appointments"`
	SuggestedAmount            string               `json:"suggested_amount"`
	Basis                      string               `json:"basis"`
	Sources                    map[string]SourceDTO `json:"sources"`
	Sales                      []SaleDTO            `json:"sales"`
	Appointments               []AppointmentDTO     `json:"appointments"`
}

// PreviewDTO is a suggestion for a settlement that does not exist yet.
type PreviewDTO struct {
	Worker WorkerDTO `json:"worker"`
	SuggestionDTO
}

// AppointmentsPreviewDTO is the appointments-only preview.
type AppointmentsPreviewDTO struct {
	Worker            WorkerDTO        `json:"worker"`
	PeriodStart       string           `json:"period_start"`
	PeriodEnd         string           `json:"period_end"`
	AppointmentsTotal string           `json:"appointments_total"`
	AppointmentsCount int              `json:"appointments_count"`
	CommissionRate    string           `json:"commission_rate"`
	Commission        string           `json:"commission"`
	Source            SourceDTO        `json:"source"`
	Appointments      []AppointmentDTO `json:"appointments"`
}

// AppointmentsDeltaDTO is the result of recomputing the appointments total.
type AppointmentsDeltaDTO struct {
	OldValue   string        `json:"old_value"`
	NewValue   string        `json:"new_value"`
	Difference string        `json:"difference"`
	Degraded   bool          `json:"degraded"`
	Settlement SettlementDTO `json:"settlement"`
}

// BreakdownDTO itemizes what contributes to a settlement's period.
type BreakdownDTO struct {
	Settlement SettlementDTO `json:"settlement"`
	Suggestion SuggestionDTO `json:"suggestion"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toWorkerDTO(w settlement.Worker) WorkerDTO {
	return WorkerDTO{ID: string(w.ID), FullName: w.FullName(), Email: w.Email}
}

func toSettlementDTO(s settlement.Settlement) SettlementDTO {
	dto := SettlementDTO{
		ID:                string(s.ID),
		WorkerID:          string(s.WorkerID),
		PeriodStart:       s.Period.Start.String(),
		PeriodEnd:         s.Period.End.String(),
		BaseAmount:        money(s.BaseAmount),
		BonusAmount:       money(s.BonusAmount),
		PayableTotal:      money(s.PayableTotal()),
		AppointmentsTotal: money(s.AppointmentsTotal),
		State:             string(s.State),
		CreatedAt:         s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         s.UpdatedAt.Format(time.RFC3339),
	}
	if s.PaidAt != nil {
		paid := s.PaidAt.Format(time.RFC3339)
		dto.PaidAt = &paid
	}
	return dto
}

func toViewDTO(v settlement.View) SettlementDTO {
	dto := toSettlementDTO(v.Settlement)
	w := toWorkerDTO(v.Worker)
	dto.Worker = &w
	return dto
}

func toSettlementDTOs(list []settlement.Settlement) []SettlementDTO {
	dtos := make([]SettlementDTO, len(list))
	for i, s := range list {
		dtos[i] = toSettlementDTO(s)
	}
	return dtos
}

func toSourceDTO(r settlement.SourceReport) SourceDTO {
	return SourceDTO{Status: string(r.Status), Note: r.Note}
}

func toAppointmentDTOs(appts []settlement.Appointment) []AppointmentDTO {
	dtos := make([]AppointmentDTO, len(appts))
	for i, a := range appts {
		dtos[i] = AppointmentDTO{
			ID:          a.ID,
			Date:        a.Date.String(),
			Time:        a.Time,
			ClientName:  a.ClientName,
			ServiceName: a.ServiceName,
			Price:       money(a.Price),
		}
	}
	return dtos
}

func toSaleDTOs(sales []settlement.Sale) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = SaleDTO{
			ID:            s.ID,
			SoldAt:        s.SoldAt.Format(time.RFC3339),
			ClientName:    s.ClientName,
			ServiceName:   s.ServiceName,
			Total:         money(s.Total),
			PaymentMethod: s.PaymentMethod,
		}
	}
	return dtos
}

func toSuggestionDTO(sg settlement.Suggestion) SuggestionDTO {
	return SuggestionDTO{
		PeriodStart:                sg.Period.Start.String(),
		PeriodEnd:                  sg.Period.End.String(),
		SalesTotal:                 money(sg.SalesTotal),
		SalesCount:                 sg.SalesCount,
		SalesAverage:               money(sg.SalesAverage),
		AppointmentsTotal:          money(sg.AppointmentsTotal),
		AppointmentsCount:          sg.AppointmentsCount,
		CommissionRate:             sg.CommissionRate.String(),
		CommissionFromAppointments: money(sg.CommissionFromAppointments),
		SuggestedAmount:            money(sg.SuggestedAmount),
		Basis:                      string(sg.Basis),
		Sources: map[string]SourceDTO{
			string(settlement.SourceSales):        toSourceDTO(sg.SalesSource),
			string(settlement.SourceAppointments): toSourceDTO(sg.AppointmentsSource),
		},
		Sales:        toSaleDTOs(sg.Sales),
		Appointments: toAppointmentDTOs(sg.Appointments),
	}
}
