/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain values are
  decimals; the wire carries float64 so a browser form can bind them
  directly.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Settlement:
    SettlementDTO, LineDTO, ServiceDTO, TotalsDTO, NoticeDTO, SettlementResponse

  Events:
    CreateSettlementRequest, SetEmployeeRequest, SetDateRequest,
    EditLineRequest, EventDTO

  Rule engine:
    AmountRequest, AmountResponse

  Fixtures:
    FixtureDTO

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-engine/baseline"
	"github.com/warp/settlement-engine/settlement"
)

// =============================================================================
// SETTLEMENT
// =============================================================================

// SettlementDTO is the settlement form as the client renders it.
type SettlementDTO struct {
	ID              string     `json:"id"`
	Employee        string     `json:"employee"`
	TransactionDate string     `json:"transaction_date"`
	AsOfDate        string     `json:"as_of_date,omitempty"`
	Service         ServiceDTO `json:"service"`
	Lines           []LineDTO  `json:"lines"`
	Totals          TotalsDTO  `json:"totals"`
	UpdatedAt       string     `json:"updated_at"`
}

type ServiceDTO struct {
	Years        float64 `json:"years"`
	Months       float64 `json:"months"`
	Days         float64 `json:"days"`
	TotalOfYears float64 `json:"total_of_years"`
}

type LineDTO struct {
	Index                 int      `json:"index"`
	Component             string   `json:"component"`
	DayCount              float64  `json:"day_count"`
	RatePerDay            *float64 `json:"rate_per_day,omitempty"`
	Amount                float64  `json:"amount"`
	Basis                 string   `json:"basis"`
	WorkedDays            *float64 `json:"worked_days,omitempty"`
	AutoAmount            *float64 `json:"auto_amount,omitempty"`
	ReferenceDocumentType string   `json:"reference_document_type,omitempty"`
	ReferenceDocument     string   `json:"reference_document,omitempty"`
}

type TotalsDTO struct {
	TotalPayable          float64  `json:"total_payable_amount"`
	LeaveEncashmentAmount float64  `json:"leave_encashment_amount"`
	BaselineTotal         *float64 `json:"baseline_total,omitempty"`
	Mismatch              bool     `json:"mismatch"`
}

type NoticeDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SettlementResponse is returned by every endpoint that fires an event.
// On a baseline failure Error is set and Settlement holds the unchanged state.
type SettlementResponse struct {
	Settlement SettlementDTO `json:"settlement"`
	Notices    []NoticeDTO   `json:"notices"`
	Error      string        `json:"error,omitempty"`
}

// =============================================================================
// EVENT REQUESTS
// =============================================================================

type CreateSettlementRequest struct {
	Employee        string `json:"employee"`
	TransactionDate string `json:"transaction_date"`
}

type SetEmployeeRequest struct {
	Employee string `json:"employee"`
}

type SetDateRequest struct {
	TransactionDate string `json:"transaction_date"`
}

// EditLineRequest carries one or both editable fields. Absent fields are
// left alone.
type EditLineRequest struct {
	DayCount   *settlement.Number `json:"day_count,omitempty"`
	RatePerDay *settlement.Number `json:"rate_per_day,omitempty"`
}

type EventDTO struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
	Outcome string `json:"outcome"`
	At      string `json:"at"`
}

// =============================================================================
// RULE ENGINE
// =============================================================================

// AmountRequest takes numbers or numeric strings; anything else is zero.
type AmountRequest struct {
	Component  string            `json:"component"`
	DayCount   settlement.Number `json:"day_count"`
	RatePerDay settlement.Number `json:"rate_per_day"`
}

type AmountResponse struct {
	Component string  `json:"component"`
	Amount    float64 `json:"amount"`
	Capped    bool    `json:"capped"`
}

// =============================================================================
// FIXTURES
// =============================================================================

type FixtureDTO struct {
	Employee    string `json:"employee"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OK          bool   `json:"ok"`
	Lines       int    `json:"lines"`
}

// ErrorResponse is the body of a failed request that has no settlement.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSettlementDTO(snap settlement.Snapshot) SettlementDTO {
	lines := make([]LineDTO, len(snap.Lines))
	for i, l := range snap.Lines {
		lines[i] = LineDTO{
			Index:                 i,
			Component:             l.Component,
			DayCount:              l.DayCount.InexactFloat64(),
			RatePerDay:            floatPtr(l.RatePerDay),
			Amount:                l.Amount.InexactFloat64(),
			Basis:                 string(l.Basis),
			WorkedDays:            floatPtr(l.WorkedDays),
			AutoAmount:            floatPtr(l.AutoAmount),
			ReferenceDocumentType: l.ReferenceDocumentType,
			ReferenceDocument:     l.ReferenceDocument,
		}
	}
	return SettlementDTO{
		ID:              snap.ID,
		Employee:        snap.Request.Employee,
		TransactionDate: snap.Request.TransactionDate.String(),
		AsOfDate:        snap.AsOfDate,
		Service: ServiceDTO{
			Years:        snap.Service.Years.InexactFloat64(),
			Months:       snap.Service.Months.InexactFloat64(),
			Days:         snap.Service.Days.InexactFloat64(),
			TotalOfYears: snap.Service.TotalOfYears.InexactFloat64(),
		},
		Lines: lines,
		Totals: TotalsDTO{
			TotalPayable:          snap.Totals.Total.InexactFloat64(),
			LeaveEncashmentAmount: snap.Totals.LeaveEncashment.InexactFloat64(),
			BaselineTotal:         floatPtr(snap.Totals.BaselineTotal),
			Mismatch:              snap.Totals.Mismatch,
		},
		UpdatedAt: snap.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toNoticeDTOs(notices []settlement.Notice) []NoticeDTO {
	out := make([]NoticeDTO, len(notices))
	for i, n := range notices {
		out[i] = NoticeDTO{Kind: string(n.Kind), Message: n.Message}
	}
	return out
}

func toEventDTO(e settlement.Event) EventDTO {
	return EventDTO{
		ID:      e.ID,
		Kind:    string(e.Kind),
		Detail:  e.Detail,
		Outcome: e.Outcome,
		At:      e.At.UTC().Format(time.RFC3339),
	}
}

func toFixtureDTO(f baseline.Fixture) FixtureDTO {
	return FixtureDTO{
		Employee:    f.Employee,
		Name:        f.Name,
		Description: f.Description,
		OK:          f.Payload.OK,
		Lines:       len(f.Payload.Payables),
	}
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
