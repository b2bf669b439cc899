package settlement

// =============================================================================
// BASELINE PAYLOAD - Output contract of the external computation service
// =============================================================================

// Payload is what the baseline service returns for (employee, date).
// Field tags follow the service's wire format.
type Payload struct {
	OK       bool            `json:"ok"`
	Msg      string          `json:"msg,omitempty"`
	Note     string          `json:"note,omitempty"`
	AsOfDate string          `json:"as_of_date,omitempty"`
	Service  *ServicePayload `json:"service,omitempty"`
	Totals   *TotalsPayload  `json:"totals,omitempty"`
	Payables []LineSpec      `json:"payables,omitempty"`
}

type ServicePayload struct {
	Years              Number `json:"years"`
	Months             Number `json:"months"`
	Days               Number `json:"days"`
	CustomTotalOfYears Number `json:"custom_total_of_years"`
}

type TotalsPayload struct {
	LeaveEncashmentAmount Number `json:"leave_encashment_amount"`
	TotalPayable          Number `json:"total_payable"`
}

// LineSpec is one candidate payable line. worked_days and auto_amount are
// fallback aliases of day_count and amount.
type LineSpec struct {
	Component             string `json:"component"`
	DayCount              Number `json:"day_count"`
	WorkedDays            Number `json:"worked_days"`
	RatePerDay            Number `json:"rate_per_day"`
	Amount                Number `json:"amount"`
	AutoAmount            Number `json:"auto_amount"`
	ReferenceDocumentType string `json:"reference_document_type,omitempty"`
	ReferenceDocument     string `json:"reference_document,omitempty"`
}

// =============================================================================
// ALIAS RESOLUTION
// =============================================================================

// ResolvedLine is a LineSpec with its aliases collapsed.
type ResolvedLine struct {
	Component             string
	DayCount              Number
	RatePerDay            Number
	Amount                Number
	ReferenceDocumentType string
	ReferenceDocument     string
}

// ResolveAliases collapses the alias pairs. Precedence:
//
//	day count: day_count, then worked_days
//	amount:    amount, then auto_amount
//
// A field counts as present when it is neither missing, null nor "".
func ResolveAliases(spec LineSpec) ResolvedLine {
	return ResolvedLine{
		Component:             spec.Component,
		DayCount:              firstPresent(spec.DayCount, spec.WorkedDays),
		RatePerDay:            spec.RatePerDay,
		Amount:                firstPresent(spec.Amount, spec.AutoAmount),
		ReferenceDocumentType: spec.ReferenceDocumentType,
		ReferenceDocument:     spec.ReferenceDocument,
	}
}

func firstPresent(nums ...Number) Number {
	for _, n := range nums {
		if n.Valid {
			return n
		}
	}
	return Number{}
}
