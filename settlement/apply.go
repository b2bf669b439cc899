package settlement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BASELINE APPLICATOR - Payload -> lines + service duration
// =============================================================================

// Baseline is a materialized payload, ready to replace a session's state.
type Baseline struct {
	Lines   []PayableLine
	Service ServiceDuration

	LeaveEncashment decimal.Decimal
	// ReportedTotal is totals.total_payable when the service sent one.
	ReportedTotal *decimal.Decimal

	Note     string
	AsOfDate string
}

// Applicator turns payloads into Baselines. It holds no session state;
// replacing the table is the Session's job.
type Applicator struct {
	Rules  Calculator
	Schema Schema
}

// NewApplicator returns an applicator over the default rules and full schema.
func NewApplicator() *Applicator {
	return &Applicator{Rules: NewRules(), Schema: FullSchema()}
}

// Materialize validates the payload and builds a fresh line list.
// A nil payload or ok=false yields a *BaselineUnavailableError.
func (a *Applicator) Materialize(employee string, p *Payload) (*Baseline, error) {
	if p == nil || !p.OK {
		msg := ""
		if p != nil {
			msg = strings.TrimSpace(p.Msg)
		}
		return nil, &BaselineUnavailableError{Employee: employee, Message: msg}
	}

	lines := make([]PayableLine, 0, len(p.Payables))
	for _, spec := range p.Payables {
		lines = append(lines, a.materializeLine(spec))
	}

	b := &Baseline{
		Lines:    lines,
		Service:  serviceFrom(p.Service),
		Note:     strings.TrimSpace(p.Note),
		AsOfDate: p.AsOfDate,
	}
	if p.Totals != nil {
		b.LeaveEncashment = p.Totals.LeaveEncashmentAmount.Decimal()
		b.ReportedTotal = p.Totals.TotalPayable.Ptr()
	}
	return b, nil
}

func (a *Applicator) materializeLine(spec LineSpec) PayableLine {
	r := ResolveAliases(spec)

	line := PayableLine{
		Component:             r.Component,
		DayCount:              r.DayCount.Decimal(),
		Amount:                r.Amount.Decimal(),
		Basis:                 BasisFixed,
		ReferenceDocumentType: r.ReferenceDocumentType,
		ReferenceDocument:     r.ReferenceDocument,
	}

	if a.Schema.Declares(FieldRatePerDay) && r.RatePerDay.Valid {
		line.RatePerDay = r.RatePerDay.Ptr()
		if r.DayCount.Valid {
			line.Basis = BasisRated
			line.Amount = a.Rules.Compute(line.Component, line.DayCount, *line.RatePerDay)
		}
	}
	// worked_days echoes the day count when the payload omits it; edits keep
	// the two in step.
	if a.Schema.Declares(FieldWorkedDays) {
		line.WorkedDays = firstPresent(spec.WorkedDays, spec.DayCount).Ptr()
		if line.WorkedDays == nil {
			zero := decimal.Zero
			line.WorkedDays = &zero
		}
	}
	if a.Schema.Declares(FieldAutoAmount) {
		echo := line.Amount
		line.AutoAmount = &echo
	}
	return line
}

func serviceFrom(s *ServicePayload) ServiceDuration {
	if s == nil {
		return ServiceDuration{}
	}
	return ServiceDuration{
		Years:        s.Years.Decimal(),
		Months:       s.Months.Decimal(),
		Days:         s.Days.Decimal(),
		TotalOfYears: s.CustomTotalOfYears.Decimal(),
	}
}
