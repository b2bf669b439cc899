package settlement

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE ENGINE - Component policy for a line amount
// =============================================================================

const (
	// WorkedDayComponent is the reserved component name carrying the day cap.
	WorkedDayComponent = "Worked Day"

	// WorkedDayCap is the maximum payable working days per settlement cycle.
	// A business constant; it does not follow month length.
	WorkedDayCap = 30
)

// Calculator computes a line amount. Rules is the production implementation.
type Calculator interface {
	Compute(component string, dayCount, rate decimal.Decimal) decimal.Decimal
}

// Rules maps component names to a day cap. Components without a cap use
// the default policy amount = days x rate.
type Rules struct {
	caps map[string]decimal.Decimal
}

// NewRules returns the default rule set: "Worked Day" capped at 30 days.
func NewRules() *Rules {
	return &Rules{caps: map[string]decimal.Decimal{
		WorkedDayComponent: decimal.NewFromInt(WorkedDayCap),
	}}
}

// WithCap returns a copy of r that also caps component at maxDays.
// The reserved Worked Day cap cannot be replaced.
func (r *Rules) WithCap(component string, maxDays decimal.Decimal) *Rules {
	out := &Rules{caps: make(map[string]decimal.Decimal, len(r.caps)+1)}
	for k, v := range r.caps {
		out.caps[k] = v
	}
	name := strings.TrimSpace(component)
	if name == "" || name == WorkedDayComponent {
		return out
	}
	out.caps[name] = maxDays
	return out
}

// Cap returns the day cap for component, if any.
// Matching is on the trimmed, case-sensitive name.
func (r *Rules) Cap(component string) (decimal.Decimal, bool) {
	c, ok := r.caps[strings.TrimSpace(component)]
	return c, ok
}

// Compute is pure: equal inputs always give equal outputs.
// Negative inputs are not clamped.
func (r *Rules) Compute(component string, dayCount, rate decimal.Decimal) decimal.Decimal {
	days := Normalize(dayCount)
	if limit, ok := r.Cap(component); ok {
		days = decimal.Min(days, limit)
	}
	return days.Mul(Normalize(rate))
}

var defaultRules = NewRules()

// ComputeAmount applies the default rule set to numeric-like inputs.
func ComputeAmount(component string, dayCount, rate any) decimal.Decimal {
	return defaultRules.Compute(component, Normalize(dayCount), Normalize(rate))
}
