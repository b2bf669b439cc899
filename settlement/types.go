/*
Package settlement provides the Full and Final Settlement recalculation engine.

PURPOSE:
  A departing employee's settlement is a table of payable lines (worked days,
  leave encashment, notice pay...) plus a handful of service-duration figures.
  The table and its total must stay consistent under two kinds of writes:
  a baseline payload fetched from the external computation service, and
  manual edits to a line's day count or rate.

KEY CONCEPTS IN THIS FILE (types.go):
  - Number: a payload numeric that remembers whether it was supplied
  - Date: a calendar day (transaction / as-of dates)
  - PayableLine: one settlement component
  - ServiceDuration, Totals, Request: the scalar fields of a settlement
  - Schema: which optional line fields the table declares

COMPONENTS (leaf to root):
  normalize.go  Normalize: numeric-like input -> decimal, zero default
  rules.go      Rules: component policy (default days x rate, capped lines)
  aggregate.go  RecomputeTotal: sum of line amounts
  apply.go      Applicator: baseline payload -> lines + service duration
  session.go    Session: event-driven orchestrator with re-entrancy mode

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float64 arithmetic
  2. Totality: numeric coercion never fails, garbage degrades to zero
  3. One rule path: baseline apply and manual edit share Rules.Compute

SEE ALSO:
  - baseline/: The external collaborator producing payloads
  - api/: HTTP host exposing one endpoint per triggering event
*/
package settlement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NUMBER - Payload numeric with presence
// =============================================================================

// Number is a numeric payload field. Valid is false when the key was
// missing, null or an empty string.
type Number struct {
	Value decimal.Decimal
	Valid bool
}

// NumberOf returns a present Number holding the normalized value.
func NumberOf(v any) Number {
	return Number{Value: Normalize(v), Valid: true}
}

// Decimal returns the value, or zero when absent.
func (n Number) Decimal() decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Value
}

// Ptr returns nil for an absent Number.
func (n Number) Ptr() *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// UnmarshalJSON accepts numbers, numeric strings, null and "".
// Anything else is present but zero.
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "" || s == "null":
		*n = Number{}
	case strings.HasPrefix(s, `"`):
		u, err := strconv.Unquote(s)
		if err != nil || strings.TrimSpace(u) == "" {
			*n = Number{}
			return nil
		}
		*n = Number{Value: normalizeString(u), Valid: true}
	case s[0] == '{' || s[0] == '[' || s == "true" || s == "false":
		*n = Number{Value: decimal.Zero, Valid: true}
	default:
		*n = Number{Value: normalizeString(s), Valid: true}
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(n.Value.String()), nil
}

// =============================================================================
// DATE - Calendar day
// =============================================================================

const dateLayout = "2006-01-02"

// Date is a calendar day in UTC.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD. The empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) IsZero() bool          { return d.Time.IsZero() }
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*d = Date{}
		return nil
	}
	u, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	parsed, err := ParseDate(u)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// REQUEST - Identifies the computation
// =============================================================================

// Request identifies what is being settled. Any change invalidates the
// derived state.
type Request struct {
	Employee        string
	TransactionDate Date
}

// HasEmployee reports whether an employee is selected.
func (r Request) HasEmployee() bool {
	return strings.TrimSpace(r.Employee) != ""
}

// =============================================================================
// SERVICE DURATION - Derived, replaced wholesale by the applicator
// =============================================================================

type ServiceDuration struct {
	Years        decimal.Decimal
	Months       decimal.Decimal
	Days         decimal.Decimal
	TotalOfYears decimal.Decimal
}

// IsZero reports whether every figure is zero.
func (s ServiceDuration) IsZero() bool {
	return s.Years.IsZero() && s.Months.IsZero() && s.Days.IsZero() && s.TotalOfYears.IsZero()
}

// =============================================================================
// PAYABLE LINE - One settlement component
// =============================================================================

// Basis says where a line's amount comes from.
type Basis string

const (
	// BasisFixed lines carry an authoritative amount from the baseline.
	BasisFixed Basis = "fixed"
	// BasisRated lines derive amount from day count and rate.
	BasisRated Basis = "rated"
)

type PayableLine struct {
	Component  string
	DayCount   decimal.Decimal
	RatePerDay *decimal.Decimal
	Amount     decimal.Decimal
	Basis      Basis

	// Provenance, passed through untouched.
	ReferenceDocumentType string
	ReferenceDocument     string

	// Optional fields, set only when the Schema declares them.
	WorkedDays *decimal.Decimal
	AutoAmount *decimal.Decimal
}

// Rated reports whether the amount is derived from day count x rate.
func (l PayableLine) Rated() bool { return l.Basis == BasisRated }

// clone deep-copies the pointer fields.
func (l PayableLine) clone() PayableLine {
	l.RatePerDay = copyDecimal(l.RatePerDay)
	l.WorkedDays = copyDecimal(l.WorkedDays)
	l.AutoAmount = copyDecimal(l.AutoAmount)
	return l
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneLines(lines []PayableLine) []PayableLine {
	out := make([]PayableLine, len(lines))
	for i, l := range lines {
		out[i] = l.clone()
	}
	return out
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals holds the settlement's derived scalars. Total is the field of record.
type Totals struct {
	Total decimal.Decimal

	// LeaveEncashment echoes totals.leave_encashment_amount from the baseline.
	LeaveEncashment decimal.Decimal

	// BaselineTotal is the service's own total_payable, kept for audit.
	BaselineTotal *decimal.Decimal
	// Mismatch is set when BaselineTotal disagrees with Total.
	Mismatch bool
}

// =============================================================================
// FIELDS AND SCHEMA
// =============================================================================

// Field names a line column.
type Field string

const (
	FieldComponent  Field = "component"
	FieldDayCount   Field = "day_count"
	FieldRatePerDay Field = "rate_per_day"
	FieldAmount     Field = "amount"
	FieldWorkedDays Field = "worked_days"
	FieldAutoAmount Field = "auto_amount"
)

// Schema declares which optional line fields exist on the target table.
// Component, day count and amount always exist.
type Schema struct {
	RatePerDay bool
	WorkedDays bool
	AutoAmount bool
}

// FullSchema declares every optional field.
func FullSchema() Schema {
	return Schema{RatePerDay: true, WorkedDays: true, AutoAmount: true}
}

// Declares reports whether f exists on the table.
func (s Schema) Declares(f Field) bool {
	switch f {
	case FieldComponent, FieldDayCount, FieldAmount:
		return true
	case FieldRatePerDay:
		return s.RatePerDay
	case FieldWorkedDays:
		return s.WorkedDays
	case FieldAutoAmount:
		return s.AutoAmount
	default:
		return false
	}
}

// ParseSchema builds a Schema from optional field names.
func ParseSchema(names []string) (Schema, error) {
	var s Schema
	for _, name := range names {
		switch Field(strings.TrimSpace(name)) {
		case FieldRatePerDay:
			s.RatePerDay = true
		case FieldWorkedDays:
			s.WorkedDays = true
		case FieldAutoAmount:
			s.AutoAmount = true
		case "":
		default:
			return Schema{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
	}
	return s, nil
}
