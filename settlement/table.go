package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TABLE - The line-item table, as the host form sees it
// =============================================================================

// FieldChange is fired on every write to a line's numeric field, whether
// the write came from a user edit or from the applicator populating rows.
type FieldChange struct {
	Index int
	Field Field
}

// ChangeListener receives FieldChange events synchronously.
type ChangeListener func(FieldChange)

// Table holds the current line list. It is not safe for concurrent use;
// the owning Session serializes access.
type Table struct {
	lines    []PayableLine
	listener ChangeListener
}

// NewTable returns an empty table notifying listener (which may be nil).
func NewTable(listener ChangeListener) *Table {
	return &Table{listener: listener}
}

// Lines returns a copy of the current lines.
func (t *Table) Lines() []PayableLine {
	return cloneLines(t.lines)
}

func (t *Table) Len() int { return len(t.lines) }

// Line returns the line at index i.
func (t *Table) Line(i int) (PayableLine, error) {
	if i < 0 || i >= len(t.lines) {
		return PayableLine{}, fmt.Errorf("%w: index %d of %d", ErrLineNotFound, i, len(t.lines))
	}
	return t.lines[i].clone(), nil
}

// Clear empties the table without firing events.
func (t *Table) Clear() {
	t.lines = nil
}

// Replace discards every line and appends the given ones in order, firing
// a change for each populated numeric field as the host would.
func (t *Table) Replace(lines []PayableLine) {
	t.lines = make([]PayableLine, 0, len(lines))
	for _, l := range lines {
		t.lines = append(t.lines, l.clone())
		i := len(t.lines) - 1
		t.fire(i, FieldDayCount)
		if l.RatePerDay != nil {
			t.fire(i, FieldRatePerDay)
		}
		t.fire(i, FieldAmount)
	}
}

// Set writes one numeric field and fires its change.
// Setting a rate gives the line a rate basis.
func (t *Table) Set(i int, f Field, v decimal.Decimal) error {
	if i < 0 || i >= len(t.lines) {
		return fmt.Errorf("%w: index %d of %d", ErrLineNotFound, i, len(t.lines))
	}
	line := &t.lines[i]
	switch f {
	case FieldDayCount:
		line.DayCount = v
		if line.WorkedDays != nil {
			line.WorkedDays = copyDecimal(&v)
		}
	case FieldRatePerDay:
		line.RatePerDay = &v
		line.Basis = BasisRated
	case FieldAmount:
		line.Amount = v
		// auto_amount mirrors amount when the table has it
		if line.AutoAmount != nil {
			line.AutoAmount = copyDecimal(&v)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	t.fire(i, f)
	return nil
}

func (t *Table) fire(i int, f Field) {
	if t.listener != nil {
		t.listener(FieldChange{Index: i, Field: f})
	}
}
