package settlement_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/settlement-engine/settlement"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	if !d(want).Equal(got) {
		assert.Fail(t, "decimal mismatch", append([]any{"want %s, got %s", want, got}, msgAndArgs...)...)
	}
}

// =============================================================================
// DEFAULT RULES
// =============================================================================

func TestRules_WorkedDayCappedAt30(t *testing.T) {
	rules := settlement.NewRules()

	tests := []struct {
		name      string
		component string
		days      string
		rate      string
		want      string
	}{
		{"over cap", "Worked Day", "45", "100", "3000"},
		{"at cap", "Worked Day", "30", "100", "3000"},
		{"under cap", "Worked Day", "20", "100", "2000"},
		{"31 days", "Worked Day", "31", "100", "3000"},
		{"fractional days", "Worked Day", "12.5", "80", "1000"},
		{"padded name still capped", "  Worked Day ", "45", "100", "3000"},
		{"case-sensitive name", "worked day", "45", "100", "4500"},
		{"other component uncapped", "Leave Encashment", "45", "100", "4500"},
		{"negative days not clamped", "Notice Pay", "-5", "100", "-500"},
		{"zero rate", "Worked Day", "10", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rules.Compute(tt.component, d(tt.days), d(tt.rate))
			assertDecimal(t, tt.want, got)
		})
	}
}

func TestRules_ComputeIsPure(t *testing.T) {
	rules := settlement.NewRules()

	first := rules.Compute("Worked Day", d("45"), d("100"))
	second := rules.Compute("Worked Day", d("45"), d("100"))

	assert.True(t, first.Equal(second))
}

func TestRules_WithCap(t *testing.T) {
	// GIVEN: Notice Pay capped at 60 days
	base := settlement.NewRules()
	rules := base.WithCap("Notice Pay", d("60"))

	// THEN: Notice Pay is capped, the base rules are untouched
	assertDecimal(t, "600", rules.Compute("Notice Pay", d("90"), d("10")))
	assertDecimal(t, "900", base.Compute("Notice Pay", d("90"), d("10")))

	limit, ok := rules.Cap("Notice Pay")
	assert.True(t, ok)
	assertDecimal(t, "60", limit)
}

func TestRules_WorkedDayCapCannotBeReplaced(t *testing.T) {
	rules := settlement.NewRules().WithCap(settlement.WorkedDayComponent, d("100"))

	assertDecimal(t, "3000", rules.Compute("Worked Day", d("45"), d("100")))
}

func TestComputeAmount_NormalizesInputs(t *testing.T) {
	assertDecimal(t, "3000", settlement.ComputeAmount("Worked Day", "45", 100.0))
	assertDecimal(t, "150", settlement.ComputeAmount("Leave Encashment", 1.5, "100"))
	assertDecimal(t, "0", settlement.ComputeAmount("Worked Day", nil, 100))
	assertDecimal(t, "0", settlement.ComputeAmount("Worked Day", "abc", 100))
	assertDecimal(t, "0", settlement.ComputeAmount("Worked Day", 10, ""))
}
