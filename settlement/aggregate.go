package settlement

import "github.com/shopspring/decimal"

// RecomputeTotal sums line amounts in list order. An empty list yields zero.
func RecomputeTotal(lines []PayableLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(Normalize(l.Amount))
	}
	return total
}
