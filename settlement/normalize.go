package settlement

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize coerces a numeric-like value to a decimal.
// Absent, empty or unparsable input yields zero. It never fails.
func Normalize(v any) decimal.Decimal {
	switch n := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return n
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero
		}
		return *n
	case Number:
		return n.Decimal()
	case *Number:
		if n == nil {
			return decimal.Zero
		}
		return n.Decimal()
	case int:
		return decimal.NewFromInt(int64(n))
	case int8:
		return decimal.NewFromInt(int64(n))
	case int16:
		return decimal.NewFromInt(int64(n))
	case int32:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case uint:
		return decimal.NewFromUint64(uint64(n))
	case uint8:
		return decimal.NewFromUint64(uint64(n))
	case uint16:
		return decimal.NewFromUint64(uint64(n))
	case uint32:
		return decimal.NewFromUint64(uint64(n))
	case uint64:
		return decimal.NewFromUint64(n)
	case float32:
		return normalizeFloat(float64(n))
	case float64:
		return normalizeFloat(n)
	case string:
		return normalizeString(n)
	case *string:
		if n == nil {
			return decimal.Zero
		}
		return normalizeString(*n)
	case interface{ String() string }:
		// json.Number and similar textual numerics
		return normalizeString(n.String())
	default:
		return decimal.Zero
	}
}

func normalizeFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

func normalizeString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err == nil {
		return d
	}
	// strconv also understands "Inf", "NaN" and hex floats; the first two end up as zero.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return decimal.Zero
	}
	return normalizeFloat(f)
}
