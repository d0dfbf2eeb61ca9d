package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/shopspring/decimal"
)

// ParseAmount reads a fund amount in whole minor units. It accepts
// user-formatted strings like "20,000" or "MMK 20000" and json numbers.
// Fractional or negative amounts are rejected.
func ParseAmount(i interface{}) (int64, error) {
	var d decimal.Decimal
	switch v := i.(type) {
	case string:
		s := strings.TrimSpace(v)
		s = strings.ReplaceAll(s, ",", "")
		for _, unit := range []string{"MMK", "mmk", "Ks", "ks"} {
			s = strings.ReplaceAll(s, unit, "")
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, fmt.Errorf("invalid amount")
		}
		val, err := decimal.NewFromString(s)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", v)
		}
		d = val
	case json.Number:
		val, err := decimal.NewFromString(v.String())
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", v)
		}
		d = val
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return 0, fmt.Errorf("invalid amount")
	}

	if d.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("amount must be a whole number of minor units")
	}
	if !d.LessThanOrEqual(decimal.NewFromInt(models.MaxAmount)) {
		return 0, fmt.Errorf("amount is too large")
	}
	return d.IntPart(), nil
}

// FormatAmount renders minor units with thousands separators.
func FormatAmount(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
