// Package money holds the amount and quantity primitives of the catalog:
// amounts are int64 minor units (cents), quantities are decimals.
package money

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RoundHalfUp rounds d to the nearest integer, halves away from zero.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// Total is the charged amount for qty units at unitQ each. Never truncates.
func Total(unitQ int64, qty decimal.Decimal) int64 {
	return RoundHalfUp(decimal.NewFromInt(unitQ).Mul(qty))
}

// UnitPrice derives a unit price from a total. For qty <= 0 the total is
// returned unchanged.
func UnitPrice(totalQ int64, qty decimal.Decimal) int64 {
	if !qty.IsPositive() {
		return totalQ
	}
	return RoundHalfUp(decimal.NewFromInt(totalQ).Div(qty))
}

// MarginPercent returns (base-cost)*100/base rounded to one decimal place.
// ok is false when base is zero.
func MarginPercent(baseQ, costQ int64) (decimal.Decimal, bool) {
	if baseQ == 0 {
		return decimal.Zero, false
	}
	margin := decimal.NewFromInt(baseQ - costQ).Mul(hundred).Div(decimal.NewFromInt(baseQ))
	return margin.Round(1), true
}

// FromUnits converts a currency amount (12.50) to cents, rounding half up.
func FromUnits(amount decimal.Decimal) int64 {
	return RoundHalfUp(amount.Mul(hundred))
}

// ToUnits converts cents to a currency amount.
func ToUnits(q int64) decimal.Decimal {
	return decimal.NewFromInt(q).Div(hundred)
}

// Format renders cents as "1.234,56".
func Format(q int64) string {
	sign := ""
	if q < 0 {
		sign = "-"
		q = -q
	}

	whole := strconv.FormatInt(q/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	return fmt.Sprintf("%s%s,%02d", sign, b.String(), q%100)
}

// ParseQuantity parses a decimal quantity; an empty string means one unit.
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NewFromInt(1), nil
	}
	qty, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return qty, nil
}
