// Package money holds BRL cent arithmetic. Amounts are int64 cents at rest;
// decimal is used wherever a rate is applied so rounding is explicit.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FromCents converts cents into a decimal amount of reais.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

// ToCents rounds a decimal amount of reais to the nearest cent.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// Percent returns pct percent of cents, rounded half away from zero.
func Percent(cents int64, pct int64) int64 {
	return decimal.NewFromInt(cents).
		Mul(decimal.NewFromInt(pct)).
		Div(hundred).
		Round(0).
		IntPart()
}

// WholeUnits returns the number of complete reais in cents.
func WholeUnits(cents int64) int64 {
	return FromCents(cents).Floor().IntPart()
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}
	fixed := FromCents(cents).StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	out := "R$ " + grouped.String() + "," + frac
	if negative {
		return "-" + out
	}
	return out
}
