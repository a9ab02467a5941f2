package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToCents converts a dollar amount to minor units, rounding half away from zero.
func ToCents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units to a dollar amount.
func FromCents(cents int64) float64 {
	return decimal.NewFromInt(cents).Shift(-2).InexactFloat64()
}

func roundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func dollars(d decimal.Decimal) float64 {
	return roundCurrency(d).InexactFloat64()
}
