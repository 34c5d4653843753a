package types

import "github.com/shopspring/decimal"

var centsPerUnit = decimal.NewFromInt(100)

// CentsToDecimal converts an integer cent amount to a decimal dollar value.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(centsPerUnit)
}

// DecimalToCents converts a decimal dollar value to integer cents, rounding
// half away from zero at the second decimal place.
func DecimalToCents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(centsPerUnit).IntPart()
}
