// Package money keeps price arithmetic in decimal so order totals do not
// drift the way repeated float64 addition does.
package money

import "github.com/shopspring/decimal"

const centsPlaces = 2

// LineTotal returns price * quantity.
func LineTotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

// Line is anything priced per unit.
type Line interface {
	UnitPrice() float64
	Units() int
}

// Total sums every line and rounds to cents.
func Total[L Line](lines []L) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(LineTotal(line.UnitPrice(), line.Units()))
	}
	return sum.Round(centsPlaces)
}

// Float converts a decimal amount to the float64 carried in JSON payloads.
func Float(amount decimal.Decimal) float64 {
	f, _ := amount.Round(centsPlaces).Float64()
	return f
}

// Equal compares two float amounts at cent precision.
func Equal(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(centsPlaces).Equal(decimal.NewFromFloat(b).Round(centsPlaces))
}
