// Package pricing holds the money arithmetic shared by the catalog, the cart
// and checkout. Amounts are stored as float64 in MongoDB but every calculation
// goes through decimal so totals do not drift.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DiscountedPrice applies a percentage discount and rounds to the nearest
// whole unit. A non-positive discount returns price unchanged; discounts above
// 100 are clamped.
func DiscountedPrice(price, discount float64) float64 {
	if discount <= 0 {
		return price
	}
	if discount > 100 {
		discount = 100
	}

	p := decimal.NewFromFloat(price)
	off := p.Mul(decimal.NewFromFloat(discount)).Div(hundred)
	return p.Sub(off).Round(0).InexactFloat64()
}

// Line is one priced quantity.
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Total sums unit price times quantity over lines, rounded to 2 places.
func Total(lines []Line) float64 {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(decimal.NewFromFloat(line.UnitPrice).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// MinorUnits converts an amount to the gateway's smallest currency unit
// (paise, cents).
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}
