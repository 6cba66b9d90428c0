package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Money rounds to cents, half away from zero.
func Money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Price keeps six decimal places.
func Price(d decimal.Decimal) decimal.Decimal { return d.Round(6) }

// Percent keeps four decimal places.
func Percent(d decimal.Decimal) decimal.Decimal { return d.Round(4) }

// Quantity truncates toward zero. Every amount-to-units conversion goes
// through it, so allocations never exceed the cash or inventory they are
// derived from.
func Quantity(d decimal.Decimal) int64 {
	return d.Truncate(0).IntPart()
}

// Units converts an amount into whole units at price. A non-positive price
// yields zero.
func Units(amount, price decimal.Decimal) int64 {
	if !price.IsPositive() || !amount.IsPositive() {
		return 0
	}
	return Quantity(amount.Div(price))
}

// Share is part/whole expressed in percent. Zero when whole is not positive.
func Share(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
