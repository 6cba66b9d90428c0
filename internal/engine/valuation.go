package engine

import (
	"github.com/shopspring/decimal"

	"compraprogramada/internal/ledger"
)

// Snapshot is the valuation of one client's book at a reference date.
type Snapshot struct {
	PortfolioValue decimal.Decimal
	InvestedValue  decimal.Decimal
	ReturnPct      decimal.Decimal
}

// Valuation prices book and compares it to the all-time invested amount.
func Valuation(book *ledger.Book, prices map[string]decimal.Decimal, invested decimal.Decimal) Snapshot {
	value := ledger.Money(book.Value(prices))
	invested = ledger.Money(invested)
	ret := decimal.Zero
	if invested.IsPositive() {
		ret = ledger.Percent(value.Sub(invested).Div(invested).Mul(hundred))
	}
	return Snapshot{PortfolioValue: value, InvestedValue: invested, ReturnPct: ret}
}
