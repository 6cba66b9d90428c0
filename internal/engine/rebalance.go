package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"compraprogramada/internal/ledger"
)

// Mode selects the trigger condition of a rebalancing run.
type Mode int

const (
	// ModeBasketChange rebalances every client holding any position.
	ModeBasketChange Mode = iota
	// ModeDeviation rebalances only clients drifting beyond the threshold.
	ModeDeviation
)

type SaleFill struct {
	Ticker     string
	Quantity   int64
	Price      decimal.Decimal
	AvgCost    decimal.Decimal
	TotalValue decimal.Decimal
	Profit     decimal.Decimal
}

type BuyFill struct {
	Ticker     string
	Quantity   int64
	Price      decimal.Decimal
	TotalValue decimal.Decimal
}

type Outcome struct {
	Changed        bool
	Sales          []SaleFill
	Buys           []BuyFill
	TotalSales     decimal.Decimal
	TotalPurchases decimal.Decimal
}

// Weight is the current share of a basket ticker against its target.
type Weight struct {
	Ticker    string
	Current   decimal.Decimal
	Target    decimal.Decimal
	Deviation decimal.Decimal
}

// Weights reports current vs target percentages for each basket item,
// sorted by ticker. Returns nil when the portfolio has no value.
func Weights(book *ledger.Book, items []Item, prices map[string]decimal.Decimal) []Weight {
	total := book.Value(prices)
	if !total.IsPositive() {
		return nil
	}
	items = NormalizeItems(items)
	out := make([]Weight, 0, len(items))
	for _, it := range items {
		current := ledger.Share(book.Get(it.Ticker).Value(prices[it.Ticker]), total)
		out = append(out, Weight{
			Ticker:    it.Ticker,
			Current:   current,
			Target:    it.Percentage,
			Deviation: current.Sub(it.Percentage).Abs(),
		})
	}
	return out
}

// Deviates reports whether any basket item is off target by more than
// threshold percentage points.
func Deviates(book *ledger.Book, items []Item, prices map[string]decimal.Decimal, threshold decimal.Decimal) bool {
	for _, w := range Weights(book, items, prices) {
		if w.Deviation.GreaterThan(threshold) {
			return true
		}
	}
	return false
}

// Rebalance moves book towards the basket: it liquidates tickers outside the
// basket, trims over-weighted ones and spends the proceeds on under-weighted
// ones in proportion to each deficit. Targets are measured against the
// portfolio value before any trade. prices must cover every held ticker and
// every basket ticker.
func Rebalance(book *ledger.Book, items []Item, prices map[string]decimal.Decimal, mode Mode, threshold decimal.Decimal) (Outcome, error) {
	out := Outcome{TotalSales: decimal.Zero, TotalPurchases: decimal.Zero}
	positions := book.Positions()
	if len(positions) == 0 {
		return out, nil
	}
	items = NormalizeItems(items)
	for _, h := range positions {
		if _, ok := prices[h.Ticker]; !ok {
			return out, fmt.Errorf("rebalance: no price for %s", h.Ticker)
		}
	}
	for _, it := range items {
		if _, ok := prices[it.Ticker]; !ok {
			return out, fmt.Errorf("rebalance: no price for %s", it.Ticker)
		}
	}

	total := book.Value(prices)
	if !total.IsPositive() {
		return out, nil
	}
	if mode == ModeDeviation && !Deviates(book, items, prices, threshold) {
		return out, nil
	}

	inBasket := make(map[string]struct{}, len(items))
	for _, it := range items {
		inBasket[it.Ticker] = struct{}{}
	}
	cash := decimal.Zero

	sell := func(ticker string, qty int64) error {
		h := book.Get(ticker)
		price := prices[ticker]
		if err := book.Sell(ticker, qty); err != nil {
			return err
		}
		q := decimal.NewFromInt(qty)
		fill := SaleFill{
			Ticker:     ticker,
			Quantity:   qty,
			Price:      price,
			AvgCost:    h.AvgPrice,
			TotalValue: q.Mul(price),
			Profit:     q.Mul(price.Sub(h.AvgPrice)),
		}
		out.Sales = append(out.Sales, fill)
		cash = cash.Add(fill.TotalValue)
		out.TotalSales = out.TotalSales.Add(fill.TotalValue)
		return nil
	}

	for _, h := range positions {
		if _, ok := inBasket[h.Ticker]; ok {
			continue
		}
		if err := sell(h.Ticker, h.Quantity); err != nil {
			return out, err
		}
	}

	for _, it := range items {
		h := book.Get(it.Ticker)
		if h.Quantity <= 0 {
			continue
		}
		price := prices[it.Ticker]
		current := h.Value(price)
		target := total.Mul(it.Percentage).Div(hundred)
		if current.LessThanOrEqual(target) {
			continue
		}
		qty := ledger.Units(current.Sub(target), price)
		if qty <= 0 {
			continue
		}
		if err := sell(it.Ticker, qty); err != nil {
			return out, err
		}
	}

	type deficit struct {
		ticker string
		amount decimal.Decimal
	}
	var deficits []deficit
	totalDeficit := decimal.Zero
	for _, it := range items {
		current := book.Get(it.Ticker).Value(prices[it.Ticker])
		target := total.Mul(it.Percentage).Div(hundred)
		if d := target.Sub(current); d.IsPositive() {
			deficits = append(deficits, deficit{ticker: it.Ticker, amount: d})
			totalDeficit = totalDeficit.Add(d)
		}
	}

	if cash.IsPositive() && totalDeficit.IsPositive() {
		// Each share is taken from what is left of the pool, so later
		// tickers in sort order see a smaller base.
		for _, d := range deficits {
			price := prices[d.ticker]
			qty := ledger.Units(cash.Mul(d.amount).Div(totalDeficit), price)
			if qty <= 0 {
				continue
			}
			book.Buy(d.ticker, qty, price)
			value := price.Mul(decimal.NewFromInt(qty))
			out.Buys = append(out.Buys, BuyFill{Ticker: d.ticker, Quantity: qty, Price: price, TotalValue: value})
			cash = cash.Sub(value)
			out.TotalPurchases = out.TotalPurchases.Add(value)
		}
	}

	out.Changed = out.TotalSales.IsPositive() || out.TotalPurchases.IsPositive()
	return out, nil
}
