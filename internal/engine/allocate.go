package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"compraprogramada/internal/ledger"
)

const (
	installmentsPerMonth = 3
	standardLot          = 100
)

var installments = decimal.NewFromInt(installmentsPerMonth)

// Contributor is an active client taking part in a purchase. Book is mutated
// in place.
type Contributor struct {
	ClientID     uint64
	MonthlyValue decimal.Decimal
	Book         *ledger.Book
}

// Installment is the share of the monthly value invested at one date.
func (c Contributor) Installment() decimal.Decimal {
	return c.MonthlyValue.Div(installments)
}

type AllocationInput struct {
	Items        []Item
	Prices       map[string]decimal.Decimal
	Contributors []Contributor
	Master       *ledger.Custody
	// Origin labels written on master positions.
	BuyOrigin          string
	DistributionOrigin string
	At                 time.Time
}

type Order struct {
	Ticker      string
	Quantity    int64
	StandardLot int64
	Fractional  int64
	UnitPrice   decimal.Decimal
	TotalValue  decimal.Decimal
}

// Trade is one client receiving units from the master account.
type Trade struct {
	ClientID uint64
	Ticker   string
	Quantity int64
	Price    decimal.Decimal
}

type Distribution struct {
	ClientID     uint64
	Contribution decimal.Decimal
	Trades       []Trade
}

type Residual struct {
	Ticker   string
	Quantity int64
}

type Allocation struct {
	TotalConsolidated decimal.Decimal
	Orders            []Order
	Distributions     []Distribution
	Available         map[string]int64
	Distributed       map[string]int64
	Residuals         []Residual
}

// Trades flattens the distributions in client then ticker order.
func (a Allocation) Trades() []Trade {
	var out []Trade
	for _, d := range a.Distributions {
		out = append(out, d.Trades...)
	}
	return out
}

// Allocate buys the consolidated target for the basket into the master
// account, then hands units to each contributor in proportion to their
// installment. Quantities are floored at every step; whatever cannot be
// handed out stays in the master account as residual and is never
// redistributed later.
func Allocate(in AllocationInput) (Allocation, error) {
	if in.Master == nil {
		return Allocation{}, fmt.Errorf("allocate: master custody is nil")
	}
	items := NormalizeItems(in.Items)
	for _, it := range items {
		if p, ok := in.Prices[it.Ticker]; !ok || !p.IsPositive() {
			return Allocation{}, fmt.Errorf("allocate: no price for %s", it.Ticker)
		}
	}

	monthlyTotal := decimal.Zero
	for _, c := range in.Contributors {
		monthlyTotal = monthlyTotal.Add(c.MonthlyValue)
	}
	out := Allocation{
		TotalConsolidated: monthlyTotal.Div(installments),
		Available:         make(map[string]int64, len(items)),
		Distributed:       make(map[string]int64, len(items)),
	}
	if !monthlyTotal.IsPositive() {
		return out, nil
	}

	for _, it := range items {
		price := in.Prices[it.Ticker]
		// totalConsolidated * pct/100 / price, kept as one division.
		target := ledger.Quantity(monthlyTotal.Mul(it.Percentage).Div(installments.Mul(hundred).Mul(price)))
		held := in.Master.Quantity(it.Ticker)
		buy := target - held
		if buy < 0 {
			buy = 0
		}
		if buy > 0 {
			out.Orders = append(out.Orders, Order{
				Ticker:      it.Ticker,
				Quantity:    buy,
				StandardLot: (buy / standardLot) * standardLot,
				Fractional:  buy % standardLot,
				UnitPrice:   price,
				TotalValue:  price.Mul(decimal.NewFromInt(buy)),
			})
			in.Master.Add(it.Ticker, buy, price, in.BuyOrigin, in.At)
		}
		out.Available[it.Ticker] = held + buy
	}

	for _, c := range in.Contributors {
		if c.Book == nil {
			return Allocation{}, fmt.Errorf("allocate: client %d has no book", c.ClientID)
		}
		dist := Distribution{ClientID: c.ClientID, Contribution: c.Installment()}
		for _, it := range items {
			// available * (installment / total) with the /3 cancelled out.
			qty := ledger.Quantity(decimal.NewFromInt(out.Available[it.Ticker]).Mul(c.MonthlyValue).Div(monthlyTotal))
			if qty <= 0 {
				continue
			}
			price := in.Prices[it.Ticker]
			c.Book.Buy(it.Ticker, qty, price)
			dist.Trades = append(dist.Trades, Trade{ClientID: c.ClientID, Ticker: it.Ticker, Quantity: qty, Price: price})
			out.Distributed[it.Ticker] += qty
		}
		out.Distributions = append(out.Distributions, dist)
	}

	for _, it := range items {
		distributed := out.Distributed[it.Ticker]
		if distributed > out.Available[it.Ticker] {
			return Allocation{}, fmt.Errorf("allocate: %s distributed %d of %d available", it.Ticker, distributed, out.Available[it.Ticker])
		}
		if err := in.Master.Remove(it.Ticker, distributed, in.DistributionOrigin, in.At); err != nil {
			return Allocation{}, err
		}
		if left := in.Master.Quantity(it.Ticker); left > 0 {
			out.Residuals = append(out.Residuals, Residual{Ticker: it.Ticker, Quantity: left})
		}
	}
	return out, nil
}
