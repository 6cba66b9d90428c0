package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientQuantity signals an attempt to remove more units than held.
// It always indicates a defect in the caller.
var ErrInsufficientQuantity = errors.New("insufficient quantity")

// Holding is a position in one ticker at a weighted average cost.
type Holding struct {
	Ticker   string
	Quantity int64
	AvgPrice decimal.Decimal
}

func (h *Holding) buy(quantity int64, price decimal.Decimal) {
	if quantity <= 0 {
		return
	}
	if h.Quantity == 0 {
		h.Quantity = quantity
		h.AvgPrice = price
		return
	}
	prior := h.AvgPrice.Mul(decimal.NewFromInt(h.Quantity))
	added := price.Mul(decimal.NewFromInt(quantity))
	h.Quantity += quantity
	h.AvgPrice = prior.Add(added).Div(decimal.NewFromInt(h.Quantity))
}

func (h *Holding) sell(quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	if quantity > h.Quantity {
		return fmt.Errorf("%w: %s remove %d of %d", ErrInsufficientQuantity, h.Ticker, quantity, h.Quantity)
	}
	h.Quantity -= quantity
	if h.Quantity == 0 {
		h.AvgPrice = decimal.Zero
	}
	return nil
}

// Value is quantity times price.
func (h Holding) Value(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(h.Quantity))
}

// Book owns the holdings of one account. Callers read copies and mutate
// only through Buy and Sell.
type Book struct {
	holdings map[string]*Holding
	touched  map[string]struct{}
}

func NewBook(holdings ...Holding) *Book {
	b := &Book{
		holdings: make(map[string]*Holding, len(holdings)),
		touched:  map[string]struct{}{},
	}
	for _, h := range holdings {
		h := h
		b.holdings[h.Ticker] = &h
	}
	return b
}

func (b *Book) Buy(ticker string, quantity int64, price decimal.Decimal) {
	if quantity <= 0 {
		return
	}
	h, ok := b.holdings[ticker]
	if !ok {
		h = &Holding{Ticker: ticker}
		b.holdings[ticker] = h
	}
	h.buy(quantity, price)
	b.touched[ticker] = struct{}{}
}

func (b *Book) Sell(ticker string, quantity int64) error {
	if quantity <= 0 {
		return nil
	}
	h, ok := b.holdings[ticker]
	if !ok {
		return fmt.Errorf("%w: %s not held", ErrInsufficientQuantity, ticker)
	}
	if err := h.sell(quantity); err != nil {
		return err
	}
	b.touched[ticker] = struct{}{}
	return nil
}

// Get returns a copy of the holding; the zero Holding when absent.
func (b *Book) Get(ticker string) Holding {
	if h, ok := b.holdings[ticker]; ok {
		return *h
	}
	return Holding{Ticker: ticker}
}

func (b *Book) Quantity(ticker string) int64 {
	return b.Get(ticker).Quantity
}

// Positions returns holdings with a positive quantity sorted by ticker.
func (b *Book) Positions() []Holding {
	out := make([]Holding, 0, len(b.holdings))
	for _, h := range b.holdings {
		if h.Quantity > 0 {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Changed returns every holding mutated since the book was built, zeroed
// ones included, sorted by ticker.
func (b *Book) Changed() []Holding {
	out := make([]Holding, 0, len(b.touched))
	for ticker := range b.touched {
		out = append(out, *b.holdings[ticker])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func (b *Book) Empty() bool {
	for _, h := range b.holdings {
		if h.Quantity > 0 {
			return false
		}
	}
	return true
}

// Value sums quantity*price over positive holdings. Missing prices count
// as zero.
func (b *Book) Value(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, h := range b.holdings {
		if h.Quantity <= 0 {
			continue
		}
		total = total.Add(h.Value(prices[h.Ticker]))
	}
	return total
}

// CustodyHolding is a master account position with provenance.
type CustodyHolding struct {
	Holding
	Origin    string
	UpdatedAt time.Time
}

// Custody is the master account ledger.
type Custody struct {
	book    *Book
	origin  map[string]string
	updated map[string]time.Time
}

func NewCustody(holdings ...CustodyHolding) *Custody {
	c := &Custody{
		book:    NewBook(),
		origin:  map[string]string{},
		updated: map[string]time.Time{},
	}
	for _, h := range holdings {
		h := h.Holding
		c.book.holdings[h.Ticker] = &h
	}
	for _, h := range holdings {
		c.origin[h.Ticker] = h.Origin
		c.updated[h.Ticker] = h.UpdatedAt
	}
	return c
}

func (c *Custody) Add(ticker string, quantity int64, price decimal.Decimal, origin string, at time.Time) {
	if quantity <= 0 {
		return
	}
	c.book.Buy(ticker, quantity, price)
	c.origin[ticker] = origin
	c.updated[ticker] = at
}

func (c *Custody) Remove(ticker string, quantity int64, origin string, at time.Time) error {
	if quantity <= 0 {
		return nil
	}
	if err := c.book.Sell(ticker, quantity); err != nil {
		return fmt.Errorf("master custody: %w", err)
	}
	c.origin[ticker] = origin
	c.updated[ticker] = at
	return nil
}

func (c *Custody) Quantity(ticker string) int64 {
	return c.book.Quantity(ticker)
}

func (c *Custody) Get(ticker string) CustodyHolding {
	return CustodyHolding{
		Holding:   c.book.Get(ticker),
		Origin:    c.origin[ticker],
		UpdatedAt: c.updated[ticker],
	}
}

// Changed returns the mutated master positions sorted by ticker.
func (c *Custody) Changed() []CustodyHolding {
	changed := c.book.Changed()
	out := make([]CustodyHolding, 0, len(changed))
	for _, h := range changed {
		out = append(out, CustodyHolding{Holding: h, Origin: c.origin[h.Ticker], UpdatedAt: c.updated[h.Ticker]})
	}
	return out
}
