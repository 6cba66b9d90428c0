// Package engine holds the allocation and rebalancing math. Everything here
// is synchronous and deterministic: tickers are processed in sorted order,
// clients in the order given by the caller.
package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"compraprogramada/internal/quote"
)

const BasketSize = 5

var (
	ErrBasketSize       = errors.New("basket must have exactly 5 items")
	ErrBasketTicker     = errors.New("basket ticker is required")
	ErrBasketPercentage = errors.New("basket percentages must be positive")
	ErrBasketDuplicate  = errors.New("basket tickers must be unique")
	ErrBasketSum        = errors.New("basket percentages must sum to 100")
	basketSumTolerance  = decimal.RequireFromString("0.0001")
	hundred             = decimal.NewFromInt(100)
)

// Item is one ticker of a target allocation.
type Item struct {
	Ticker     string
	Percentage decimal.Decimal
}

// NormalizeItems upper-cases tickers and returns the items sorted by ticker.
func NormalizeItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, Item{Ticker: quote.Key(it.Ticker), Percentage: it.Percentage})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func ValidateBasket(items []Item) error {
	if len(items) != BasketSize {
		return fmt.Errorf("%w: got %d", ErrBasketSize, len(items))
	}
	seen := make(map[string]struct{}, len(items))
	sum := decimal.Zero
	for _, it := range items {
		t := quote.Key(it.Ticker)
		if t == "" {
			return ErrBasketTicker
		}
		if _, ok := seen[t]; ok {
			return fmt.Errorf("%w: %s", ErrBasketDuplicate, t)
		}
		seen[t] = struct{}{}
		if !it.Percentage.IsPositive() {
			return fmt.Errorf("%w: %s=%s", ErrBasketPercentage, t, it.Percentage)
		}
		sum = sum.Add(it.Percentage)
	}
	if sum.Sub(hundred).Abs().GreaterThan(basketSumTolerance) {
		return fmt.Errorf("%w: got %s", ErrBasketSum, sum)
	}
	return nil
}

// Diff returns the tickers only in prev (removed) and only in next (added),
// both sorted.
func Diff(prev, next []string) (removed, added []string) {
	inPrev := make(map[string]struct{}, len(prev))
	for _, t := range prev {
		inPrev[quote.Key(t)] = struct{}{}
	}
	inNext := make(map[string]struct{}, len(next))
	for _, t := range next {
		inNext[quote.Key(t)] = struct{}{}
	}
	removed = []string{}
	added = []string{}
	for t := range inPrev {
		if _, ok := inNext[t]; !ok {
			removed = append(removed, t)
		}
	}
	for t := range inNext {
		if _, ok := inPrev[t]; !ok {
			added = append(added, t)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	return removed, added
}
