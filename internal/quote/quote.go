// Package quote resolves closing prices for tickers as of a reference date.
package quote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Resolver returns one closing price per requested ticker, taken from the
// most recent trading data not later than asOf. It is all-or-nothing: if any
// ticker cannot be priced the whole call fails. Result keys are the
// requested tickers, trimmed and upper-cased.
type Resolver interface {
	Resolve(ctx context.Context, tickers []string, asOf time.Time) (map[string]decimal.Decimal, error)
}

// UnresolvedError lists the tickers without a price up to AsOf.
type UnresolvedError struct {
	Tickers []string
	AsOf    time.Time
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("no closing price up to %s for: %s", e.AsOf.Format(time.DateOnly), strings.Join(e.Tickers, ", "))
}

// Key is the canonical form used for result maps.
func Key(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// NormalizeTicker maps a fractional-market code (PETR4F) to its round-lot
// series (PETR4).
func NormalizeTicker(ticker string) string {
	t := Key(ticker)
	return strings.TrimSuffix(t, "F")
}

// Keys returns the distinct canonical keys of tickers, sorted.
func Keys(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		k := Key(t)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
