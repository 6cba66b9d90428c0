package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBookBuy_WeightedAverage(t *testing.T) {
	b := NewBook()
	b.Buy("PETR4", 10, dec("30"))
	b.Buy("PETR4", 10, dec("40"))
	h := b.Get("PETR4")
	if h.Quantity != 20 {
		t.Fatalf("qty=%d want=20", h.Quantity)
	}
	if !h.AvgPrice.Equal(dec("35")) {
		t.Fatalf("avg=%s want=35", h.AvgPrice)
	}
}

func TestBookSell_ResetsAverageAtZero(t *testing.T) {
	b := NewBook(Holding{Ticker: "VALE3", Quantity: 5, AvgPrice: dec("60")})
	if err := b.Sell("VALE3", 5); err != nil {
		t.Fatalf("sell err=%v", err)
	}
	h := b.Get("VALE3")
	if h.Quantity != 0 || !h.AvgPrice.IsZero() {
		t.Fatalf("holding=%+v want zeroed", h)
	}
	if len(b.Positions()) != 0 {
		t.Fatalf("positions=%v want empty", b.Positions())
	}
	if len(b.Changed()) != 1 {
		t.Fatalf("changed=%v want the zeroed holding", b.Changed())
	}
}

func TestBookSell_OversellIsError(t *testing.T) {
	b := NewBook(Holding{Ticker: "ITUB4", Quantity: 3, AvgPrice: dec("30")})
	err := b.Sell("ITUB4", 4)
	if !errors.Is(err, ErrInsufficientQuantity) {
		t.Fatalf("err=%v want ErrInsufficientQuantity", err)
	}
	if b.Quantity("ITUB4") != 3 {
		t.Fatalf("qty=%d want unchanged 3", b.Quantity("ITUB4"))
	}
	if err := b.Sell("BBDC4", 1); !errors.Is(err, ErrInsufficientQuantity) {
		t.Fatalf("err=%v want ErrInsufficientQuantity for missing ticker", err)
	}
}

func TestCustodyRemove_Underflow(t *testing.T) {
	at := time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)
	c := NewCustody(CustodyHolding{Holding: Holding{Ticker: "WEGE3", Quantity: 2, AvgPrice: dec("40")}, Origin: "Inicial"})
	c.Add("WEGE3", 3, dec("45"), "Compra consolidada 2025-03-05", at)
	if c.Quantity("WEGE3") != 5 {
		t.Fatalf("qty=%d want=5", c.Quantity("WEGE3"))
	}
	if err := c.Remove("WEGE3", 6, "Distribuicao 2025-03-05", at); !errors.Is(err, ErrInsufficientQuantity) {
		t.Fatalf("err=%v want ErrInsufficientQuantity", err)
	}
	if err := c.Remove("WEGE3", 4, "Distribuicao 2025-03-05", at); err != nil {
		t.Fatalf("remove err=%v", err)
	}
	got := c.Get("WEGE3")
	if got.Quantity != 1 || got.Origin != "Distribuicao 2025-03-05" || !got.UpdatedAt.Equal(at) {
		t.Fatalf("custody=%+v", got)
	}
	if !got.AvgPrice.Equal(dec("43")) {
		t.Fatalf("avg=%s want=43", got.AvgPrice)
	}
}

func TestRounding(t *testing.T) {
	if got := Money(dec("2.345")); !got.Equal(dec("2.35")) {
		t.Fatalf("money=%s want=2.35", got)
	}
	if got := Money(dec("-2.345")); !got.Equal(dec("-2.35")) {
		t.Fatalf("money=%s want=-2.35", got)
	}
	if got := Percent(dec("12.34565")); !got.Equal(dec("12.3457")) {
		t.Fatalf("percent=%s want=12.3457", got)
	}
	if got := Units(dec("300"), dec("35")); got != 8 {
		t.Fatalf("units=%d want=8", got)
	}
	if got := Units(dec("100"), decimal.Zero); got != 0 {
		t.Fatalf("units=%d want=0 for zero price", got)
	}
	if got := Quantity(dec("7.999")); got != 7 {
		t.Fatalf("quantity=%d want=7", got)
	}
}
