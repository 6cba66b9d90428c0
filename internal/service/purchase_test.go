package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"compraprogramada/internal/fiscal"
	"compraprogramada/internal/models"
)

func TestPurchaseExecuteSingleClient(t *testing.T) {
	f := newFixture()
	f.mustBasket(defaultBasketInput())
	joined := f.mustJoin("ana", "111.111.111-11", "3000")

	got, err := f.purchases.Execute(context.Background(), purchaseDay)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.TotalClients != 1 || !got.TotalConsolidated.Equal(dec("1000")) {
		t.Fatalf("clients=%d total=%s", got.TotalClients, got.TotalConsolidated)
	}
	if len(got.Orders) != 5 || got.TaxEvents != 5 {
		t.Fatalf("orders=%d taxEvents=%d", len(got.Orders), got.TaxEvents)
	}
	for _, o := range got.Orders {
		if o.Ticker == "ITUB4" {
			if len(o.Details) != 1 || o.Details[0].Type != orderDetailFractional || o.Details[0].Ticker != "ITUB4F" {
				t.Fatalf("ITUB4 details=%+v", o.Details)
			}
		}
	}

	want := map[string]int64{"PETR4": 8, "VALE3": 4, "ITUB4": 6, "BBDC4": 10, "WEGE3": 2}
	for ticker, q := range want {
		if h := f.repo.holding(joined.ClientID, ticker); h.Quantity != q {
			t.Fatalf("%s=%d want=%d", ticker, h.Quantity, q)
		}
	}
	if len(f.repo.st.purchases) != 1 || len(f.repo.st.contributions) != 1 {
		t.Fatalf("purchases=%d contributions=%d", len(f.repo.st.purchases), len(f.repo.st.contributions))
	}
	if c := f.repo.st.contributions[0]; !c.Amount.Equal(dec("1000")) || c.Installment != "1/3" {
		t.Fatalf("contribution=%+v", c)
	}

	if len(f.publisher.events) != 5 {
		t.Fatalf("published=%d want=5", len(f.publisher.events))
	}
	for _, ev := range f.publisher.events {
		if ev.Type != fiscal.TypeDedoDuro || ev.TaxID != "11111111111" {
			t.Fatalf("event=%+v", ev)
		}
	}
	if n := len(f.repo.logsWithStatus(models.DeliveryPublished)); n != 5 {
		t.Fatalf("published logs=%d want=5", n)
	}

	snaps, _ := f.repo.ListPortfolioSnapshots(context.Background(), joined.ClientID)
	if len(snaps) != 1 || !snaps[0].PortfolioValue.Equal(dec("938")) || !snaps[0].ReturnPct.Equal(dec("-6.2")) {
		t.Fatalf("snapshots=%+v", snaps)
	}
}

func TestPurchaseExecuteTwiceIsRejected(t *testing.T) {
	f := newFixture()
	f.mustBasket(defaultBasketInput())
	f.mustJoin("ana", "111", "3000")

	if _, err := f.purchases.Execute(context.Background(), purchaseDay); err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	holdings := len(f.repo.st.holdings)
	events := len(f.publisher.events)

	_, err := f.purchases.Execute(context.Background(), purchaseDay)
	if KindOf(err) != KindAlreadyExecuted {
		t.Fatalf("err=%v want=%s", err, KindAlreadyExecuted)
	}
	if len(f.repo.st.purchases) != 1 || len(f.repo.st.holdings) != holdings || len(f.publisher.events) != events {
		t.Fatalf("state changed on rejected run")
	}
}

func TestPurchaseExecuteConcurrentTriggers(t *testing.T) {
	f := newFixture()
	f.mustBasket(defaultBasketInput())
	f.mustJoin("ana", "111", "3000")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.purchases.Execute(context.Background(), purchaseDay)
		}(i)
	}
	wg.Wait()

	ok, conflict := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case KindOf(err) == KindAlreadyExecuted:
			conflict++
		default:
			t.Fatalf("unexpected err=%v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("ok=%d conflict=%d want=1/1", ok, conflict)
	}
	if len(f.repo.st.purchases) != 1 {
		t.Fatalf("purchases=%d want=1", len(f.repo.st.purchases))
	}
}

func TestPurchaseExecuteInvalidDate(t *testing.T) {
	f := newFixture()
	for _, d := range []time.Time{
		time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
		// Sunday; the 5th rolls to Monday the 6th.
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	} {
		if _, err := f.purchases.Execute(context.Background(), d); KindOf(err) != KindInvalidExecutionDate {
			t.Fatalf("%s err=%v", d.Format(time.DateOnly), err)
		}
	}
}

func TestPurchaseExecuteWithoutBasket(t *testing.T) {
	f := newFixture()
	f.mustJoin("ana", "111", "3000")
	if _, err := f.purchases.Execute(context.Background(), purchaseDay); KindOf(err) != KindNoActiveBasket {
		t.Fatalf("err=%v want=%s", err, KindNoActiveBasket)
	}
}

func TestPurchaseExecuteWithoutClients(t *testing.T) {
	f := newFixture()
	f.mustBasket(defaultBasketInput())
	got, err := f.purchases.Execute(context.Background(), purchaseDay)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got.TotalClients != 0 || len(got.Orders) != 0 {
		t.Fatalf("result=%+v", got)
	}
	if len(f.repo.st.purchases) != 0 {
		t.Fatalf("purchases=%d want=0", len(f.repo.st.purchases))
	}
}

func TestPurchaseExecuteMissingQuote(t *testing.T) {
	f := newFixture()
	f.mustBasket(defaultBasketInput())
	f.mustJoin("ana", "111", "3000")
	delete(f.quotes.prices, "WEGE3")

	_, err := f.purchases.Execute(context.Background(), purchaseDay)
	if KindOf(err) != KindQuoteUnresolved {
		t.Fatalf("err=%v want=%s", err, KindQuoteUnresolved)
	}
	if len(f.repo.st.purchases) != 0 || len(f.repo.st.holdings) != 0 {
		t.Fatalf("state written after quote failure")
	}
}

func TestPurchaseExecutePublishFailureRollsBack(t *testing.T) {
	f := newFixture()
	f.mustBasket(defaultBasketInput())
	f.mustJoin("ana", "111", "3000")
	f.publisher.failAt = 3

	_, err := f.purchases.Execute(context.Background(), purchaseDay)
	if KindOf(err) != KindPublishUnavailable {
		t.Fatalf("err=%v want=%s", err, KindPublishUnavailable)
	}
	var domainErr *Error
	if !errors.As(err, &domainErr) || domainErr.Status != 500 {
		t.Fatalf("status=%+v", domainErr)
	}
	if len(f.repo.st.purchases) != 0 || len(f.repo.st.holdings) != 0 || len(f.repo.st.contributions) != 0 {
		t.Fatalf("purchase persisted after publish failure")
	}
	if n := len(f.repo.logsWithStatus(models.DeliveryPublished)); n != 0 {
		t.Fatalf("published logs=%d want=0", n)
	}
	if n := len(f.repo.logsWithStatus(models.DeliveryRevoked)); n != 2 {
		t.Fatalf("revoked logs=%d want=2", n)
	}
	if n := len(f.repo.logsWithStatus(models.DeliveryFailed)); n != 1 {
		t.Fatalf("failed logs=%d want=1", n)
	}

	// The date is still open once the stream is back.
	f.publisher.failAt = 0
	if _, err := f.purchases.Execute(context.Background(), purchaseDay); err != nil {
		t.Fatalf("retry Execute: %v", err)
	}
}

func TestPurchaseExecuteKeepsResidual(t *testing.T) {
	f := newFixture()
	f.mustBasket(defaultBasketInput())
	a := f.mustJoin("ana", "111", "3000")
	b := f.mustJoin("bia", "222", "1500")

	got, err := f.purchases.Execute(context.Background(), purchaseDay)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if f.repo.holding(a.ClientID, "ITUB4").Quantity != 6 || f.repo.holding(b.ClientID, "ITUB4").Quantity != 3 {
		t.Fatalf("ITUB4 a=%d b=%d", f.repo.holding(a.ClientID, "ITUB4").Quantity, f.repo.holding(b.ClientID, "ITUB4").Quantity)
	}
	if len(got.Residuals) != 1 || got.Residuals[0].Ticker != "ITUB4" || got.Residuals[0].Quantity != 1 {
		t.Fatalf("residuals=%+v", got.Residuals)
	}

	view, err := f.custody.Master(context.Background())
	if err != nil {
		t.Fatalf("Master: %v", err)
	}
	if view.Account.Number != masterAccountNumber || len(view.Positions) != 1 {
		t.Fatalf("custody=%+v", view)
	}
	if p := view.Positions[0]; p.Ticker != "ITUB4" || !p.CurrentValue.Equal(dec("30")) || p.Origin != "Distribuicao 2025-03-05" {
		t.Fatalf("position=%+v", p)
	}
	if !view.ResidualValue.Equal(dec("30")) {
		t.Fatalf("residual value=%s want=30", view.ResidualValue)
	}
}
