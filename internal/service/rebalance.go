package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"compraprogramada/internal/calendar"
	"compraprogramada/internal/engine"
	"compraprogramada/internal/fiscal"
	"compraprogramada/internal/ledger"
	"compraprogramada/internal/models"
	"compraprogramada/internal/quote"
	"compraprogramada/internal/repository"
)

var fallbackDeviationThreshold = decimal.NewFromInt(5)

type RebalanceResult struct {
	ExecutedAt       time.Time       `json:"dataExecucao"`
	Trigger          string          `json:"tipo"`
	ClientsProcessed int             `json:"clientesProcessados"`
	TotalSales       decimal.Decimal `json:"valorTotalVendas"`
	TotalPurchases   decimal.Decimal `json:"valorTotalCompras"`
	TotalSaleTax     decimal.Decimal `json:"valorTotalIrVenda"`
	Message          string          `json:"mensagem"`
}

// rebalanceSummary aggregates the clients that changed in one run.
type rebalanceSummary struct {
	Clients        int
	TotalSales     decimal.Decimal
	TotalPurchases decimal.Decimal
	TotalSaleTax   decimal.Decimal
}

type RebalanceService struct {
	Repo   repository.Repository
	Quotes quote.Resolver
	Fiscal *FiscalEmitter
	Clock  Clock
	Logger *zap.Logger
	// DefaultThreshold applies when a caller passes a non-positive
	// threshold, in percentage points.
	DefaultThreshold decimal.Decimal
}

// ByDeviation rebalances the active clients whose weights drift from the
// active basket by more than threshold points.
func (s *RebalanceService) ByDeviation(ctx context.Context, referenceDate time.Time, threshold decimal.Decimal) (*RebalanceResult, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("rebalance service not configured")
	}
	if !threshold.IsPositive() {
		threshold = s.DefaultThreshold
	}
	if !threshold.IsPositive() {
		threshold = fallbackDeviationThreshold
	}
	date := calendar.Date(referenceDate)

	var summary rebalanceSummary
	err := s.Fiscal.InTx(ctx, func(tx *gorm.DB, batch *fiscalBatch) error {
		basket, err := s.Repo.GetActiveBasketTx(ctx, tx)
		if err != nil {
			return err
		}
		if basket == nil {
			return noActiveBasket()
		}
		summary, err = s.rebalanceTx(ctx, tx, batch, basketItems(basket), date, engine.ModeDeviation, threshold)
		return err
	})
	if err != nil {
		return nil, err
	}

	message := "Rebalanceamento por desvio executado com sucesso."
	if summary.Clients == 0 {
		message = "Nenhum cliente excedeu o limiar de desvio para rebalanceamento."
	}
	if s.Logger != nil {
		s.Logger.Info("deviation rebalance finished",
			zap.String("reference_date", date.Format(time.DateOnly)),
			zap.String("threshold", threshold.String()),
			zap.Int("clients", summary.Clients),
		)
	}
	return &RebalanceResult{
		ExecutedAt:       clockOrSystem(s.Clock).Now(),
		Trigger:          models.TriggerDeviation,
		ClientsProcessed: summary.Clients,
		TotalSales:       ledger.Money(summary.TotalSales),
		TotalPurchases:   ledger.Money(summary.TotalPurchases),
		TotalSaleTax:     ledger.Money(summary.TotalSaleTax),
		Message:          message,
	}, nil
}

// basketChangeTx rebalances every active client holding a position towards
// items. It joins the caller's unit of work.
func (s *RebalanceService) basketChangeTx(ctx context.Context, tx *gorm.DB, batch *fiscalBatch, items []engine.Item, date time.Time) (rebalanceSummary, error) {
	return s.rebalanceTx(ctx, tx, batch, items, date, engine.ModeBasketChange, decimal.Zero)
}

func (s *RebalanceService) rebalanceTx(
	ctx context.Context,
	tx *gorm.DB,
	batch *fiscalBatch,
	items []engine.Item,
	date time.Time,
	mode engine.Mode,
	threshold decimal.Decimal,
) (rebalanceSummary, error) {
	summary := rebalanceSummary{TotalSales: decimal.Zero, TotalPurchases: decimal.Zero, TotalSaleTax: decimal.Zero}
	now := clockOrSystem(s.Clock).Now()
	trigger := models.TriggerBasketChange
	if mode == engine.ModeDeviation {
		trigger = models.TriggerDeviation
	}
	monthKey := date.Format("2006-01")

	clients, err := s.Repo.ListActiveClientsTx(ctx, tx)
	if err != nil {
		return summary, err
	}
	ids := clientIDs(clients)
	books, err := loadBooksTx(ctx, s.Repo, tx, ids)
	if err != nil {
		return summary, err
	}

	tickers := make([]string, 0, len(items))
	holders := 0
	for _, id := range ids {
		positions := books[id].Positions()
		if len(positions) > 0 {
			holders++
		}
		for _, h := range positions {
			tickers = append(tickers, h.Ticker)
		}
	}
	if holders == 0 {
		return summary, nil
	}
	for _, it := range items {
		tickers = append(tickers, it.Ticker)
	}
	prices, err := resolvePrices(ctx, s.Quotes, s.Logger, tickers, date)
	if err != nil {
		return summary, err
	}

	for _, c := range clients {
		book := books[c.ID]
		out, err := engine.Rebalance(book, items, prices, mode, threshold)
		if err != nil {
			return summary, invariantError(err)
		}
		if !out.Changed {
			continue
		}

		if len(out.Sales) > 0 {
			sales := make([]models.SaleOperation, 0, len(out.Sales))
			for _, f := range out.Sales {
				sales = append(sales, models.SaleOperation{
					ClientID:   c.ID,
					Ticker:     f.Ticker,
					Quantity:   f.Quantity,
					SalePrice:  f.Price,
					AvgCost:    f.AvgCost,
					TotalValue: f.TotalValue,
					Profit:     f.Profit,
					SoldAt:     now,
					MonthKey:   monthKey,
					Trigger:    trigger,
				})
			}
			if err := s.Repo.InsertSaleOperationsTx(ctx, tx, sales); err != nil {
				return summary, err
			}
			tax, err := s.emitSaleTaxTx(ctx, tx, batch, c, monthKey, now)
			if err != nil {
				return summary, err
			}
			summary.TotalSaleTax = summary.TotalSaleTax.Add(tax)
		}

		summary.Clients++
		summary.TotalSales = summary.TotalSales.Add(out.TotalSales)
		summary.TotalPurchases = summary.TotalPurchases.Add(out.TotalPurchases)
	}

	if summary.Clients == 0 {
		return summary, nil
	}
	if err := saveBooksTx(ctx, s.Repo, tx, books, now); err != nil {
		return summary, err
	}
	if err := s.Repo.InsertRebalanceExecutionTx(ctx, tx, &models.RebalanceExecution{
		ReferenceDate:    date,
		ExecutedAt:       now,
		Trigger:          trigger,
		ClientsProcessed: summary.Clients,
		TotalSales:       ledger.Money(summary.TotalSales),
		TotalPurchases:   ledger.Money(summary.TotalPurchases),
		TotalSaleTax:     ledger.Money(summary.TotalSaleTax),
	}); err != nil {
		return summary, err
	}
	if err := refreshSnapshotsTx(ctx, s.Repo, tx, s.Quotes, s.Logger, ids, books, date); err != nil {
		return summary, err
	}
	return summary, nil
}

// emitSaleTaxTx computes the month's IR-venda over every sale recorded for
// the client in monthKey, including the ones just written.
func (s *RebalanceService) emitSaleTaxTx(ctx context.Context, tx *gorm.DB, batch *fiscalBatch, c models.Client, monthKey string, now time.Time) (decimal.Decimal, error) {
	rows, err := s.Repo.ListSaleOperationsByMonthTx(ctx, tx, c.ID, monthKey)
	if err != nil {
		return decimal.Zero, err
	}
	sales := make([]fiscal.Sale, 0, len(rows))
	for _, r := range rows {
		sales = append(sales, fiscal.Sale{
			Ticker:     r.Ticker,
			Quantity:   r.Quantity,
			SalePrice:  r.SalePrice,
			AvgCost:    r.AvgCost,
			TotalValue: r.TotalValue,
			Profit:     r.Profit,
		})
	}
	ev, ok := fiscal.SaleTax(c.ID, c.TaxID, monthKey, sales, now)
	if !ok {
		return decimal.Zero, nil
	}
	if err := batch.Emit(ctx, tx, ev); err != nil {
		return decimal.Zero, err
	}
	return ev.TaxValue, nil
}
