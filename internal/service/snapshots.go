package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"compraprogramada/internal/engine"
	"compraprogramada/internal/ledger"
	"compraprogramada/internal/models"
	"compraprogramada/internal/quote"
	"compraprogramada/internal/repository"
)

// refreshSnapshotsTx values every given book at date and upserts one
// snapshot per client. Nothing is written when none of the books holds a
// position.
func refreshSnapshotsTx(
	ctx context.Context,
	repo repository.Repository,
	tx *gorm.DB,
	resolver quote.Resolver,
	logger *zap.Logger,
	ids []uint64,
	books map[uint64]*ledger.Book,
	date time.Time,
) error {
	var tickers []string
	for _, id := range ids {
		for _, h := range books[id].Positions() {
			tickers = append(tickers, h.Ticker)
		}
	}
	if len(tickers) == 0 {
		return nil
	}
	prices, err := resolvePrices(ctx, resolver, logger, tickers, date)
	if err != nil {
		return err
	}
	invested, err := repo.SumContributionsTx(ctx, tx, ids)
	if err != nil {
		return err
	}
	rows := make([]models.PortfolioSnapshot, 0, len(ids))
	for _, id := range ids {
		snap := engine.Valuation(books[id], prices, invested[id])
		rows = append(rows, models.PortfolioSnapshot{
			ClientID:       id,
			ReferenceDate:  date,
			PortfolioValue: snap.PortfolioValue,
			InvestedValue:  snap.InvestedValue,
			ReturnPct:      snap.ReturnPct,
		})
	}
	return repo.UpsertPortfolioSnapshotsTx(ctx, tx, rows)
}
