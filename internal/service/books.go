package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"compraprogramada/internal/ledger"
	"compraprogramada/internal/models"
	"compraprogramada/internal/quote"
	"compraprogramada/internal/repository"
)

func clientIDs(clients []models.Client) []uint64 {
	out := make([]uint64, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.ID)
	}
	return out
}

// loadBooksTx returns one book per requested client, empty when the client
// holds nothing.
func loadBooksTx(ctx context.Context, repo repository.Repository, tx *gorm.DB, ids []uint64) (map[uint64]*ledger.Book, error) {
	rows, err := repo.ListClientHoldingsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	grouped := make(map[uint64][]ledger.Holding, len(ids))
	for _, r := range rows {
		grouped[r.ClientID] = append(grouped[r.ClientID], ledger.Holding{Ticker: r.Ticker, Quantity: r.Quantity, AvgPrice: r.AvgPrice})
	}
	out := make(map[uint64]*ledger.Book, len(ids))
	for _, id := range ids {
		out[id] = ledger.NewBook(grouped[id]...)
	}
	return out, nil
}

// saveBooksTx persists the holdings each book changed.
func saveBooksTx(ctx context.Context, repo repository.Repository, tx *gorm.DB, books map[uint64]*ledger.Book, at time.Time) error {
	ids := make([]uint64, 0, len(books))
	for id := range books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var rows []models.ClientHolding
	for _, id := range ids {
		for _, h := range books[id].Changed() {
			rows = append(rows, models.ClientHolding{
				ClientID:  id,
				Ticker:    h.Ticker,
				Quantity:  h.Quantity,
				AvgPrice:  h.AvgPrice,
				UpdatedAt: at,
			})
		}
	}
	return repo.SaveClientHoldingsTx(ctx, tx, rows)
}

func loadCustodyTx(ctx context.Context, repo repository.Repository, tx *gorm.DB) (*ledger.Custody, error) {
	rows, err := repo.ListMasterHoldingsTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	holdings := make([]ledger.CustodyHolding, 0, len(rows))
	for _, r := range rows {
		holdings = append(holdings, ledger.CustodyHolding{
			Holding:   ledger.Holding{Ticker: r.Ticker, Quantity: r.Quantity, AvgPrice: r.AvgPrice},
			Origin:    r.Origin,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return ledger.NewCustody(holdings...), nil
}

func saveCustodyTx(ctx context.Context, repo repository.Repository, tx *gorm.DB, custody *ledger.Custody) error {
	changed := custody.Changed()
	rows := make([]models.MasterHolding, 0, len(changed))
	for _, h := range changed {
		rows = append(rows, models.MasterHolding{
			Ticker:    h.Ticker,
			Quantity:  h.Quantity,
			AvgPrice:  h.AvgPrice,
			Origin:    h.Origin,
			UpdatedAt: h.UpdatedAt,
		})
	}
	return repo.SaveMasterHoldingsTx(ctx, tx, rows)
}

// resolvePrices classifies every resolver failure as unavailable data.
func resolvePrices(ctx context.Context, resolver quote.Resolver, logger *zap.Logger, tickers []string, date time.Time) (map[string]decimal.Decimal, error) {
	keys := quote.Keys(tickers)
	if len(keys) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	if resolver == nil {
		return nil, quoteUnresolved(errors.New("quote resolver not configured"))
	}
	prices, err := resolver.Resolve(ctx, keys, date)
	if err != nil {
		if logger != nil {
			logger.Error("resolve closing prices failed",
				zap.String("reference_date", date.Format(time.DateOnly)),
				zap.Strings("tickers", keys),
				zap.Error(err),
			)
		}
		return nil, quoteUnresolved(err)
	}
	for _, k := range keys {
		if _, ok := prices[k]; !ok {
			return nil, quoteUnresolved(&quote.UnresolvedError{Tickers: []string{k}, AsOf: date})
		}
	}
	return prices, nil
}

// invariantError maps ledger defects to an internal failure and leaves
// everything else untouched.
func invariantError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ledger.ErrInsufficientQuantity) {
		return internalError(err)
	}
	return err
}
