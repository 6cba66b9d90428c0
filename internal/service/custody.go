package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"compraprogramada/internal/calendar"
	"compraprogramada/internal/ledger"
	"compraprogramada/internal/quote"
	"compraprogramada/internal/repository"
)

const (
	masterAccountID     = 1
	masterAccountNumber = "MST-000001"
	masterAccountType   = "MASTER"
)

type MasterPosition struct {
	Ticker       string          `json:"ticker"`
	Quantity     int64           `json:"quantidade"`
	AvgPrice     decimal.Decimal `json:"precoMedio"`
	CurrentValue decimal.Decimal `json:"valorAtual"`
	Origin       string          `json:"origem"`
}

type MasterCustodyView struct {
	Account       Account          `json:"contaMaster"`
	Positions     []MasterPosition `json:"custodia"`
	ResidualValue decimal.Decimal  `json:"valorTotalResiduo"`
}

type CustodyService struct {
	Repo   repository.Repository
	Quotes quote.Resolver
	Clock  Clock
	Logger *zap.Logger
}

// Master lists the residual positions of the master account valued at
// today's quotes.
func (s *CustodyService) Master(ctx context.Context) (*MasterCustodyView, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("custody service not configured")
	}
	rows, err := s.Repo.ListMasterHoldingsTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	tickers := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Quantity > 0 {
			tickers = append(tickers, r.Ticker)
		}
	}
	prices, err := resolvePrices(ctx, s.Quotes, s.Logger, tickers, calendar.Date(clockOrSystem(s.Clock).Now()))
	if err != nil {
		return nil, err
	}

	out := &MasterCustodyView{
		Account:   Account{ID: masterAccountID, Number: masterAccountNumber, Type: masterAccountType},
		Positions: make([]MasterPosition, 0, len(tickers)),
	}
	total := decimal.Zero
	for _, r := range rows {
		if r.Quantity <= 0 {
			continue
		}
		price, ok := prices[quote.Key(r.Ticker)]
		if !ok {
			price = r.AvgPrice
		}
		value := ledger.Money(price.Mul(decimal.NewFromInt(r.Quantity)))
		total = total.Add(value)
		out.Positions = append(out.Positions, MasterPosition{
			Ticker:       r.Ticker,
			Quantity:     r.Quantity,
			AvgPrice:     ledger.Price(r.AvgPrice),
			CurrentValue: value,
			Origin:       r.Origin,
		})
	}
	out.ResidualValue = ledger.Money(total)
	return out, nil
}
