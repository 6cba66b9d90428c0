package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
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

const (
	orderDetailStandardLot = "LOTE_PADRAO"
	orderDetailFractional  = "FRACIONARIO"
)

type OrderDetail struct {
	Type     string `json:"tipo"`
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantidade"`
}

type PurchaseOrder struct {
	Ticker     string          `json:"ticker"`
	Quantity   int64           `json:"quantidadeTotal"`
	Details    []OrderDetail   `json:"detalhes"`
	UnitPrice  decimal.Decimal `json:"precoUnitario"`
	TotalValue decimal.Decimal `json:"valorTotal"`
}

type DistributedAsset struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantidade"`
}

type ClientDistributionView struct {
	ClientID     uint64             `json:"clienteId"`
	Name         string             `json:"nome"`
	Contribution decimal.Decimal    `json:"valorAporte"`
	Assets       []DistributedAsset `json:"ativos"`
}

type MasterResidual struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantidade"`
}

type PurchaseResult struct {
	ExecutedAt        time.Time                `json:"dataExecucao"`
	TotalClients      int                      `json:"totalClientes"`
	TotalConsolidated decimal.Decimal          `json:"totalConsolidado"`
	Orders            []PurchaseOrder          `json:"ordensCompra"`
	Distributions     []ClientDistributionView `json:"distribuicoes"`
	Residuals         []MasterResidual         `json:"residuosCustMaster"`
	TaxEvents         int                      `json:"eventosIrPublicados"`
	Message           string                   `json:"mensagem"`
}

// PurchaseService runs the consolidated purchase of one execution date.
type PurchaseService struct {
	Repo   repository.Repository
	Quotes quote.Resolver
	Fiscal *FiscalEmitter
	Clock  Clock
	Logger *zap.Logger

	// mu serializes runs in this process; the unique index on the
	// execution date covers concurrent processes.
	mu sync.Mutex
}

func (s *PurchaseService) Execute(ctx context.Context, referenceDate time.Time) (*PurchaseResult, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("purchase service not configured")
	}
	date := calendar.Date(referenceDate)
	if !calendar.IsValidExecutionDate(date) {
		return nil, invalidExecutionDate()
	}
	installment, err := calendar.InstallmentLabel(date)
	if err != nil {
		return nil, invalidExecutionDate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	clock := clockOrSystem(s.Clock)
	now := clock.Now()
	var result *PurchaseResult

	err = s.Fiscal.InTx(ctx, func(tx *gorm.DB, batch *fiscalBatch) error {
		exists, err := s.Repo.PurchaseExecutionExistsTx(ctx, tx, date)
		if err != nil {
			return err
		}
		if exists {
			return alreadyExecuted()
		}
		basket, err := s.Repo.GetActiveBasketTx(ctx, tx)
		if err != nil {
			return err
		}
		if basket == nil {
			return noActiveBasket()
		}
		clients, err := s.Repo.ListActiveClientsTx(ctx, tx)
		if err != nil {
			return err
		}
		if len(clients) == 0 {
			result = &PurchaseResult{
				ExecutedAt:        now,
				TotalConsolidated: decimal.Zero,
				Orders:            []PurchaseOrder{},
				Distributions:     []ClientDistributionView{},
				Residuals:         []MasterResidual{},
				Message:           "Nao ha clientes ativos para processar a compra programada.",
			}
			return nil
		}

		items := basketItems(basket)
		prices, err := resolvePrices(ctx, s.Quotes, s.Logger, basket.Tickers(), date)
		if err != nil {
			return err
		}
		master, err := loadCustodyTx(ctx, s.Repo, tx)
		if err != nil {
			return err
		}
		ids := clientIDs(clients)
		books, err := loadBooksTx(ctx, s.Repo, tx, ids)
		if err != nil {
			return err
		}
		contributors := make([]engine.Contributor, 0, len(clients))
		for _, c := range clients {
			contributors = append(contributors, engine.Contributor{ClientID: c.ID, MonthlyValue: c.MonthlyValue, Book: books[c.ID]})
		}

		day := date.Format(time.DateOnly)
		alloc, err := engine.Allocate(engine.AllocationInput{
			Items:              items,
			Prices:             prices,
			Contributors:       contributors,
			Master:             master,
			BuyOrigin:          "Compra consolidada " + day,
			DistributionOrigin: "Distribuicao " + day,
			At:                 now,
		})
		if err != nil {
			return invariantError(err)
		}
		trades := alloc.Trades()

		// The execution row goes first so a concurrent run for the same date
		// fails before any event is published.
		execution := purchaseExecutionRow(date, now, clients, alloc, len(trades))
		if err := s.Repo.InsertPurchaseExecutionTx(ctx, tx, execution); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return alreadyExecuted()
			}
			return err
		}

		contributions := make([]models.ContributionExecution, 0, len(clients))
		for _, c := range contributors {
			contributions = append(contributions, models.ContributionExecution{
				ClientID:      c.ClientID,
				ReferenceDate: date,
				Amount:        ledger.Money(c.Installment()),
				Installment:   installment,
			})
		}
		if err := s.Repo.InsertContributionExecutionsTx(ctx, tx, contributions); err != nil {
			return err
		}
		if err := saveCustodyTx(ctx, s.Repo, tx, master); err != nil {
			return err
		}
		if err := saveBooksTx(ctx, s.Repo, tx, books, now); err != nil {
			return err
		}

		byID := make(map[uint64]models.Client, len(clients))
		for _, c := range clients {
			byID[c.ID] = c
		}
		for _, t := range trades {
			ev := fiscal.DedoDuro(t.ClientID, byID[t.ClientID].TaxID, t.Ticker, t.Quantity, t.Price, now)
			if err := batch.Emit(ctx, tx, ev); err != nil {
				return err
			}
		}

		if err := refreshSnapshotsTx(ctx, s.Repo, tx, s.Quotes, s.Logger, ids, books, date); err != nil {
			return err
		}

		result = purchaseResult(now, clients, alloc, batch.Count())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("purchase executed",
			zap.String("reference_date", date.Format(time.DateOnly)),
			zap.Int("clients", result.TotalClients),
			zap.String("total", result.TotalConsolidated.String()),
			zap.Int("orders", len(result.Orders)),
			zap.Int("tax_events", result.TaxEvents),
		)
	}
	return result, nil
}

func basketItems(b *models.Basket) []engine.Item {
	out := make([]engine.Item, 0, len(b.Items))
	for _, it := range b.Items {
		out = append(out, engine.Item{Ticker: it.Ticker, Percentage: it.Percentage})
	}
	return engine.NormalizeItems(out)
}

func purchaseExecutionRow(date, now time.Time, clients []models.Client, alloc engine.Allocation, taxEvents int) *models.PurchaseExecution {
	names := make(map[uint64]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}
	row := &models.PurchaseExecution{
		ReferenceDate:     date,
		ExecutedAt:        now,
		TotalClients:      len(clients),
		TotalConsolidated: ledger.Money(alloc.TotalConsolidated),
		TaxEvents:         taxEvents,
	}
	for _, o := range alloc.Orders {
		row.Orders = append(row.Orders, models.MasterOrder{
			Ticker:              o.Ticker,
			TotalQuantity:       o.Quantity,
			StandardLotQuantity: o.StandardLot,
			FractionalQuantity:  o.Fractional,
			UnitPrice:           ledger.Price(o.UnitPrice),
			TotalValue:          ledger.Money(o.TotalValue),
		})
	}
	for _, d := range alloc.Distributions {
		dist := models.ClientDistribution{
			ClientID:     d.ClientID,
			ClientName:   names[d.ClientID],
			Contribution: ledger.Money(d.Contribution),
		}
		for _, t := range d.Trades {
			dist.Items = append(dist.Items, models.ClientDistributionItem{Ticker: t.Ticker, Quantity: t.Quantity})
		}
		row.Distributions = append(row.Distributions, dist)
	}
	return row
}

func purchaseResult(now time.Time, clients []models.Client, alloc engine.Allocation, taxEvents int) *PurchaseResult {
	names := make(map[uint64]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}
	out := &PurchaseResult{
		ExecutedAt:        now,
		TotalClients:      len(clients),
		TotalConsolidated: ledger.Money(alloc.TotalConsolidated),
		Orders:            make([]PurchaseOrder, 0, len(alloc.Orders)),
		Distributions:     make([]ClientDistributionView, 0, len(alloc.Distributions)),
		Residuals:         make([]MasterResidual, 0, len(alloc.Residuals)),
		TaxEvents:         taxEvents,
		Message:           fmt.Sprintf("Compra programada executada com sucesso para %d clientes.", len(clients)),
	}
	for _, o := range alloc.Orders {
		details := []OrderDetail{}
		if o.StandardLot > 0 {
			details = append(details, OrderDetail{Type: orderDetailStandardLot, Ticker: o.Ticker, Quantity: o.StandardLot})
		}
		if o.Fractional > 0 {
			details = append(details, OrderDetail{Type: orderDetailFractional, Ticker: o.Ticker + "F", Quantity: o.Fractional})
		}
		out.Orders = append(out.Orders, PurchaseOrder{
			Ticker:     o.Ticker,
			Quantity:   o.Quantity,
			Details:    details,
			UnitPrice:  ledger.Price(o.UnitPrice),
			TotalValue: ledger.Money(o.TotalValue),
		})
	}
	for _, d := range alloc.Distributions {
		assets := make([]DistributedAsset, 0, len(d.Trades))
		for _, t := range d.Trades {
			assets = append(assets, DistributedAsset{Ticker: t.Ticker, Quantity: t.Quantity})
		}
		out.Distributions = append(out.Distributions, ClientDistributionView{
			ClientID:     d.ClientID,
			Name:         names[d.ClientID],
			Contribution: ledger.Money(d.Contribution),
			Assets:       assets,
		})
	}
	for _, r := range alloc.Residuals {
		out.Residuals = append(out.Residuals, MasterResidual{Ticker: r.Ticker, Quantity: r.Quantity})
	}
	return out
}
