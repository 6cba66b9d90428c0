package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"compraprogramada/internal/calendar"
	"compraprogramada/internal/engine"
	"compraprogramada/internal/ledger"
	"compraprogramada/internal/models"
	"compraprogramada/internal/quote"
	"compraprogramada/internal/repository"
)

type BasketItemInput struct {
	Ticker     string          `json:"ticker"`
	Percentage decimal.Decimal `json:"percentual"`
}

type BasketInput struct {
	Name  string            `json:"nome"`
	Items []BasketItemInput `json:"itens"`
}

type BasketItemView struct {
	Ticker       string           `json:"ticker"`
	Percentage   decimal.Decimal  `json:"percentual"`
	CurrentQuote *decimal.Decimal `json:"cotacaoAtual,omitempty"`
}

type PreviousBasket struct {
	ID            uint64    `json:"cestaId"`
	Name          string    `json:"nome"`
	DeactivatedAt time.Time `json:"dataDesativacao"`
}

type BasketCreated struct {
	ID                 uint64           `json:"cestaId"`
	Name               string           `json:"nome"`
	Active             bool             `json:"ativa"`
	CreatedAt          time.Time        `json:"dataCriacao"`
	Items              []BasketItemView `json:"itens"`
	RebalanceTriggered bool             `json:"rebalanceamentoDisparado"`
	Previous           *PreviousBasket  `json:"cestaAnteriorDesativada"`
	RemovedTickers     []string         `json:"ativosRemovidos"`
	AddedTickers       []string         `json:"ativosAdicionados"`
	Message            string           `json:"mensagem"`
}

type BasketView struct {
	ID            uint64           `json:"cestaId"`
	Name          string           `json:"nome"`
	Active        bool             `json:"ativa"`
	CreatedAt     time.Time        `json:"dataCriacao"`
	DeactivatedAt *time.Time       `json:"dataDesativacao,omitempty"`
	Items         []BasketItemView `json:"itens"`
}

type BasketService struct {
	Repo      repository.Repository
	Quotes    quote.Resolver
	Fiscal    *FiscalEmitter
	Rebalance *RebalanceService
	Clock     Clock
	Logger    *zap.Logger
}

// Create activates a new basket. An existing active basket is deactivated
// and every active client holding a position is rebalanced towards the new
// one, all in the same unit of work.
func (s *BasketService) Create(ctx context.Context, in BasketInput) (*BasketCreated, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("basket service not configured")
	}
	items := make([]engine.Item, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, engine.Item{Ticker: it.Ticker, Percentage: it.Percentage})
	}
	if err := basketValidationError(engine.ValidateBasket(items)); err != nil {
		return nil, err
	}
	items = engine.NormalizeItems(items)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalidInput("Nome da cesta e obrigatorio.")
	}

	now := clockOrSystem(s.Clock).Now()
	out := &BasketCreated{RemovedTickers: []string{}, AddedTickers: []string{}}
	var summary rebalanceSummary

	err := s.Fiscal.InTx(ctx, func(tx *gorm.DB, batch *fiscalBatch) error {
		current, err := s.Repo.GetActiveBasketTx(ctx, tx)
		if err != nil {
			return err
		}
		if current != nil {
			next := make([]string, 0, len(items))
			for _, it := range items {
				next = append(next, it.Ticker)
			}
			out.RemovedTickers, out.AddedTickers = engine.Diff(current.Tickers(), next)
			if err := s.Repo.DeactivateBasketTx(ctx, tx, current.ID, now); err != nil {
				return err
			}
			out.Previous = &PreviousBasket{ID: current.ID, Name: current.Name, DeactivatedAt: now}
			out.RebalanceTriggered = true
		}

		row := &models.Basket{Name: name, Active: true, CreatedAt: now}
		for _, it := range items {
			row.Items = append(row.Items, models.BasketItem{Ticker: it.Ticker, Percentage: it.Percentage})
		}
		if err := s.Repo.CreateBasketTx(ctx, tx, row); err != nil {
			return err
		}
		out.ID = row.ID
		out.Name = row.Name
		out.Active = row.Active
		out.CreatedAt = row.CreatedAt
		out.Items = basketItemViews(row.Items, nil)

		if current == nil || s.Rebalance == nil {
			return nil
		}
		summary, err = s.Rebalance.basketChangeTx(ctx, tx, batch, items, calendar.Date(now))
		return err
	})
	if err != nil {
		return nil, err
	}

	if out.RebalanceTriggered {
		out.Message = fmt.Sprintf("Cesta atualizada. Rebalanceamento disparado para %d clientes ativos.", summary.Clients)
		if s.Logger != nil {
			s.Logger.Info("basket change rebalance executed",
				zap.Uint64("basket_id", out.ID),
				zap.Int("clients", summary.Clients),
				zap.String("sales", ledger.Money(summary.TotalSales).String()),
				zap.String("purchases", ledger.Money(summary.TotalPurchases).String()),
				zap.String("sale_tax", ledger.Money(summary.TotalSaleTax).String()),
			)
		}
	} else {
		out.Message = "Primeira cesta cadastrada com sucesso."
	}
	return out, nil
}

// Current returns the active basket priced at today's closing quotes.
func (s *BasketService) Current(ctx context.Context) (*BasketView, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("basket service not configured")
	}
	basket, err := s.Repo.GetActiveBasketTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if basket == nil {
		return nil, noActiveBasket()
	}
	today := calendar.Date(clockOrSystem(s.Clock).Now())
	prices, err := resolvePrices(ctx, s.Quotes, s.Logger, basket.Tickers(), today)
	if err != nil {
		return nil, err
	}
	view := basketView(*basket)
	view.Items = basketItemViews(basket.Items, prices)
	return &view, nil
}

func (s *BasketService) History(ctx context.Context) ([]BasketView, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("basket service not configured")
	}
	baskets, err := s.Repo.ListBaskets(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BasketView, 0, len(baskets))
	for _, b := range baskets {
		out = append(out, basketView(b))
	}
	return out, nil
}

func basketView(b models.Basket) BasketView {
	return BasketView{
		ID:            b.ID,
		Name:          b.Name,
		Active:        b.Active,
		CreatedAt:     b.CreatedAt,
		DeactivatedAt: b.DeactivatedAt,
		Items:         basketItemViews(b.Items, nil),
	}
}

func basketItemViews(items []models.BasketItem, prices map[string]decimal.Decimal) []BasketItemView {
	sorted := make([]engine.Item, 0, len(items))
	for _, it := range items {
		sorted = append(sorted, engine.Item{Ticker: it.Ticker, Percentage: it.Percentage})
	}
	sorted = engine.NormalizeItems(sorted)
	out := make([]BasketItemView, 0, len(sorted))
	for _, it := range sorted {
		view := BasketItemView{Ticker: it.Ticker, Percentage: ledger.Percent(it.Percentage)}
		if p, ok := prices[it.Ticker]; ok {
			price := ledger.Price(p)
			view.CurrentQuote = &price
		}
		out = append(out, view)
	}
	return out
}

func basketValidationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrBasketTicker):
		return invalidInput("Ticker da cesta e obrigatorio.")
	case errors.Is(err, engine.ErrBasketSize):
		return newError(KindInvalidBasketSize, http.StatusBadRequest, "A cesta deve conter exatamente 5 ativos.", err)
	case errors.Is(err, engine.ErrBasketSum):
		return newError(KindInvalidPercentages, http.StatusBadRequest, "A soma dos percentuais deve ser exatamente 100%.", err)
	case errors.Is(err, engine.ErrBasketDuplicate):
		return newError(KindInvalidPercentages, http.StatusBadRequest, "A cesta nao pode conter ativos duplicados.", err)
	default:
		return newError(KindInvalidPercentages, http.StatusBadRequest, "Cada percentual da cesta deve ser maior que 0.", err)
	}
}
