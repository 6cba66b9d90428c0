package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"compraprogramada/internal/calendar"
	"compraprogramada/internal/ledger"
	"compraprogramada/internal/models"
	"compraprogramada/internal/quote"
	"compraprogramada/internal/repository"
)

const clientAccountType = "FILHOTE"

var MinMonthlyValue = decimal.NewFromInt(100)

type JoinInput struct {
	Name         string          `json:"nome"`
	TaxID        string          `json:"cpf"`
	Email        string          `json:"email"`
	MonthlyValue decimal.Decimal `json:"valorMensal"`
}

type Account struct {
	ID        uint64    `json:"id"`
	Number    string    `json:"numeroConta"`
	Type      string    `json:"tipo"`
	CreatedAt time.Time `json:"dataCriacao,omitzero"`
}

type JoinResult struct {
	ClientID     uint64          `json:"clienteId"`
	Name         string          `json:"nome"`
	TaxID        string          `json:"cpf"`
	Email        string          `json:"email"`
	MonthlyValue decimal.Decimal `json:"valorMensal"`
	Active       bool            `json:"ativo"`
	JoinedAt     time.Time       `json:"dataAdesao"`
	Account      Account         `json:"contaGrafica"`
}

type ExitResult struct {
	ClientID uint64    `json:"clienteId"`
	Name     string    `json:"nome"`
	Active   bool      `json:"ativo"`
	ExitedAt time.Time `json:"dataSaida"`
	Message  string    `json:"mensagem"`
}

type MonthlyValueChange struct {
	ClientID      uint64          `json:"clienteId"`
	PreviousValue decimal.Decimal `json:"valorMensalAnterior"`
	NewValue      decimal.Decimal `json:"valorMensalNovo"`
	ChangedAt     time.Time       `json:"dataAlteracao"`
	Message       string          `json:"mensagem"`
}

type PortfolioSummary struct {
	Invested     decimal.Decimal `json:"valorTotalInvestido"`
	CurrentValue decimal.Decimal `json:"valorAtualCarteira"`
	ProfitLoss   decimal.Decimal `json:"plTotal"`
	ReturnPct    decimal.Decimal `json:"rentabilidadePercentual"`
}

type PortfolioAsset struct {
	Ticker        string          `json:"ticker"`
	Quantity      int64           `json:"quantidade"`
	AvgPrice      decimal.Decimal `json:"precoMedio"`
	CurrentQuote  decimal.Decimal `json:"cotacaoAtual"`
	CurrentValue  decimal.Decimal `json:"valorAtual"`
	ProfitLoss    decimal.Decimal `json:"pl"`
	ProfitLossPct decimal.Decimal `json:"plPercentual"`
	WeightPct     decimal.Decimal `json:"composicaoCarteira"`
}

type PortfolioView struct {
	ClientID  uint64           `json:"clienteId"`
	Name      string           `json:"nome"`
	Account   string           `json:"contaGrafica"`
	QueriedAt time.Time        `json:"dataConsulta"`
	Summary   PortfolioSummary `json:"resumo"`
	Assets    []PortfolioAsset `json:"ativos"`
}

type ContributionView struct {
	Date        string          `json:"data"`
	Amount      decimal.Decimal `json:"valor"`
	Installment string          `json:"parcela"`
}

type EvolutionPoint struct {
	Date           string          `json:"data"`
	PortfolioValue decimal.Decimal `json:"valorCarteira"`
	InvestedValue  decimal.Decimal `json:"valorInvestido"`
	ReturnPct      decimal.Decimal `json:"rentabilidade"`
}

type ProfitabilityView struct {
	ClientID      uint64             `json:"clienteId"`
	Name          string             `json:"nome"`
	QueriedAt     time.Time          `json:"dataConsulta"`
	Summary       PortfolioSummary   `json:"rentabilidade"`
	Contributions []ContributionView `json:"historicoAportes"`
	Evolution     []EvolutionPoint   `json:"evolucaoCarteira"`
}

type ClientService struct {
	Repo   repository.Repository
	Quotes quote.Resolver
	Clock  Clock
	Logger *zap.Logger
}

func (s *ClientService) Join(ctx context.Context, in JoinInput) (*JoinResult, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("client service not configured")
	}
	name := strings.TrimSpace(in.Name)
	taxID := digitsOnly(in.TaxID)
	email := strings.TrimSpace(in.Email)
	switch {
	case name == "":
		return nil, invalidInput("Nome do cliente e obrigatorio.")
	case taxID == "":
		return nil, invalidInput("CPF do cliente e obrigatorio.")
	case email == "":
		return nil, invalidInput("Email do cliente e obrigatorio.")
	}
	if in.MonthlyValue.LessThan(MinMonthlyValue) {
		return nil, invalidMonthlyValue()
	}

	now := clockOrSystem(s.Clock).Now()
	client := &models.Client{
		Name:         name,
		TaxID:        taxID,
		Email:        email,
		MonthlyValue: ledger.Money(in.MonthlyValue),
		Active:       true,
		JoinedAt:     now,
	}
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.CreateClientTx(ctx, tx, client); err != nil {
			return err
		}
		client.AccountNumber = fmt.Sprintf("FLH-%06d", client.ID)
		return s.Repo.SaveClientTx(ctx, tx, client)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateTaxID()
	}
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("client joined", zap.Uint64("client_id", client.ID), zap.String("account", client.AccountNumber))
	}
	return &JoinResult{
		ClientID:     client.ID,
		Name:         client.Name,
		TaxID:        client.TaxID,
		Email:        client.Email,
		MonthlyValue: client.MonthlyValue,
		Active:       client.Active,
		JoinedAt:     client.JoinedAt,
		Account: Account{
			ID:        client.ID,
			Number:    client.AccountNumber,
			Type:      clientAccountType,
			CreatedAt: client.JoinedAt,
		},
	}, nil
}

// Exit closes the membership. Holdings stay in custody.
func (s *ClientService) Exit(ctx context.Context, clientID uint64) (*ExitResult, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("client service not configured")
	}
	now := clockOrSystem(s.Clock).Now()
	var out *ExitResult
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		client, err := s.Repo.GetClientByIDTx(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return clientNotFound()
		}
		if !client.Active {
			return clientInactive()
		}
		client.Active = false
		client.ExitedAt = &now
		if err := s.Repo.SaveClientTx(ctx, tx, client); err != nil {
			return err
		}
		out = &ExitResult{
			ClientID: client.ID,
			Name:     client.Name,
			Active:   false,
			ExitedAt: now,
			Message:  "Adesao encerrada. Sua posicao em custodia foi mantida.",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChangeMonthlyValue takes effect from the next execution date on.
func (s *ClientService) ChangeMonthlyValue(ctx context.Context, clientID uint64, value decimal.Decimal) (*MonthlyValueChange, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("client service not configured")
	}
	if value.LessThan(MinMonthlyValue) {
		return nil, invalidMonthlyValue()
	}
	now := clockOrSystem(s.Clock).Now()
	var out *MonthlyValueChange
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		client, err := s.Repo.GetClientByIDTx(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return clientNotFound()
		}
		previous := client.MonthlyValue
		client.MonthlyValue = ledger.Money(value)
		if err := s.Repo.SaveClientTx(ctx, tx, client); err != nil {
			return err
		}
		if err := s.Repo.InsertContributionChangeTx(ctx, tx, &models.ContributionChange{
			ClientID:      client.ID,
			PreviousValue: previous,
			NewValue:      client.MonthlyValue,
			ChangedAt:     now,
		}); err != nil {
			return err
		}
		out = &MonthlyValueChange{
			ClientID:      client.ID,
			PreviousValue: previous,
			NewValue:      client.MonthlyValue,
			ChangedAt:     now,
			Message:       "Valor mensal atualizado. O novo valor sera considerado a partir da proxima data de compra.",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ClientService) Portfolio(ctx context.Context, clientID uint64) (*PortfolioView, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("client service not configured")
	}
	client, err := s.Repo.GetClientByIDTx(ctx, nil, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, clientNotFound()
	}
	contributions, err := s.Repo.ListContributionExecutions(ctx, clientID)
	if err != nil {
		return nil, err
	}
	summary, assets, now, err := s.valuate(ctx, clientID, contributions)
	if err != nil {
		return nil, err
	}
	return &PortfolioView{
		ClientID:  client.ID,
		Name:      client.Name,
		Account:   client.AccountNumber,
		QueriedAt: now,
		Summary:   summary,
		Assets:    assets,
	}, nil
}

func (s *ClientService) Profitability(ctx context.Context, clientID uint64) (*ProfitabilityView, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("client service not configured")
	}
	client, err := s.Repo.GetClientByIDTx(ctx, nil, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, clientNotFound()
	}
	contributions, err := s.Repo.ListContributionExecutions(ctx, clientID)
	if err != nil {
		return nil, err
	}
	snapshots, err := s.Repo.ListPortfolioSnapshots(ctx, clientID)
	if err != nil {
		return nil, err
	}
	summary, _, now, err := s.valuate(ctx, clientID, contributions)
	if err != nil {
		return nil, err
	}

	out := &ProfitabilityView{
		ClientID:      client.ID,
		Name:          client.Name,
		QueriedAt:     now,
		Summary:       summary,
		Contributions: make([]ContributionView, 0, len(contributions)),
		Evolution:     make([]EvolutionPoint, 0, len(snapshots)),
	}
	for _, c := range contributions {
		out.Contributions = append(out.Contributions, ContributionView{
			Date:        c.ReferenceDate.Format(time.DateOnly),
			Amount:      ledger.Money(c.Amount),
			Installment: c.Installment,
		})
	}
	for _, p := range snapshots {
		out.Evolution = append(out.Evolution, EvolutionPoint{
			Date:           p.ReferenceDate.Format(time.DateOnly),
			PortfolioValue: ledger.Money(p.PortfolioValue),
			InvestedValue:  ledger.Money(p.InvestedValue),
			ReturnPct:      ledger.Percent(p.ReturnPct),
		})
	}
	return out, nil
}

// valuate prices the client's positions at today's closing quotes.
func (s *ClientService) valuate(ctx context.Context, clientID uint64, contributions []models.ContributionExecution) (PortfolioSummary, []PortfolioAsset, time.Time, error) {
	now := clockOrSystem(s.Clock).Now()
	books, err := loadBooksTx(ctx, s.Repo, nil, []uint64{clientID})
	if err != nil {
		return PortfolioSummary{}, nil, now, err
	}
	positions := books[clientID].Positions()

	tickers := make([]string, 0, len(positions))
	for _, h := range positions {
		tickers = append(tickers, h.Ticker)
	}
	prices, err := resolvePrices(ctx, s.Quotes, s.Logger, tickers, calendar.Date(now))
	if err != nil {
		return PortfolioSummary{}, nil, now, err
	}

	invested := decimal.Zero
	for _, c := range contributions {
		invested = invested.Add(c.Amount)
	}
	invested = ledger.Money(invested)

	type valued struct {
		holding ledger.Holding
		quote   decimal.Decimal
		value   decimal.Decimal
		pl      decimal.Decimal
		plPct   decimal.Decimal
	}
	rows := make([]valued, 0, len(positions))
	total := decimal.Zero
	totalPL := decimal.Zero
	for _, h := range positions {
		q := prices[h.Ticker]
		value := h.Value(q)
		pl := q.Sub(h.AvgPrice).Mul(decimal.NewFromInt(h.Quantity))
		plPct := decimal.Zero
		if h.AvgPrice.IsPositive() {
			plPct = q.Sub(h.AvgPrice).Div(h.AvgPrice).Mul(decimal.NewFromInt(100))
		}
		rows = append(rows, valued{holding: h, quote: q, value: value, pl: pl, plPct: plPct})
		total = total.Add(value)
		totalPL = totalPL.Add(pl)
	}
	total = ledger.Money(total)

	summary := PortfolioSummary{
		Invested:     invested,
		CurrentValue: total,
		ProfitLoss:   ledger.Money(totalPL),
		ReturnPct:    decimal.Zero,
	}
	if invested.IsPositive() {
		summary.ReturnPct = ledger.Percent(total.Sub(invested).Div(invested).Mul(decimal.NewFromInt(100)))
	}

	assets := make([]PortfolioAsset, 0, len(rows))
	for _, r := range rows {
		assets = append(assets, PortfolioAsset{
			Ticker:        r.holding.Ticker,
			Quantity:      r.holding.Quantity,
			AvgPrice:      ledger.Price(r.holding.AvgPrice),
			CurrentQuote:  ledger.Price(r.quote),
			CurrentValue:  ledger.Money(r.value),
			ProfitLoss:    ledger.Money(r.pl),
			ProfitLossPct: ledger.Percent(r.plPct),
			WeightPct:     ledger.Percent(ledger.Share(r.value, total)),
		})
	}
	return summary, assets, now, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
