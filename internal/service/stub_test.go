package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"compraprogramada/internal/fiscal"
	"compraprogramada/internal/models"
	"compraprogramada/internal/quote"
	"compraprogramada/internal/repository"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type holdingKey struct {
	clientID uint64
	ticker   string
}

type stubState struct {
	nextID        uint64
	baskets       []models.Basket
	clients       map[uint64]models.Client
	changes       []models.ContributionChange
	contributions []models.ContributionExecution
	holdings      map[holdingKey]models.ClientHolding
	master        map[string]models.MasterHolding
	snapshots     map[holdingKey]models.PortfolioSnapshot
	sales         []models.SaleOperation
	purchases     []models.PurchaseExecution
	rebalances    []models.RebalanceExecution
	fiscalLogs    []models.FiscalEventLog
	settings      map[string]models.SystemSetting
}

func (s stubState) clone() stubState {
	out := s
	out.baskets = append([]models.Basket(nil), s.baskets...)
	out.clients = make(map[uint64]models.Client, len(s.clients))
	for k, v := range s.clients {
		out.clients[k] = v
	}
	out.changes = append([]models.ContributionChange(nil), s.changes...)
	out.contributions = append([]models.ContributionExecution(nil), s.contributions...)
	out.holdings = make(map[holdingKey]models.ClientHolding, len(s.holdings))
	for k, v := range s.holdings {
		out.holdings[k] = v
	}
	out.master = make(map[string]models.MasterHolding, len(s.master))
	for k, v := range s.master {
		out.master[k] = v
	}
	out.snapshots = make(map[holdingKey]models.PortfolioSnapshot, len(s.snapshots))
	for k, v := range s.snapshots {
		out.snapshots[k] = v
	}
	out.sales = append([]models.SaleOperation(nil), s.sales...)
	out.purchases = append([]models.PurchaseExecution(nil), s.purchases...)
	out.rebalances = append([]models.RebalanceExecution(nil), s.rebalances...)
	out.fiscalLogs = append([]models.FiscalEventLog(nil), s.fiscalLogs...)
	out.settings = make(map[string]models.SystemSetting, len(s.settings))
	for k, v := range s.settings {
		out.settings[k] = v
	}
	return out
}

// stubRepo keeps everything in memory. InTx restores the previous state
// when fn fails, the way a rolled back transaction would.
type stubRepo struct {
	st stubState
}

var _ repository.Repository = (*stubRepo)(nil)

func newStubRepo() *stubRepo {
	return &stubRepo{st: stubState{
		clients:   map[uint64]models.Client{},
		holdings:  map[holdingKey]models.ClientHolding{},
		master:    map[string]models.MasterHolding{},
		snapshots: map[holdingKey]models.PortfolioSnapshot{},
		settings:  map[string]models.SystemSetting{},
	}}
}

func (r *stubRepo) id() uint64 {
	r.st.nextID++
	return r.st.nextID
}

func (r *stubRepo) InTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	saved := r.st.clone()
	if err := fn(nil); err != nil {
		r.st = saved
		return err
	}
	return nil
}

func (r *stubRepo) GetActiveBasketTx(_ context.Context, _ *gorm.DB) (*models.Basket, error) {
	for _, b := range r.st.baskets {
		if b.Active {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (r *stubRepo) ListBaskets(_ context.Context) ([]models.Basket, error) {
	out := append([]models.Basket(nil), r.st.baskets...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *stubRepo) DeactivateBasketTx(_ context.Context, _ *gorm.DB, id uint64, at time.Time) error {
	for i := range r.st.baskets {
		if r.st.baskets[i].ID == id {
			r.st.baskets[i].Active = false
			deactivated := at
			r.st.baskets[i].DeactivatedAt = &deactivated
		}
	}
	return nil
}

func (r *stubRepo) CreateBasketTx(_ context.Context, _ *gorm.DB, item *models.Basket) error {
	if item.Active {
		for _, b := range r.st.baskets {
			if b.Active {
				return repository.ErrDuplicate
			}
		}
	}
	item.ID = r.id()
	for i := range item.Items {
		item.Items[i].ID = r.id()
		item.Items[i].BasketID = item.ID
	}
	stored := *item
	stored.Items = append([]models.BasketItem(nil), item.Items...)
	r.st.baskets = append(r.st.baskets, stored)
	return nil
}

func (r *stubRepo) CreateClientTx(_ context.Context, _ *gorm.DB, item *models.Client) error {
	for _, c := range r.st.clients {
		if c.TaxID == item.TaxID {
			return repository.ErrDuplicate
		}
	}
	item.ID = r.id()
	r.st.clients[item.ID] = *item
	return nil
}

func (r *stubRepo) SaveClientTx(_ context.Context, _ *gorm.DB, item *models.Client) error {
	r.st.clients[item.ID] = *item
	return nil
}

func (r *stubRepo) GetClientByIDTx(_ context.Context, _ *gorm.DB, id uint64) (*models.Client, error) {
	c, ok := r.st.clients[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *stubRepo) ListActiveClientsTx(_ context.Context, _ *gorm.DB) ([]models.Client, error) {
	var out []models.Client
	for _, c := range r.st.clients {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubRepo) InsertContributionChangeTx(_ context.Context, _ *gorm.DB, item *models.ContributionChange) error {
	item.ID = r.id()
	r.st.changes = append(r.st.changes, *item)
	return nil
}

func (r *stubRepo) InsertContributionExecutionsTx(_ context.Context, _ *gorm.DB, items []models.ContributionExecution) error {
	for _, it := range items {
		it.ID = r.id()
		r.st.contributions = append(r.st.contributions, it)
	}
	return nil
}

func (r *stubRepo) ListContributionExecutions(_ context.Context, clientID uint64) ([]models.ContributionExecution, error) {
	var out []models.ContributionExecution
	for _, c := range r.st.contributions {
		if c.ClientID == clientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubRepo) SumContributionsTx(_ context.Context, _ *gorm.DB, clientIDs []uint64) (map[uint64]decimal.Decimal, error) {
	out := map[uint64]decimal.Decimal{}
	wanted := map[uint64]bool{}
	for _, id := range clientIDs {
		wanted[id] = true
	}
	for _, c := range r.st.contributions {
		if wanted[c.ClientID] {
			out[c.ClientID] = out[c.ClientID].Add(c.Amount)
		}
	}
	return out, nil
}

func (r *stubRepo) UpsertPortfolioSnapshotsTx(_ context.Context, _ *gorm.DB, items []models.PortfolioSnapshot) error {
	for _, it := range items {
		r.st.snapshots[holdingKey{clientID: it.ClientID, ticker: it.ReferenceDate.Format(time.DateOnly)}] = it
	}
	return nil
}

func (r *stubRepo) ListPortfolioSnapshots(_ context.Context, clientID uint64) ([]models.PortfolioSnapshot, error) {
	var out []models.PortfolioSnapshot
	for k, v := range r.st.snapshots {
		if k.clientID == clientID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceDate.Before(out[j].ReferenceDate) })
	return out, nil
}

func (r *stubRepo) InsertSaleOperationsTx(_ context.Context, _ *gorm.DB, items []models.SaleOperation) error {
	for _, it := range items {
		it.ID = r.id()
		r.st.sales = append(r.st.sales, it)
	}
	return nil
}

func (r *stubRepo) ListSaleOperationsByMonthTx(_ context.Context, _ *gorm.DB, clientID uint64, monthKey string) ([]models.SaleOperation, error) {
	var out []models.SaleOperation
	for _, s := range r.st.sales {
		if s.ClientID == clientID && s.MonthKey == monthKey {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) ListClientHoldingsTx(_ context.Context, _ *gorm.DB, clientIDs []uint64) ([]models.ClientHolding, error) {
	wanted := map[uint64]bool{}
	for _, id := range clientIDs {
		wanted[id] = true
	}
	var out []models.ClientHolding
	for k, v := range r.st.holdings {
		if wanted[k.clientID] {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClientID != out[j].ClientID {
			return out[i].ClientID < out[j].ClientID
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out, nil
}

func (r *stubRepo) SaveClientHoldingsTx(_ context.Context, _ *gorm.DB, items []models.ClientHolding) error {
	for _, it := range items {
		r.st.holdings[holdingKey{clientID: it.ClientID, ticker: it.Ticker}] = it
	}
	return nil
}

func (r *stubRepo) ListMasterHoldingsTx(_ context.Context, _ *gorm.DB) ([]models.MasterHolding, error) {
	out := make([]models.MasterHolding, 0, len(r.st.master))
	for _, v := range r.st.master {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func (r *stubRepo) SaveMasterHoldingsTx(_ context.Context, _ *gorm.DB, items []models.MasterHolding) error {
	for _, it := range items {
		r.st.master[it.Ticker] = it
	}
	return nil
}

func (r *stubRepo) PurchaseExecutionExistsTx(_ context.Context, _ *gorm.DB, referenceDate time.Time) (bool, error) {
	for _, p := range r.st.purchases {
		if p.ReferenceDate.Equal(referenceDate) {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubRepo) InsertPurchaseExecutionTx(ctx context.Context, tx *gorm.DB, item *models.PurchaseExecution) error {
	if exists, _ := r.PurchaseExecutionExistsTx(ctx, tx, item.ReferenceDate); exists {
		return repository.ErrDuplicate
	}
	item.ID = r.id()
	r.st.purchases = append(r.st.purchases, *item)
	return nil
}

func (r *stubRepo) InsertRebalanceExecutionTx(_ context.Context, _ *gorm.DB, item *models.RebalanceExecution) error {
	item.ID = r.id()
	r.st.rebalances = append(r.st.rebalances, *item)
	return nil
}

func (r *stubRepo) InsertFiscalEventLogsTx(_ context.Context, _ *gorm.DB, items []models.FiscalEventLog) error {
	for _, it := range items {
		it.ID = r.id()
		r.st.fiscalLogs = append(r.st.fiscalLogs, it)
	}
	return nil
}

func (r *stubRepo) ListFiscalEventLogs(_ context.Context, params repository.ListFiscalEventLogsParams) ([]models.FiscalEventLog, error) {
	var out []models.FiscalEventLog
	for _, l := range r.st.fiscalLogs {
		if params.Type != nil && l.Type != *params.Type {
			continue
		}
		if params.ClientID != nil && l.ClientID != *params.ClientID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *stubRepo) CountFiscalEventLogs(ctx context.Context, params repository.ListFiscalEventLogsParams) (int64, error) {
	items, _ := r.ListFiscalEventLogs(ctx, params)
	return int64(len(items)), nil
}

func (r *stubRepo) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	item, ok := r.st.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *stubRepo) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	r.st.settings[item.Key] = *item
	return nil
}

func (r *stubRepo) ListSystemSettings(_ context.Context) ([]models.SystemSetting, error) {
	out := make([]models.SystemSetting, 0, len(r.st.settings))
	for _, v := range r.st.settings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *stubRepo) holding(clientID uint64, ticker string) models.ClientHolding {
	return r.st.holdings[holdingKey{clientID: clientID, ticker: ticker}]
}

func (r *stubRepo) logsWithStatus(status string) []models.FiscalEventLog {
	var out []models.FiscalEventLog
	for _, l := range r.st.fiscalLogs {
		if l.DeliveryStatus == status {
			out = append(out, l)
		}
	}
	return out
}

// staticQuotes answers from a fixed price table.
type staticQuotes struct {
	prices map[string]decimal.Decimal
	err    error
}

func (q *staticQuotes) Resolve(_ context.Context, tickers []string, asOf time.Time) (map[string]decimal.Decimal, error) {
	if q.err != nil {
		return nil, q.err
	}
	out := make(map[string]decimal.Decimal, len(tickers))
	var missing []string
	for _, t := range tickers {
		p, ok := q.prices[quote.Key(t)]
		if !ok {
			missing = append(missing, quote.Key(t))
			continue
		}
		out[quote.Key(t)] = p
	}
	if len(missing) > 0 {
		return nil, &quote.UnresolvedError{Tickers: missing, AsOf: asOf}
	}
	return out, nil
}

func defaultQuotes() *staticQuotes {
	return &staticQuotes{prices: map[string]decimal.Decimal{
		"PETR4": dec("35"),
		"VALE3": dec("62"),
		"ITUB4": dec("30"),
		"BBDC4": dec("15"),
		"WEGE3": dec("40"),
		"ABEV3": dec("12"),
	}}
}

// recordingPublisher keeps every event and fails from the failAt-th call
// on when failAt is positive.
type recordingPublisher struct {
	events []fiscal.Event
	calls  int
	failAt int
}

func (p *recordingPublisher) Publish(_ context.Context, ev fiscal.Event) error {
	p.calls++
	if p.failAt > 0 && p.calls >= p.failAt {
		return errors.New("stream unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fixture wires every service to one stub repository.
type fixture struct {
	repo      *stubRepo
	quotes    *staticQuotes
	publisher *recordingPublisher
	clock     fixedClock
	emitter   *FiscalEmitter
	purchases *PurchaseService
	rebalance *RebalanceService
	baskets   *BasketService
	clients   *ClientService
	custody   *CustodyService
	settings  *SystemSettingsService
}

var purchaseDay = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		repo:      newStubRepo(),
		quotes:    defaultQuotes(),
		publisher: &recordingPublisher{},
		clock:     fixedClock{now: time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)},
	}
	f.emitter = &FiscalEmitter{Repo: f.repo, Publisher: f.publisher}
	f.purchases = &PurchaseService{Repo: f.repo, Quotes: f.quotes, Fiscal: f.emitter, Clock: f.clock}
	f.rebalance = &RebalanceService{Repo: f.repo, Quotes: f.quotes, Fiscal: f.emitter, Clock: f.clock, DefaultThreshold: dec("5")}
	f.baskets = &BasketService{Repo: f.repo, Quotes: f.quotes, Fiscal: f.emitter, Rebalance: f.rebalance, Clock: f.clock}
	f.clients = &ClientService{Repo: f.repo, Quotes: f.quotes, Clock: f.clock}
	f.custody = &CustodyService{Repo: f.repo, Quotes: f.quotes, Clock: f.clock}
	f.settings = &SystemSettingsService{Repo: f.repo, Clock: f.clock}
	return f
}

func defaultBasketInput() BasketInput {
	return BasketInput{
		Name: "Top Five",
		Items: []BasketItemInput{
			{Ticker: "PETR4", Percentage: dec("30")},
			{Ticker: "VALE3", Percentage: dec("25")},
			{Ticker: "ITUB4", Percentage: dec("20")},
			{Ticker: "BBDC4", Percentage: dec("15")},
			{Ticker: "WEGE3", Percentage: dec("10")},
		},
	}
}

func (f *fixture) mustBasket(in BasketInput) *BasketCreated {
	out, err := f.baskets.Create(context.Background(), in)
	if err != nil {
		panic(err)
	}
	return out
}

func (f *fixture) mustJoin(name, taxID, monthly string) *JoinResult {
	out, err := f.clients.Join(context.Background(), JoinInput{
		Name:         name,
		TaxID:        taxID,
		Email:        name + "@example.com",
		MonthlyValue: dec(monthly),
	})
	if err != nil {
		panic(err)
	}
	return out
}
