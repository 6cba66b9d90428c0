// Package fiscal builds withholding-tax events and delivers them to the
// outbound collaborators (Redis stream, websocket subscribers, logs).
package fiscal

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"compraprogramada/internal/ledger"
	"compraprogramada/internal/models"
)

const (
	TypeDedoDuro = "IR_DEDO_DURO"
	TypeSale     = "IR_VENDA"

	OperationBuy  = "COMPRA"
	OperationSell = "VENDA"
)

var (
	DedoDuroRate       = decimal.RequireFromString("0.00005")
	SaleRate           = decimal.RequireFromString("0.20")
	ExemptionThreshold = decimal.NewFromInt(20000)
)

// Event is the message delivered to publishers. Field names follow the
// downstream tax collector's contract.
type Event struct {
	EventID        string          `json:"eventId"`
	Type           string          `json:"tipo"`
	ClientID       uint64          `json:"clienteId"`
	TaxID          string          `json:"cpf"`
	Ticker         *string         `json:"ticker"`
	OperationType  string          `json:"tipoOperacao"`
	Quantity       int64           `json:"quantidade"`
	UnitPrice      decimal.Decimal `json:"precoUnitario"`
	OperationValue decimal.Decimal `json:"valorOperacao"`
	Rate           decimal.Decimal `json:"aliquota"`
	TaxValue       decimal.Decimal `json:"valorIr"`
	OccurredAt     time.Time       `json:"dataOperacao"`

	MonthKey        *string          `json:"mesReferencia"`
	TotalMonthSales *decimal.Decimal `json:"totalVendasMes"`
	NetProfit       *decimal.Decimal `json:"lucroLiquido"`
	Details         []SaleDetail     `json:"detalhes"`
}

type SaleDetail struct {
	Ticker    string          `json:"ticker"`
	Quantity  int64           `json:"quantidade"`
	SalePrice decimal.Decimal `json:"precoVenda"`
	AvgPrice  decimal.Decimal `json:"precoMedio"`
	Profit    decimal.Decimal `json:"lucro"`
}

// Sale is one sale operation counted towards the monthly liability.
type Sale struct {
	Ticker     string
	Quantity   int64
	SalePrice  decimal.Decimal
	AvgCost    decimal.Decimal
	TotalValue decimal.Decimal
	Profit     decimal.Decimal
}

// DedoDuro is the per-trade withholding emitted for every client purchase.
func DedoDuro(clientID uint64, taxID, ticker string, quantity int64, price decimal.Decimal, at time.Time) Event {
	value := decimal.NewFromInt(quantity).Mul(price)
	t := ticker
	return Event{
		EventID:        uuid.NewString(),
		Type:           TypeDedoDuro,
		ClientID:       clientID,
		TaxID:          taxID,
		Ticker:         &t,
		OperationType:  OperationBuy,
		Quantity:       quantity,
		UnitPrice:      ledger.Price(price),
		OperationValue: ledger.Money(value),
		Rate:           DedoDuroRate,
		TaxValue:       ledger.Money(value.Mul(DedoDuroRate)),
		OccurredAt:     at,
	}
}

// SaleTax computes the monthly IR-venda liability for one client. It reports
// false when the month's sales stay within the exemption threshold or the net
// profit is not positive.
func SaleTax(clientID uint64, taxID, monthKey string, sales []Sale, at time.Time) (Event, bool) {
	total := decimal.Zero
	profit := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.TotalValue)
		profit = profit.Add(s.Profit)
	}
	if total.LessThanOrEqual(ExemptionThreshold) || !profit.IsPositive() {
		return Event{}, false
	}

	details := make([]SaleDetail, 0, len(sales))
	for _, s := range sales {
		details = append(details, SaleDetail{
			Ticker:    s.Ticker,
			Quantity:  s.Quantity,
			SalePrice: ledger.Price(s.SalePrice),
			AvgPrice:  ledger.Price(s.AvgCost),
			Profit:    ledger.Money(s.Profit),
		})
	}
	month := monthKey
	totalRounded := ledger.Money(total)
	profitRounded := ledger.Money(profit)
	return Event{
		EventID:         uuid.NewString(),
		Type:            TypeSale,
		ClientID:        clientID,
		TaxID:           taxID,
		OperationType:   OperationSell,
		UnitPrice:       decimal.Zero,
		OperationValue:  totalRounded,
		Rate:            SaleRate,
		TaxValue:        ledger.Money(profit.Mul(SaleRate)),
		OccurredAt:      at,
		MonthKey:        &month,
		TotalMonthSales: &totalRounded,
		NetProfit:       &profitRounded,
		Details:         details,
	}, true
}

// LogEntry converts ev into its audit row.
func LogEntry(ev Event, status string) (models.FiscalEventLog, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return models.FiscalEventLog{}, err
	}
	return models.FiscalEventLog{
		EventID:        ev.EventID,
		Type:           ev.Type,
		ClientID:       ev.ClientID,
		TaxID:          ev.TaxID,
		Ticker:         ev.Ticker,
		MonthKey:       ev.MonthKey,
		OperationValue: ev.OperationValue,
		TaxValue:       ev.TaxValue,
		OccurredAt:     ev.OccurredAt,
		Payload:        payload,
		DeliveryStatus: status,
	}, nil
}
