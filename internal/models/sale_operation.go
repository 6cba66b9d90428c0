package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TriggerDeviation    = "DESVIO_PROPORCAO"
	TriggerBasketChange = "MUDANCA_CESTA"
)

type SaleOperation struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	ClientID   uint64          `gorm:"not null;index:idx_sales_client_month"`
	Ticker     string          `gorm:"type:varchar(12);not null"`
	Quantity   int64           `gorm:"not null"`
	SalePrice  decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	AvgCost    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalValue decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Profit     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	SoldAt     time.Time       `gorm:"type:timestamptz;not null"`
	MonthKey   string          `gorm:"type:varchar(7);not null;index:idx_sales_client_month"`
	Trigger    string          `gorm:"type:varchar(20);not null"`
}

func (SaleOperation) TableName() string {
	return "sale_operations"
}
