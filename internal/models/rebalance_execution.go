package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RebalanceExecution struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement"`
	ReferenceDate    time.Time       `gorm:"type:date;not null;index"`
	ExecutedAt       time.Time       `gorm:"type:timestamptz;not null"`
	Trigger          string          `gorm:"type:varchar(20);not null;index"`
	ClientsProcessed int             `gorm:"not null"`
	TotalSales       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TotalPurchases   decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TotalSaleTax     decimal.Decimal `gorm:"type:numeric(20,2);not null"`
}

func (RebalanceExecution) TableName() string {
	return "rebalance_executions"
}
