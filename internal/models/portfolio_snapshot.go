package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is one valuation per client per reference date.
type PortfolioSnapshot struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	ClientID      uint64    `gorm:"not null;uniqueIndex:idx_snapshots_client_date"`
	ReferenceDate time.Time `gorm:"type:date;not null;uniqueIndex:idx_snapshots_client_date"`

	PortfolioValue decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	InvestedValue  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	ReturnPct      decimal.Decimal `gorm:"type:numeric(12,4);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
