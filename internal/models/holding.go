package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClientHolding struct {
	ID       uint64          `gorm:"primaryKey;autoIncrement"`
	ClientID uint64          `gorm:"not null;uniqueIndex:idx_client_holdings_client_ticker"`
	Ticker   string          `gorm:"type:varchar(12);not null;uniqueIndex:idx_client_holdings_client_ticker"`
	Quantity int64           `gorm:"not null;default:0"`
	AvgPrice decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ClientHolding) TableName() string {
	return "client_holdings"
}

// MasterHolding is pooled inventory in the master account: bought and not
// yet distributed, or kept as residual.
type MasterHolding struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement"`
	Ticker    string          `gorm:"type:varchar(12);not null;uniqueIndex"`
	Quantity  int64           `gorm:"not null;default:0"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Origin    string          `gorm:"type:varchar(120);not null"`
	UpdatedAt time.Time       `gorm:"type:timestamptz;not null"`
}

func (MasterHolding) TableName() string {
	return "master_holdings"
}
