package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseExecution is unique per reference date; the unique index is the
// check-and-insert guard against concurrent runs.
type PurchaseExecution struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement"`
	ReferenceDate     time.Time       `gorm:"type:date;not null;uniqueIndex"`
	ExecutedAt        time.Time       `gorm:"type:timestamptz;not null"`
	TotalClients      int             `gorm:"not null"`
	TotalConsolidated decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TaxEvents         int             `gorm:"not null;default:0"`

	Orders        []MasterOrder        `gorm:"foreignKey:PurchaseExecutionID;constraint:OnDelete:CASCADE"`
	Distributions []ClientDistribution `gorm:"foreignKey:PurchaseExecutionID;constraint:OnDelete:CASCADE"`
}

func (PurchaseExecution) TableName() string {
	return "purchase_executions"
}

type MasterOrder struct {
	ID                  uint64          `gorm:"primaryKey;autoIncrement"`
	PurchaseExecutionID uint64          `gorm:"not null;index"`
	Ticker              string          `gorm:"type:varchar(12);not null"`
	TotalQuantity       int64           `gorm:"not null"`
	StandardLotQuantity int64           `gorm:"not null"`
	FractionalQuantity  int64           `gorm:"not null"`
	UnitPrice           decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	TotalValue          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
}

func (MasterOrder) TableName() string {
	return "master_orders"
}

type ClientDistribution struct {
	ID                  uint64          `gorm:"primaryKey;autoIncrement"`
	PurchaseExecutionID uint64          `gorm:"not null;index"`
	ClientID            uint64          `gorm:"not null;index"`
	ClientName          string          `gorm:"type:varchar(200);not null"`
	Contribution        decimal.Decimal `gorm:"type:numeric(20,2);not null"`

	Items []ClientDistributionItem `gorm:"foreignKey:ClientDistributionID;constraint:OnDelete:CASCADE"`
}

func (ClientDistribution) TableName() string {
	return "client_distributions"
}

type ClientDistributionItem struct {
	ID                   uint64 `gorm:"primaryKey;autoIncrement"`
	ClientDistributionID uint64 `gorm:"not null;index"`
	Ticker               string `gorm:"type:varchar(12);not null"`
	Quantity             int64  `gorm:"not null"`
}

func (ClientDistributionItem) TableName() string {
	return "client_distribution_items"
}
