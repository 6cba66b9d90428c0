package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Basket is a target allocation. At most one row has Active=true; the
// partial unique index enforces it at the storage level.
type Basket struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	Name          string     `gorm:"type:varchar(120);not null"`
	Active        bool       `gorm:"not null;default:false;uniqueIndex:idx_baskets_single_active,where:active = true"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null;index"`
	DeactivatedAt *time.Time `gorm:"type:timestamptz"`

	Items []BasketItem `gorm:"foreignKey:BasketID;constraint:OnDelete:CASCADE"`
}

func (Basket) TableName() string {
	return "baskets"
}

// Tickers returns the item tickers in stored order.
func (b Basket) Tickers() []string {
	out := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		out = append(out, item.Ticker)
	}
	return out
}

type BasketItem struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement"`
	BasketID   uint64          `gorm:"not null;uniqueIndex:idx_basket_items_basket_ticker"`
	Ticker     string          `gorm:"type:varchar(12);not null;uniqueIndex:idx_basket_items_basket_ticker"`
	Percentage decimal.Decimal `gorm:"type:numeric(9,4);not null"`
}

func (BasketItem) TableName() string {
	return "basket_items"
}
