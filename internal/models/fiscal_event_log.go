package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	DeliveryPublished = "PUBLISHED"
	DeliveryFailed    = "FAILED"
	// DeliveryRevoked marks an event that reached the publisher but whose
	// unit of work was rolled back afterwards.
	DeliveryRevoked = "REVOKED"
)

// FiscalEventLog is append-only; rows are never updated.
type FiscalEventLog struct {
	ID             uint64          `gorm:"primaryKey;autoIncrement"`
	EventID        string          `gorm:"type:varchar(36);not null;uniqueIndex"`
	Type           string          `gorm:"type:varchar(20);not null;index"`
	ClientID       uint64          `gorm:"not null;index"`
	TaxID          string          `gorm:"column:tax_id;type:varchar(14);not null"`
	Ticker         *string         `gorm:"type:varchar(12)"`
	MonthKey       *string         `gorm:"type:varchar(7)"`
	OperationValue decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TaxValue       decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	OccurredAt     time.Time       `gorm:"type:timestamptz;not null;index"`
	Payload        datatypes.JSON  `gorm:"type:jsonb;not null"`
	DeliveryStatus string          `gorm:"type:varchar(16);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (FiscalEventLog) TableName() string {
	return "fiscal_event_logs"
}
