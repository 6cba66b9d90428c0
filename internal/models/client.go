package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	Name          string          `gorm:"type:varchar(200);not null"`
	TaxID         string          `gorm:"column:tax_id;type:varchar(14);not null;uniqueIndex"`
	Email         string          `gorm:"type:varchar(200);not null"`
	MonthlyValue  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Active        bool            `gorm:"not null;default:true;index"`
	JoinedAt      time.Time       `gorm:"type:timestamptz;not null"`
	ExitedAt      *time.Time      `gorm:"type:timestamptz"`
	AccountNumber string          `gorm:"type:varchar(20);index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Client) TableName() string {
	return "clients"
}

// ContributionChange is the audit trail of monthly value edits.
type ContributionChange struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	ClientID      uint64          `gorm:"not null;index"`
	PreviousValue decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	NewValue      decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	ChangedAt     time.Time       `gorm:"type:timestamptz;not null"`
}

func (ContributionChange) TableName() string {
	return "contribution_changes"
}

// ContributionExecution records the installment a client paid into one
// purchase execution.
type ContributionExecution struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	ClientID      uint64          `gorm:"not null;uniqueIndex:idx_contrib_exec_client_date"`
	ReferenceDate time.Time       `gorm:"type:date;not null;uniqueIndex:idx_contrib_exec_client_date"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Installment   string          `gorm:"type:varchar(3);not null"`
	CreatedAt     time.Time       `gorm:"type:timestamptz;autoCreateTime"`
}

func (ContributionExecution) TableName() string {
	return "contribution_executions"
}
