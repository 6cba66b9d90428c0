package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"compraprogramada/internal/models"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// Repository is the storage contract of the engine and its surrounding
// services. Methods with a Tx suffix join the unit of work opened by InTx;
// a nil tx means "outside any transaction".
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	BasketRepository
	ClientRepository
	HoldingRepository
	ExecutionRepository
	SettingsRepository
}

type BasketRepository interface {
	GetActiveBasketTx(ctx context.Context, tx *gorm.DB) (*models.Basket, error)
	ListBaskets(ctx context.Context) ([]models.Basket, error)
	DeactivateBasketTx(ctx context.Context, tx *gorm.DB, id uint64, at time.Time) error
	CreateBasketTx(ctx context.Context, tx *gorm.DB, item *models.Basket) error
}

type ClientRepository interface {
	CreateClientTx(ctx context.Context, tx *gorm.DB, item *models.Client) error
	SaveClientTx(ctx context.Context, tx *gorm.DB, item *models.Client) error
	GetClientByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Client, error)
	ListActiveClientsTx(ctx context.Context, tx *gorm.DB) ([]models.Client, error)
	InsertContributionChangeTx(ctx context.Context, tx *gorm.DB, item *models.ContributionChange) error
	InsertContributionExecutionsTx(ctx context.Context, tx *gorm.DB, items []models.ContributionExecution) error
	ListContributionExecutions(ctx context.Context, clientID uint64) ([]models.ContributionExecution, error)
	SumContributionsTx(ctx context.Context, tx *gorm.DB, clientIDs []uint64) (map[uint64]decimal.Decimal, error)
	UpsertPortfolioSnapshotsTx(ctx context.Context, tx *gorm.DB, items []models.PortfolioSnapshot) error
	ListPortfolioSnapshots(ctx context.Context, clientID uint64) ([]models.PortfolioSnapshot, error)
	InsertSaleOperationsTx(ctx context.Context, tx *gorm.DB, items []models.SaleOperation) error
	ListSaleOperationsByMonthTx(ctx context.Context, tx *gorm.DB, clientID uint64, monthKey string) ([]models.SaleOperation, error)
}

type HoldingRepository interface {
	ListClientHoldingsTx(ctx context.Context, tx *gorm.DB, clientIDs []uint64) ([]models.ClientHolding, error)
	SaveClientHoldingsTx(ctx context.Context, tx *gorm.DB, items []models.ClientHolding) error
	ListMasterHoldingsTx(ctx context.Context, tx *gorm.DB) ([]models.MasterHolding, error)
	SaveMasterHoldingsTx(ctx context.Context, tx *gorm.DB, items []models.MasterHolding) error
}

type ExecutionRepository interface {
	PurchaseExecutionExistsTx(ctx context.Context, tx *gorm.DB, referenceDate time.Time) (bool, error)
	InsertPurchaseExecutionTx(ctx context.Context, tx *gorm.DB, item *models.PurchaseExecution) error
	InsertRebalanceExecutionTx(ctx context.Context, tx *gorm.DB, item *models.RebalanceExecution) error
	InsertFiscalEventLogsTx(ctx context.Context, tx *gorm.DB, items []models.FiscalEventLog) error
	ListFiscalEventLogs(ctx context.Context, params ListFiscalEventLogsParams) ([]models.FiscalEventLog, error)
	CountFiscalEventLogs(ctx context.Context, params ListFiscalEventLogsParams) (int64, error)
}

type SettingsRepository interface {
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	ListSystemSettings(ctx context.Context) ([]models.SystemSetting, error)
}

type ListFiscalEventLogsParams struct {
	Limit    int
	Offset   int
	Type     *string
	ClientID *uint64
	MonthKey *string
	Since    *time.Time
	Until    *time.Time
	OrderBy  string
	Asc      *bool
}
