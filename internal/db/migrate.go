package db

import (
	"compraprogramada/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Basket{},
		&models.BasketItem{},
		&models.Client{},
		&models.ContributionChange{},
		&models.ContributionExecution{},
		&models.ClientHolding{},
		&models.MasterHolding{},
		&models.PortfolioSnapshot{},
		&models.SaleOperation{},
		&models.PurchaseExecution{},
		&models.MasterOrder{},
		&models.ClientDistribution{},
		&models.ClientDistributionItem{},
		&models.RebalanceExecution{},
		&models.FiscalEventLog{},
		&models.SystemSetting{},
	)
}
