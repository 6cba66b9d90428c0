package gormrepository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compraprogramada/internal/models"
)

func (s *Store) ListClientHoldingsTx(ctx context.Context, tx *gorm.DB, clientIDs []uint64) ([]models.ClientHolding, error) {
	ids := uniqueIDs(clientIDs)
	if !s.ready() || len(ids) == 0 {
		return nil, nil
	}
	var items []models.ClientHolding
	if err := s.conn(ctx, tx).
		Where("client_id IN ?", ids).
		Order("client_id asc").
		Order("ticker asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveClientHoldingsTx(ctx context.Context, tx *gorm.DB, items []models.ClientHolding) error {
	if !s.ready() || len(items) == 0 {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}, {Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity",
			"avg_price",
			"updated_at",
		}),
	}).Create(&items).Error
}

func (s *Store) ListMasterHoldingsTx(ctx context.Context, tx *gorm.DB) ([]models.MasterHolding, error) {
	if !s.ready() {
		return nil, nil
	}
	var items []models.MasterHolding
	if err := s.conn(ctx, tx).Order("ticker asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SaveMasterHoldingsTx(ctx context.Context, tx *gorm.DB, items []models.MasterHolding) error {
	if !s.ready() || len(items) == 0 {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ticker"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"quantity",
			"avg_price",
			"origin",
			"updated_at",
		}),
	}).Create(&items).Error
}
