package gormrepository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"compraprogramada/internal/models"
)

func (s *Store) GetActiveBasketTx(ctx context.Context, tx *gorm.DB) (*models.Basket, error) {
	if !s.ready() {
		return nil, nil
	}
	var item models.Basket
	err := s.conn(ctx, tx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("ticker asc") }).
		Where("active = ?", true).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListBaskets(ctx context.Context) ([]models.Basket, error) {
	if !s.ready() {
		return nil, nil
	}
	var items []models.Basket
	if err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("ticker asc") }).
		Order("created_at desc").
		Order("id desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeactivateBasketTx(ctx context.Context, tx *gorm.DB, id uint64, at time.Time) error {
	if !s.ready() || id == 0 {
		return nil
	}
	return s.conn(ctx, tx).
		Model(&models.Basket{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"active":         false,
			"deactivated_at": at,
		}).Error
}

func (s *Store) CreateBasketTx(ctx context.Context, tx *gorm.DB, item *models.Basket) error {
	if !s.ready() || item == nil {
		return nil
	}
	return translate(s.conn(ctx, tx).Create(item).Error)
}
