package gormrepository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compraprogramada/internal/models"
)

func (s *Store) CreateClientTx(ctx context.Context, tx *gorm.DB, item *models.Client) error {
	if !s.ready() || item == nil {
		return nil
	}
	return translate(s.conn(ctx, tx).Create(item).Error)
}

func (s *Store) SaveClientTx(ctx context.Context, tx *gorm.DB, item *models.Client) error {
	if !s.ready() || item == nil || item.ID == 0 {
		return nil
	}
	return translate(s.conn(ctx, tx).Save(item).Error)
}

// GetClientByIDTx locks the row when called inside a transaction.
func (s *Store) GetClientByIDTx(ctx context.Context, tx *gorm.DB, id uint64) (*models.Client, error) {
	if !s.ready() || id == 0 {
		return nil, nil
	}
	query := s.conn(ctx, tx)
	if tx != nil {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var item models.Client
	err := query.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListActiveClientsTx(ctx context.Context, tx *gorm.DB) ([]models.Client, error) {
	if !s.ready() {
		return nil, nil
	}
	var items []models.Client
	if err := s.conn(ctx, tx).
		Where("active = ?", true).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertContributionChangeTx(ctx context.Context, tx *gorm.DB, item *models.ContributionChange) error {
	if !s.ready() || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(item).Error
}

func (s *Store) InsertContributionExecutionsTx(ctx context.Context, tx *gorm.DB, items []models.ContributionExecution) error {
	if !s.ready() {
		return nil
	}
	return translate(createInBatches(s.conn(ctx, tx), items, 200))
}

func (s *Store) ListContributionExecutions(ctx context.Context, clientID uint64) ([]models.ContributionExecution, error) {
	if !s.ready() || clientID == 0 {
		return nil, nil
	}
	var items []models.ContributionExecution
	if err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("reference_date asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SumContributionsTx(ctx context.Context, tx *gorm.DB, clientIDs []uint64) (map[uint64]decimal.Decimal, error) {
	out := map[uint64]decimal.Decimal{}
	ids := uniqueIDs(clientIDs)
	if !s.ready() || len(ids) == 0 {
		return out, nil
	}
	type row struct {
		ClientID uint64
		Total    decimal.Decimal
	}
	var rows []row
	if err := s.conn(ctx, tx).
		Model(&models.ContributionExecution{}).
		Select("client_id, COALESCE(SUM(amount), 0) AS total").
		Where("client_id IN ?", ids).
		Group("client_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ClientID] = r.Total
	}
	return out, nil
}

func (s *Store) UpsertPortfolioSnapshotsTx(ctx context.Context, tx *gorm.DB, items []models.PortfolioSnapshot) error {
	if !s.ready() || len(items) == 0 {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}, {Name: "reference_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"portfolio_value",
			"invested_value",
			"return_pct",
		}),
	}).Create(&items).Error
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, clientID uint64) ([]models.PortfolioSnapshot, error) {
	if !s.ready() || clientID == 0 {
		return nil, nil
	}
	var items []models.PortfolioSnapshot
	if err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("reference_date asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertSaleOperationsTx(ctx context.Context, tx *gorm.DB, items []models.SaleOperation) error {
	if !s.ready() {
		return nil
	}
	return createInBatches(s.conn(ctx, tx), items, 200)
}

func (s *Store) ListSaleOperationsByMonthTx(ctx context.Context, tx *gorm.DB, clientID uint64, monthKey string) ([]models.SaleOperation, error) {
	if !s.ready() || clientID == 0 || monthKey == "" {
		return nil, nil
	}
	var items []models.SaleOperation
	if err := s.conn(ctx, tx).
		Where("client_id = ?", clientID).
		Where("month_key = ?", monthKey).
		Order("sold_at asc").
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
