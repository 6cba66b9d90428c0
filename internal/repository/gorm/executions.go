package gormrepository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"compraprogramada/internal/models"
	"compraprogramada/internal/repository"
)

func (s *Store) PurchaseExecutionExistsTx(ctx context.Context, tx *gorm.DB, referenceDate time.Time) (bool, error) {
	if !s.ready() {
		return false, nil
	}
	var total int64
	if err := s.conn(ctx, tx).
		Model(&models.PurchaseExecution{}).
		Where("reference_date = ?", referenceDate.Format(time.DateOnly)).
		Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// InsertPurchaseExecutionTx creates the execution with its orders and
// distributions. A second insert for the same date yields ErrDuplicate.
func (s *Store) InsertPurchaseExecutionTx(ctx context.Context, tx *gorm.DB, item *models.PurchaseExecution) error {
	if !s.ready() || item == nil {
		return nil
	}
	return translate(s.conn(ctx, tx).Create(item).Error)
}

func (s *Store) InsertRebalanceExecutionTx(ctx context.Context, tx *gorm.DB, item *models.RebalanceExecution) error {
	if !s.ready() || item == nil {
		return nil
	}
	return s.conn(ctx, tx).Create(item).Error
}

func (s *Store) InsertFiscalEventLogsTx(ctx context.Context, tx *gorm.DB, items []models.FiscalEventLog) error {
	if !s.ready() {
		return nil
	}
	return translate(createInBatches(s.conn(ctx, tx), items, 200))
}

func (s *Store) ListFiscalEventLogs(ctx context.Context, params repository.ListFiscalEventLogsParams) ([]models.FiscalEventLog, error) {
	if !s.ready() {
		return nil, nil
	}
	query := fiscalLogFilters(s.db.WithContext(ctx).Model(&models.FiscalEventLog{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "occurred_at")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.FiscalEventLog
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountFiscalEventLogs(ctx context.Context, params repository.ListFiscalEventLogsParams) (int64, error) {
	if !s.ready() {
		return 0, nil
	}
	var total int64
	if err := fiscalLogFilters(s.db.WithContext(ctx).Model(&models.FiscalEventLog{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func fiscalLogFilters(query *gorm.DB, params repository.ListFiscalEventLogsParams) *gorm.DB {
	if params.Type != nil && strings.TrimSpace(*params.Type) != "" {
		query = query.Where("type = ?", strings.ToUpper(strings.TrimSpace(*params.Type)))
	}
	if params.ClientID != nil && *params.ClientID > 0 {
		query = query.Where("client_id = ?", *params.ClientID)
	}
	if params.MonthKey != nil && strings.TrimSpace(*params.MonthKey) != "" {
		query = query.Where("month_key = ?", strings.TrimSpace(*params.MonthKey))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("occurred_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("occurred_at < ?", *params.Until)
	}
	return query
}
