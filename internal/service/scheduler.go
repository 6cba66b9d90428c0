package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"compraprogramada/internal/calendar"
)

const defaultAttemptTimeout = 2 * time.Minute

// PurchaseScheduler fires the purchase engine for today when today is an
// execution date. Each call is one bounded attempt; it never retries.
type PurchaseScheduler struct {
	Purchases      *PurchaseService
	Flags          *SystemSettingsService
	Clock          Clock
	Logger         *zap.Logger
	AttemptTimeout time.Duration
}

func (s *PurchaseScheduler) RunOnce(ctx context.Context) {
	if s == nil || s.Purchases == nil {
		return
	}
	if s.Flags != nil && !s.Flags.IsEnabled(ctx, FeaturePurchaseScheduler, true) {
		return
	}
	today := calendar.Date(clockOrSystem(s.Clock).Now())
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("reference_date", today.Format(time.DateOnly)))
	if !calendar.IsValidExecutionDate(today) {
		logger.Debug("not an execution date; skipping",
			zap.String("next_execution_date", calendar.NextExecutionDate(today).Format(time.DateOnly)),
		)
		return
	}

	timeout := s.AttemptTimeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.Purchases.Execute(attemptCtx, today)
	switch {
	case err == nil:
		logger.Info("scheduled purchase executed",
			zap.Int("clients", result.TotalClients),
			zap.String("total", result.TotalConsolidated.String()),
		)
	case KindOf(err) == KindAlreadyExecuted:
		logger.Debug("scheduled purchase already executed")
	case IsBusiness(err):
		logger.Warn("scheduled purchase skipped", zap.String("code", string(KindOf(err))), zap.Error(err))
	default:
		logger.Error("scheduled purchase failed", zap.Error(err))
	}
}
