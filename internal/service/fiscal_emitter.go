package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"compraprogramada/internal/fiscal"
	"compraprogramada/internal/models"
	"compraprogramada/internal/repository"
)

// FiscalEmitter writes every tax event to the audit log inside the caller's
// unit of work and then publishes it. A publish failure aborts the unit of
// work; the events it had attempted are then recorded again outside of it
// so the audit trail survives the rollback.
type FiscalEmitter struct {
	Repo      repository.Repository
	Publisher fiscal.Publisher
	Logger    *zap.Logger
}

// fiscalBatch tracks the events emitted within one unit of work.
type fiscalBatch struct {
	emitter   *FiscalEmitter
	delivered []fiscal.Event
	failed    *fiscal.Event
}

func (e *FiscalEmitter) publisher() fiscal.Publisher {
	if e == nil || e.Publisher == nil {
		var logger *zap.Logger
		if e != nil {
			logger = e.Logger
		}
		return fiscal.LogPublisher{Logger: logger}
	}
	return e.Publisher
}

// InTx runs fn in one transaction with a fresh batch.
func (e *FiscalEmitter) InTx(ctx context.Context, fn func(tx *gorm.DB, batch *fiscalBatch) error) error {
	if e == nil || e.Repo == nil {
		return errors.New("fiscal emitter not configured")
	}
	batch := &fiscalBatch{emitter: e}
	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return fn(tx, batch)
	})
	if err != nil {
		e.recordAborted(context.WithoutCancel(ctx), batch)
	}
	return err
}

// Emit logs ev and publishes it.
func (b *fiscalBatch) Emit(ctx context.Context, tx *gorm.DB, ev fiscal.Event) error {
	row, err := fiscal.LogEntry(ev, models.DeliveryPublished)
	if err != nil {
		return internalError(err)
	}
	if err := b.emitter.Repo.InsertFiscalEventLogsTx(ctx, tx, []models.FiscalEventLog{row}); err != nil {
		return err
	}
	if err := b.emitter.publisher().Publish(ctx, ev); err != nil {
		failed := ev
		b.failed = &failed
		if b.emitter.Logger != nil {
			b.emitter.Logger.Error("fiscal event publish failed",
				zap.String("event_id", ev.EventID),
				zap.String("type", ev.Type),
				zap.Uint64("client_id", ev.ClientID),
				zap.Error(err),
			)
		}
		return publishUnavailable(err)
	}
	b.delivered = append(b.delivered, ev)
	return nil
}

// Count is the number of events delivered so far.
func (b *fiscalBatch) Count() int {
	return len(b.delivered)
}

func (e *FiscalEmitter) recordAborted(ctx context.Context, batch *fiscalBatch) {
	rows := make([]models.FiscalEventLog, 0, len(batch.delivered)+1)
	for _, ev := range batch.delivered {
		if row, err := fiscal.LogEntry(ev, models.DeliveryRevoked); err == nil {
			rows = append(rows, row)
		}
	}
	if batch.failed != nil {
		if row, err := fiscal.LogEntry(*batch.failed, models.DeliveryFailed); err == nil {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return
	}
	if err := e.Repo.InsertFiscalEventLogsTx(ctx, nil, rows); err != nil && e.Logger != nil {
		e.Logger.Error("record aborted fiscal events failed", zap.Int("events", len(rows)), zap.Error(err))
	}
}
