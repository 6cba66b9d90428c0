package fiscal

import (
	"context"

	"go.uber.org/zap"
)

// Publisher delivers one event synchronously. An error means the event was
// not accepted by the collaborator.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher only logs; used when outbound delivery is disabled and the
// audit table is the sole record.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	if p.Logger != nil {
		p.Logger.Info("fiscal delivery disabled; event kept in audit log only",
			zap.String("event_id", ev.EventID),
			zap.String("type", ev.Type),
			zap.Uint64("client_id", ev.ClientID),
			zap.String("tax", ev.TaxValue.String()),
		)
	}
	return nil
}

// Fanout requires Primary to accept the event. Observers are notified after
// and their failures are only logged.
type Fanout struct {
	Primary   Publisher
	Observers []Publisher
	Logger    *zap.Logger
}

func (f *Fanout) Publish(ctx context.Context, ev Event) error {
	if f.Primary != nil {
		if err := f.Primary.Publish(ctx, ev); err != nil {
			return err
		}
	}
	for _, o := range f.Observers {
		if o == nil {
			continue
		}
		if err := o.Publish(ctx, ev); err != nil && f.Logger != nil {
			f.Logger.Warn("fiscal observer publish failed", zap.String("event_id", ev.EventID), zap.Error(err))
		}
	}
	return nil
}
