package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/campuseats/canteen/internal/domain"
)

// Publisher is the transport side of the fanout, satisfied by
// messaging.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Fanout routes lifecycle events to exactly the party that should observe
// them: the vendor's topic for new orders, the student's topic for status
// updates. It never fans out wider than one topic per event, so there is no
// cross-talk between vendors or students. Delivery is at-least-once and
// fire-and-forget relative to the state transition; failures surface as
// errors for the caller to log, never to roll back.
type Fanout struct {
	producer Publisher
	logger   *slog.Logger
}

func NewFanout(producer Publisher, logger *slog.Logger) *Fanout {
	return &Fanout{
		producer: producer,
		logger:   logger,
	}
}

func (f *Fanout) NewOrder(ctx context.Context, o domain.Order) error {
	event := domain.NewOrderEvent{
		Order:     o,
		Timestamp: time.Now().UTC(),
	}
	return f.producer.Publish(ctx, domain.VendorTopic(o.VendorID).Name(), o.ID, event)
}

func (f *Fanout) StatusUpdate(ctx context.Context, o domain.Order) error {
	if o.StudentID == nil {
		// Anonymous walk-up order: nobody subscribed, nothing to deliver.
		f.logger.Debug("skipping status notification for anonymous order", "order_id", o.ID)
		return nil
	}

	event := domain.StatusUpdateEvent{
		OrderID:             o.ID,
		Status:              o.Status,
		Token:               o.Token,
		PredictedPickupTime: o.PredictedPickupTime,
		Timestamp:           time.Now().UTC(),
	}
	return f.producer.Publish(ctx, domain.StudentTopic(*o.StudentID).Name(), o.ID, event)
}
