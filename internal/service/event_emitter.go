package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/taxdesk-api/pkg/events"
)

// eventEmitter publishes domain events on a best-effort basis.
type eventEmitter struct {
	publisher events.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

func newEventEmitter(publisher events.Publisher, metrics *MetricsService, logger *zap.Logger) eventEmitter {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return eventEmitter{publisher: publisher, metrics: metrics, logger: logger, now: time.Now}
}

func (e eventEmitter) emit(ctx context.Context, eventType, subject string, data map[string]interface{}) {
	if e.publisher == nil {
		return
	}
	evt := events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: e.now().UTC(),
		Data:       data,
	}
	err := e.publisher.Publish(ctx, evt)
	e.metrics.RecordDomainEvent(eventType, err)
	if err != nil {
		e.logger.Warn("failed to publish domain event", zap.String("type", eventType), zap.String("subject", subject), zap.Error(err))
	}
}
