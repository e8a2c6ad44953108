package services

import (
	"context"
	"time"

	"storefront/internal/models"

	"go.uber.org/zap"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// publishOrderEvent is best-effort: the order is already committed, so a
// broker failure is logged and swallowed.
func publishOrderEvent(ctx context.Context, pub EventPublisher, log *zap.Logger, eventType string, order *models.Order) {
	if pub == nil {
		log.Debug("No event publisher configured, skipping event",
			zap.String("type", eventType), zap.String("order_id", order.ID))
		return
	}

	event := models.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalPrice:    order.TotalPrice,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
		OccurredAt:    time.Now().UTC(),
	}
	if err := pub.Publish(ctx, eventType, event); err != nil {
		log.Warn("Failed to publish order event",
			zap.String("type", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return
	}
	log.Debug("Published order event", zap.String("type", eventType), zap.String("order_id", order.ID))
}
