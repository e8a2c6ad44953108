package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// EventHandler processes order messages taken off the broker.
type EventHandler struct {
	orders   *services.OrderService
	validate *validator.Validate
	log      *zap.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(orders *services.OrderService, log *zap.Logger) *EventHandler {
	return &EventHandler{
		orders:   orders,
		validate: validator.New(),
		log:      log,
	}
}

// Handle dispatches one message by its event type. Fulfilment events move
// the order to the reported status; the service's own order events are
// logged. A returned error means the message could not be processed.
func (h *EventHandler) Handle(ctx context.Context, eventType string, body []byte) error {
	if eventType == models.EventOrderFulfilment {
		return h.handleFulfilment(ctx, body)
	}

	var event models.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}
	h.log.Info("Received order event",
		zap.String("type", event.Type),
		zap.String("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
		zap.String("status", string(event.Status)),
		zap.String("total", event.TotalPrice.StringFixed(2)),
	)
	return nil
}

func (h *EventHandler) handleFulfilment(ctx context.Context, body []byte) error {
	var event models.FulfilmentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("failed to decode fulfilment event: %w", err)
	}
	if err := h.validate.Struct(event); err != nil {
		return fmt.Errorf("invalid fulfilment event: %w", err)
	}

	order, err := h.orders.UpdateOrderStatus(ctx, event.OrderID, event.Status)
	if err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			// redelivered or overtaken by a cancellation; nothing left to apply
			h.log.Warn("Fulfilment update not applied",
				zap.String("order_id", event.OrderID),
				zap.String("status", string(event.Status)),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("failed to apply fulfilment update to order %s: %w", event.OrderID, err)
	}

	h.log.Info("Fulfilment update applied",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
	)
	return nil
}
