package services

import (
	"context"
	"errors"

	"storefront/internal/apperr"
	"storefront/internal/idempotency"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"go.uber.org/zap"
)

const maxSubmissionKeyLen = 128

// OrderService handles business logic related to orders.
type OrderService struct {
	assembler *OrderAssembler
	orders    repositories.OrderRepository
	idem      idempotency.Store
	events    EventPublisher
	log       *zap.Logger
}

// NewOrderService creates a new OrderService. events may be nil when no
// broker is configured.
func NewOrderService(
	assembler *OrderAssembler,
	orders repositories.OrderRepository,
	idem idempotency.Store,
	events EventPublisher,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		assembler: assembler,
		orders:    orders,
		idem:      idem,
		events:    events,
		log:       log,
	}
}

// PlaceOrder places a cash-on-delivery order. A non-empty submissionKey
// makes the call idempotent per user: a repeat returns the first order.
func (s *OrderService) PlaceOrder(ctx context.Context, userID, submissionKey string, req models.OrderRequest) (*models.Order, error) {
	if userID == "" {
		return nil, apperr.Auth("authentication required")
	}
	if req.Payment == models.ChoiceOnline {
		return nil, apperr.Validation("online payments must be confirmed through /orders/finalize")
	}
	if len(submissionKey) > maxSubmissionKeyLen {
		return nil, apperr.Validation("idempotency key must be at most %d characters", maxSubmissionKeyLen)
	}

	var idemKey string
	var keyRef *string
	if submissionKey != "" {
		idemKey = "order:" + userID + ":" + submissionKey
		keyRef = &submissionKey

		existingID, err := s.idem.Reserve(ctx, idemKey)
		switch {
		case errors.Is(err, idempotency.ErrInFlight):
			return nil, apperr.Conflict("an identical order submission is already in progress")
		case err != nil:
			s.log.Warn("Idempotency store unavailable, relying on database constraint",
				zap.String("user_id", userID), zap.Error(err))
			idemKey = ""
		case existingID != "":
			return s.GetOrder(ctx, userID, existingID)
		}

		// the store may have expired the key while the order still exists
		if existing, err := s.orders.GetBySubmissionKey(ctx, userID, submissionKey); err == nil {
			s.complete(ctx, idemKey, existing.ID)
			return existing, nil
		} else if !errors.Is(err, repositories.ErrNotFound) {
			s.release(ctx, idemKey)
			return nil, apperr.Persistence("could not place order", err)
		}
	}

	payload, err := s.assembler.Assemble(ctx, userID, req)
	if err != nil {
		s.release(ctx, idemKey)
		s.log.Info("Order rejected",
			zap.String("user_id", userID),
			zap.String("reason", apperr.PublicMessage(err)),
		)
		return nil, err
	}

	order, err := s.CreateFromPayload(ctx, payload, keyRef, nil)
	if errors.Is(err, repositories.ErrDuplicateOrder) && keyRef != nil {
		order, err = s.orders.GetBySubmissionKey(ctx, userID, submissionKey)
		if err != nil {
			err = apperr.Persistence("could not place order", err)
		}
	}
	if err != nil {
		s.release(ctx, idemKey)
		return nil, err
	}

	s.complete(ctx, idemKey, order.ID)
	return order, nil
}

// CreateFromPayload persists an assembled payload. Cart checkouts take the
// ordered lines out of the cart in the same transaction. A duplicate
// submission key or payment reference is returned as
// repositories.ErrDuplicateOrder so the caller can resolve the existing order.
func (s *OrderService) CreateFromPayload(ctx context.Context, payload *models.OrderPayload, submissionKey, paymentRef *string) (*models.Order, error) {
	order := &models.Order{
		UserID:            payload.UserID,
		SubmissionKey:     submissionKey,
		ShippingAddressID: payload.ShippingAddressID,
		Subtotal:          payload.Subtotal,
		ShippingFee:       payload.ShippingFee,
		TotalPrice:        payload.TotalPrice,
		PaymentMethod:     payload.PaymentMethod,
		PaymentRef:        paymentRef,
		Status:            initialStatus(payload.PaymentMethod),
		Items:             append([]models.OrderItem(nil), payload.Items...),
	}

	create := s.orders.Create
	if payload.Mode == models.ModeCart {
		create = s.orders.CreateFromCart
	}
	if err := create(ctx, order); err != nil {
		if errors.Is(err, repositories.ErrDuplicateOrder) {
			return nil, err
		}
		s.log.Error("Failed to persist order",
			zap.String("user_id", payload.UserID),
			zap.String("total", payload.TotalPrice.StringFixed(2)),
			zap.Error(err),
		)
		return nil, apperr.Persistence("could not place order", err)
	}

	s.log.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("total", order.TotalPrice.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)

	eventType := models.EventOrderCreated
	if order.PaymentMethod == models.PaymentPaid {
		eventType = models.EventOrderPaid
	}
	publishOrderEvent(ctx, s.events, s.log, eventType, order)

	return order, nil
}

func initialStatus(method models.PaymentMethod) models.OrderStatus {
	if method == models.PaymentPaid {
		return models.StatusPaid
	}
	return models.StatusProcessing
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	if userID == "" {
		return nil, apperr.Auth("authentication required")
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("could not load orders", err)
	}
	return orders, nil
}

// GetOrder returns one of the user's orders.
func (s *OrderService) GetOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	if userID == "" {
		return nil, apperr.Auth("authentication required")
	}
	order, err := s.orders.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.ReferenceData("order not found", err)
		}
		return nil, apperr.Persistence("could not load order", err)
	}
	return order, nil
}

// CancelOrder cancels one of the user's orders before it ships.
func (s *OrderService) CancelOrder(ctx context.Context, userID, id string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if order.Status == models.StatusShipped {
		return nil, apperr.Conflict("order has already shipped")
	}
	return s.transition(ctx, order, models.StatusCancelled)
}

// UpdateOrderStatus moves any order to next, following the status
// transition table. It is meant for fulfilment tooling, not customers.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, apperr.Validation("invalid order status: %s", next)
	}
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.ReferenceData("order not found", err)
		}
		return nil, apperr.Persistence("could not load order", err)
	}
	return s.transition(ctx, order, next)
}

func (s *OrderService) transition(ctx context.Context, order *models.Order, next models.OrderStatus) (*models.Order, error) {
	if !order.Status.CanTransitionTo(next) {
		return nil, apperr.Conflict("order cannot move from " + string(order.Status) + " to " + string(next))
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, next); err != nil {
		if errors.Is(err, repositories.ErrStatusChanged) {
			return nil, apperr.Conflict("order status changed, reload and retry")
		}
		return nil, apperr.Persistence("could not update order status", err)
	}

	s.log.Info("Order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)),
	)
	order.Status = next
	publishOrderEvent(ctx, s.events, s.log, models.EventOrderStatusUpdated, order)
	return order, nil
}

func (s *OrderService) complete(ctx context.Context, key, orderID string) {
	if key == "" {
		return
	}
	if err := s.idem.Complete(ctx, key, orderID); err != nil {
		s.log.Warn("Failed to record idempotency result", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderService) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idem.Release(ctx, key); err != nil {
		s.log.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}
