package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
// It enforces the same uniqueness rules as the database schema.
type MockOrderRepository struct {
	orders map[string]models.Order
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create adds a new order together with its items.
func (r *MockOrderRepository) Create(_ context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return fmt.Errorf("order has no items")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.orders {
		if order.PaymentRef != nil && existing.PaymentRef != nil && *existing.PaymentRef == *order.PaymentRef {
			return fmt.Errorf("%w: payment_ref %s", ErrDuplicateOrder, *order.PaymentRef)
		}
		if order.SubmissionKey != nil && existing.SubmissionKey != nil &&
			existing.UserID == order.UserID && *existing.SubmissionKey == *order.SubmissionKey {
			return fmt.Errorf("%w: submission_key %s", ErrDuplicateOrder, *order.SubmissionKey)
		}
	}

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.orders[order.ID] = copyOrder(*order)
	return nil
}

// CreateFromCart stores the order. The mock keeps no carts, so there are no
// lines to remove.
func (r *MockOrderRepository) CreateFromCart(ctx context.Context, order *models.Order) error {
	return r.Create(ctx, order)
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id })
}

// GetByIDForUser returns an order by its ID if it belongs to userID.
func (r *MockOrderRepository) GetByIDForUser(_ context.Context, id, userID string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.ID == id && o.UserID == userID })
}

// GetByPaymentRef returns the order carrying paymentRef.
func (r *MockOrderRepository) GetByPaymentRef(_ context.Context, paymentRef string) (*models.Order, error) {
	return r.find(func(o models.Order) bool { return o.PaymentRef != nil && *o.PaymentRef == paymentRef })
}

// GetBySubmissionKey returns the user's order created for key.
func (r *MockOrderRepository) GetBySubmissionKey(_ context.Context, userID, key string) (*models.Order, error) {
	return r.find(func(o models.Order) bool {
		return o.UserID == userID && o.SubmissionKey != nil && *o.SubmissionKey == key
	})
}

// ListByUser returns the user's orders, newest first.
func (r *MockOrderRepository) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := make([]models.Order, 0)
	for _, order := range r.orders {
		if order.UserID == userID {
			orderList = append(orderList, copyOrder(order))
		}
	}
	sort.Slice(orderList, func(i, j int) bool { return orderList[i].CreatedAt.After(orderList[j].CreatedAt) })
	return orderList, nil
}

// UpdateStatus updates the status of an order that is still in status from.
func (r *MockOrderRepository) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if order.Status != from {
		return fmt.Errorf("order %s: %w", id, ErrStatusChanged)
	}
	order.Status = to
	order.UpdatedAt = time.Now()
	r.orders[id] = order
	return nil
}

// Count returns the number of stored orders.
func (r *MockOrderRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

func (r *MockOrderRepository) find(match func(models.Order) bool) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, order := range r.orders {
		if match(order) {
			found := copyOrder(order)
			return &found, nil
		}
	}
	return nil, fmt.Errorf("order: %w", ErrNotFound)
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}
