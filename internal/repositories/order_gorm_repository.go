package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts the order header and then its items inside one
// transaction. If either insert fails nothing is committed, so a header is
// never visible without its items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.create(ctx, order, false)
}

// CreateFromCart is Create plus removal of the ordered lines from the
// owner's cart. The cart only changes if the order commits.
func (r *GORMOrderRepository) CreateFromCart(ctx context.Context, order *models.Order) error {
	return r.create(ctx, order, true)
}

func (r *GORMOrderRepository) create(ctx context.Context, order *models.Order, fromCart bool) error {
	if len(order.Items) == 0 {
		return fmt.Errorf("order has no items")
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

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return fmt.Errorf("failed to insert order header: %w", err)
		}
		if err := tx.Create(&order.Items).Error; err != nil {
			return fmt.Errorf("failed to insert order items: %w", err)
		}
		if fromCart {
			return removeOrderedLines(tx, order.UserID, order.Items)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %v", ErrDuplicateOrder, err)
		}
		return err
	}
	return nil
}

// GetByIDForUser returns the order only if it belongs to userID.
func (r *GORMOrderRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Order, error) {
	return r.first(ctx, "id = ? AND user_id = ?", id, userID)
}

// GetByID returns the order regardless of owner.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByPaymentRef returns the order created for a gateway payment.
func (r *GORMOrderRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	return r.first(ctx, "payment_ref = ?", paymentRef)
}

// GetBySubmissionKey returns the order created for a client submission key.
func (r *GORMOrderRepository) GetBySubmissionKey(ctx context.Context, userID, key string) (*models.Order, error) {
	return r.first(ctx, "user_id = ? AND submission_key = ?", userID, key)
}

// ListByUser returns the user's orders, newest first.
func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for user %s: %w", userID, err)
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another. The update only
// applies if the order is still in status from.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update status of order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s: %w", id, ErrStatusChanged)
	}
	return nil
}

func (r *GORMOrderRepository) first(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	res := r.db.WithContext(ctx).Preload("Items").Where(query, args...).Limit(1).Find(&order)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("order: %w", ErrNotFound)
	}
	return &order, nil
}
