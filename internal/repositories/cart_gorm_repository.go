package repositories

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// ListByUser returns the user's cart lines with their products joined in.
func (r *GORMCartRepository) ListByUser(ctx context.Context, userID string) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart for user %s: %w", userID, err)
	}
	return items, nil
}

// AddItem adds quantity of productID to the cart, merging with an existing line.
func (r *GORMCartRepository) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND product_id = ?", userID, productID).Limit(1).Find(&item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			item = models.CartItem{
				ID:        uuid.New().String(),
				UserID:    userID,
				ProductID: productID,
				Quantity:  quantity,
			}
			return tx.Create(&item).Error
		}
		item.Quantity += quantity
		return tx.Model(&item).Update("quantity", item.Quantity).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add product %s to cart: %w", productID, err)
	}
	return &item, nil
}

// removeOrderedLines takes each ordered quantity out of the user's cart.
// A line holding more than was ordered keeps the remainder.
func removeOrderedLines(tx *gorm.DB, userID string, items []models.OrderItem) error {
	for _, item := range items {
		err := tx.Model(&models.CartItem{}).
			Where("user_id = ? AND product_id = ? AND quantity > ?", userID, item.ProductID, item.Quantity).
			Update("quantity", gorm.Expr("quantity - ?", item.Quantity)).Error
		if err != nil {
			return fmt.Errorf("failed to reduce cart line %s: %w", item.ProductID, err)
		}
		err = tx.Where("user_id = ? AND product_id = ? AND quantity <= ?", userID, item.ProductID, item.Quantity).
			Delete(&models.CartItem{}).Error
		if err != nil {
			return fmt.Errorf("failed to remove cart line %s: %w", item.ProductID, err)
		}
	}
	return nil
}
