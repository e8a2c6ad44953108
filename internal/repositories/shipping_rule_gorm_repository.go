package repositories

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"gorm.io/gorm"
)

// GORMShippingRuleRepository is a GORM implementation of ShippingRuleRepository.
type GORMShippingRuleRepository struct {
	db *gorm.DB
}

// NewGORMShippingRuleRepository creates a new instance of GORMShippingRuleRepository.
func NewGORMShippingRuleRepository(db *gorm.DB) *GORMShippingRuleRepository {
	return &GORMShippingRuleRepository{db: db}
}

// GetActive returns the active rules, highest threshold first.
func (r *GORMShippingRuleRepository) GetActive(ctx context.Context) ([]models.ShippingRule, error) {
	var rules []models.ShippingRule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("min_order_value DESC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping rules: %w", err)
	}
	return rules, nil
}

// Create inserts a rule. Used for seeding only.
func (r *GORMShippingRuleRepository) Create(ctx context.Context, rule *models.ShippingRule) error {
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return fmt.Errorf("failed to create shipping rule: %w", err)
	}
	return nil
}
