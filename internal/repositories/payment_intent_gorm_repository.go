package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"gorm.io/gorm"
)

// GORMPaymentIntentRepository is a GORM implementation of PaymentIntentRepository.
type GORMPaymentIntentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentIntentRepository creates a new instance of GORMPaymentIntentRepository.
func NewGORMPaymentIntentRepository(db *gorm.DB) *GORMPaymentIntentRepository {
	return &GORMPaymentIntentRepository{db: db}
}

// Create records an intent returned by the gateway.
func (r *GORMPaymentIntentRepository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent.Status == "" {
		intent.Status = models.IntentCreated
	}
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}
	return nil
}

// GetForUser returns the intent if it belongs to userID.
func (r *GORMPaymentIntentRepository) GetForUser(ctx context.Context, gatewayOrderID, userID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("gateway_order_id = ? AND user_id = ?", gatewayOrderID, userID).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment intent %s: %w", gatewayOrderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment intent %s: %w", gatewayOrderID, err)
	}
	return &intent, nil
}

// MarkPaid settles the intent with paymentID. An intent already settled by
// a different payment is left alone and reported as ErrStatusChanged.
func (r *GORMPaymentIntentRepository) MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("gateway_order_id = ? AND (status <> ? OR payment_id = ?)", gatewayOrderID, models.IntentPaid, paymentID).
		Updates(map[string]any{"status": models.IntentPaid, "payment_id": paymentID, "failure_reason": ""})
	if res.Error != nil {
		return fmt.Errorf("failed to mark payment intent %s paid: %w", gatewayOrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment intent %s: %w", gatewayOrderID, ErrStatusChanged)
	}
	return nil
}

// MarkFailed records a failed payment attempt. Paid intents are never
// downgraded.
func (r *GORMPaymentIntentRepository) MarkFailed(ctx context.Context, gatewayOrderID, reason string) error {
	res := r.db.WithContext(ctx).Model(&models.PaymentIntent{}).
		Where("gateway_order_id = ? AND status <> ?", gatewayOrderID, models.IntentPaid).
		Updates(map[string]any{"status": models.IntentFailed, "failure_reason": reason})
	if res.Error != nil {
		return fmt.Errorf("failed to mark payment intent %s failed: %w", gatewayOrderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payment intent %s: %w", gatewayOrderID, ErrStatusChanged)
	}
	return nil
}
