package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/gateway"
	"storefront/internal/idempotency"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxReceiptLen = 40

// IntentRequest starts an online payment for a checkout.
type IntentRequest struct {
	Order    models.OrderRequest
	Amount   *decimal.Decimal
	Currency string
	Receipt  string
}

// IntentResult is what the client needs to open the gateway checkout.
type IntentResult struct {
	GatewayOrderID string          `json:"intentId"`
	Amount         decimal.Decimal `json:"amount"`
	AmountMinor    int64           `json:"amountMinor"`
	Currency       string          `json:"currency"`
	Receipt        string          `json:"receipt"`
	KeyID          string          `json:"keyId,omitempty"`
}

// FinalizeRequest confirms a completed online payment.
type FinalizeRequest struct {
	Order models.OrderRequest
	Total *decimal.Decimal
	Proof models.PaymentProof
}

// PaymentService runs the online payment round-trip: intent creation,
// signature-verified finalization and failure recording.
type PaymentService struct {
	assembler *OrderAssembler
	orders    *OrderService
	orderRepo repositories.OrderRepository
	intents   repositories.PaymentIntentRepository
	gateway   gateway.Client
	idem      idempotency.Store
	validate  *validator.Validate
	keyID     string
	keySecret string
	currency  string
	log       *zap.Logger
}

// PaymentConfig holds the gateway credentials the service signs against.
type PaymentConfig struct {
	KeyID     string
	KeySecret string
	Currency  string
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	assembler *OrderAssembler,
	orders *OrderService,
	orderRepo repositories.OrderRepository,
	intents repositories.PaymentIntentRepository,
	client gateway.Client,
	idem idempotency.Store,
	cfg PaymentConfig,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		assembler: assembler,
		orders:    orders,
		orderRepo: orderRepo,
		intents:   intents,
		gateway:   client,
		idem:      idem,
		validate:  validator.New(),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		currency:  strings.ToUpper(cfg.Currency),
		log:       log,
	}
}

// CreateIntent prices the checkout on the server and registers the amount
// with the gateway. A client-supplied amount must match the server total.
func (s *PaymentService) CreateIntent(ctx context.Context, userID string, req IntentRequest) (*IntentResult, error) {
	if userID == "" {
		return nil, apperr.Auth("authentication required")
	}
	currency := s.currency
	if req.Currency != "" && !strings.EqualFold(req.Currency, currency) {
		return nil, apperr.Validation("unsupported currency %s", req.Currency)
	}

	req.Order.Payment = models.ChoiceOnline
	payload, err := s.assembler.Assemble(ctx, userID, req.Order)
	if err != nil {
		return nil, err
	}
	if req.Amount != nil && !req.Amount.Equal(payload.TotalPrice) {
		return nil, apperr.Validation("amount does not match order total %s", payload.TotalPrice.StringFixed(2))
	}

	minor, err := gateway.ToMinorUnits(payload.TotalPrice)
	if err != nil {
		return nil, apperr.Validation("order total cannot be charged: %v", err)
	}

	receipt := req.Receipt
	if receipt == "" {
		receipt = "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if len(receipt) > maxReceiptLen {
		return nil, apperr.Validation("receipt must be at most %d characters", maxReceiptLen)
	}

	intent, err := s.gateway.CreateIntent(ctx, minor, currency, receipt)
	if err != nil {
		s.log.Error("Payment gateway rejected intent",
			zap.String("user_id", userID),
			zap.Int64("amount", minor),
			zap.Error(err),
		)
		return nil, apperr.PaymentGateway("could not start payment, please retry", err)
	}

	record := &models.PaymentIntent{
		GatewayOrderID: intent.ID,
		UserID:         userID,
		Mode:           payload.Mode,
		AddressID:      payload.ShippingAddressID,
		LinesDigest:    linesDigest(payload.Items),
		Amount:         minor,
		Currency:       currency,
		Receipt:        receipt,
		Status:         models.IntentCreated,
	}
	if err := s.intents.Create(ctx, record); err != nil {
		return nil, apperr.Persistence("could not record payment intent", err)
	}

	s.log.Info("Payment intent created",
		zap.String("user_id", userID),
		zap.String("gateway_order_id", intent.ID),
		zap.Int64("amount", minor),
	)

	return &IntentResult{
		GatewayOrderID: intent.ID,
		Amount:         payload.TotalPrice,
		AmountMinor:    minor,
		Currency:       currency,
		Receipt:        receipt,
		KeyID:          s.keyID,
	}, nil
}

// Finalize verifies the gateway proof and persists the paid order. It is
// idempotent per gateway payment id: a repeat returns the same order.
func (s *PaymentService) Finalize(ctx context.Context, userID string, req FinalizeRequest) (*models.Order, error) {
	if userID == "" {
		return nil, apperr.Auth("authentication required")
	}
	if err := s.validate.Struct(req.Proof); err != nil {
		return nil, apperr.Validation("invalid payment proof: %v", err)
	}
	proof := req.Proof

	if !gateway.VerifySignature(s.keySecret, proof.GatewayOrderID, proof.GatewayPaymentID, proof.Signature) {
		s.log.Error("Payment signature verification failed",
			zap.String("user_id", userID),
			zap.String("gateway_order_id", proof.GatewayOrderID),
			zap.String("gateway_payment_id", proof.GatewayPaymentID),
		)
		if _, err := s.intents.GetForUser(ctx, proof.GatewayOrderID, userID); err == nil {
			if err := s.intents.MarkFailed(ctx, proof.GatewayOrderID, "signature verification failed"); err != nil &&
				!errors.Is(err, repositories.ErrStatusChanged) {
				s.log.Warn("Failed to mark intent failed", zap.Error(err))
			}
		}
		return nil, apperr.SignatureVerification("payment verification failed")
	}

	idemKey := "finalize:" + proof.GatewayPaymentID
	existingID, err := s.idem.Reserve(ctx, idemKey)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		return nil, apperr.Conflict("payment confirmation is already in progress")
	case err != nil:
		s.log.Warn("Idempotency store unavailable, relying on database constraint", zap.Error(err))
		idemKey = ""
	case existingID != "":
		return s.orders.GetOrder(ctx, userID, existingID)
	}

	order, err := s.finalize(ctx, userID, req)
	if err != nil {
		if idemKey != "" {
			if relErr := s.idem.Release(ctx, idemKey); relErr != nil {
				s.log.Warn("Failed to release idempotency key", zap.String("key", idemKey), zap.Error(relErr))
			}
		}
		return nil, err
	}
	if idemKey != "" {
		if err := s.idem.Complete(ctx, idemKey, order.ID); err != nil {
			s.log.Warn("Failed to record idempotency result", zap.String("key", idemKey), zap.Error(err))
		}
	}
	return order, nil
}

func (s *PaymentService) finalize(ctx context.Context, userID string, req FinalizeRequest) (*models.Order, error) {
	proof := req.Proof

	if existing, err := s.existingForPayment(ctx, userID, proof.GatewayPaymentID); err != nil || existing != nil {
		return existing, err
	}

	intent, err := s.intents.GetForUser(ctx, proof.GatewayOrderID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Validation("unknown payment intent")
		}
		return nil, apperr.Persistence("could not load payment intent", err)
	}
	if intent.Status == models.IntentPaid && intent.PaymentID != proof.GatewayPaymentID {
		return nil, apperr.Conflict("payment intent has already been settled")
	}

	req.Order.Payment = models.ChoiceOnline
	payload, err := s.assembler.Assemble(ctx, userID, req.Order)
	if err != nil {
		return nil, err
	}
	minor, err := gateway.ToMinorUnits(payload.TotalPrice)
	if err != nil {
		return nil, apperr.Validation("order total cannot be charged: %v", err)
	}
	if minor != intent.Amount {
		s.log.Error("Paid amount does not match order total",
			zap.String("user_id", userID),
			zap.String("gateway_payment_id", proof.GatewayPaymentID),
			zap.Int64("paid", intent.Amount),
			zap.Int64("total", minor),
		)
		return nil, apperr.Validation("order total changed after payment was started")
	}
	if payload.Mode != intent.Mode || payload.ShippingAddressID != intent.AddressID ||
		linesDigest(payload.Items) != intent.LinesDigest {
		s.log.Error("Checkout does not match payment intent",
			zap.String("user_id", userID),
			zap.String("gateway_order_id", intent.GatewayOrderID),
			zap.String("mode", string(payload.Mode)),
			zap.String("intent_mode", string(intent.Mode)),
		)
		return nil, apperr.Validation("checkout does not match the payment that was started")
	}
	if req.Total != nil && !req.Total.Equal(payload.TotalPrice) {
		return nil, apperr.Validation("total does not match order total %s", payload.TotalPrice.StringFixed(2))
	}

	ref := proof.GatewayPaymentID
	order, err := s.orders.CreateFromPayload(ctx, payload, nil, &ref)
	if errors.Is(err, repositories.ErrDuplicateOrder) {
		existing, lookupErr := s.existingForPayment(ctx, userID, ref)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing != nil {
			return existing, nil
		}
		return nil, apperr.Persistence("could not place order", err)
	}
	if err != nil {
		return nil, err
	}

	if err := s.intents.MarkPaid(ctx, intent.GatewayOrderID, ref); err != nil {
		s.log.Warn("Order committed but intent could not be marked paid",
			zap.String("order_id", order.ID),
			zap.String("gateway_order_id", intent.GatewayOrderID),
			zap.Error(err),
		)
	}
	return order, nil
}

// linesDigest fingerprints the ordered products and quantities. Prices are
// left out; the intent amount already covers them.
func linesDigest(items []models.OrderItem) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("%s:%d", item.ProductID, item.Quantity))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// existingForPayment returns the order already recorded for paymentRef, or
// nil if there is none.
func (s *PaymentService) existingForPayment(ctx context.Context, userID, paymentRef string) (*models.Order, error) {
	existing, err := s.orderRepo.GetByPaymentRef(ctx, paymentRef)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, apperr.Persistence("could not load order", err)
	case existing.UserID != userID:
		return nil, apperr.Conflict("payment has already been used")
	}
	s.log.Info("Payment already finalized, returning existing order",
		zap.String("order_id", existing.ID),
		zap.String("gateway_payment_id", paymentRef),
	)
	return existing, nil
}

// RecordFailure marks the user's intent failed. The cart is left intact so
// the user can retry.
func (s *PaymentService) RecordFailure(ctx context.Context, userID, gatewayOrderID, reason string) error {
	if userID == "" {
		return apperr.Auth("authentication required")
	}
	if gatewayOrderID == "" {
		return apperr.Validation("gateway order id is required")
	}
	if _, err := s.intents.GetForUser(ctx, gatewayOrderID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperr.Validation("unknown payment intent")
		}
		return apperr.Persistence("could not load payment intent", err)
	}
	if reason == "" {
		reason = "payment failed"
	}
	if err := s.intents.MarkFailed(ctx, gatewayOrderID, reason); err != nil {
		if errors.Is(err, repositories.ErrStatusChanged) {
			return apperr.Conflict("payment has already completed")
		}
		return apperr.Persistence("could not record payment failure", err)
	}
	s.log.Warn("Payment failed",
		zap.String("user_id", userID),
		zap.String("gateway_order_id", gatewayOrderID),
		zap.String("reason", reason),
	)
	return nil
}
