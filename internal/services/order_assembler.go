package services

import (
	"context"
	"errors"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/repositories"
)

// OrderAssembler turns a checkout request into a validated, priced payload.
// It has no side effects besides catalog, cart and address reads.
type OrderAssembler struct {
	products  repositories.ProductRepository
	addresses repositories.AddressRepository
	carts     repositories.CartRepository
	pricing   *pricing.Engine
}

// NewOrderAssembler creates a new OrderAssembler.
func NewOrderAssembler(
	products repositories.ProductRepository,
	addresses repositories.AddressRepository,
	carts repositories.CartRepository,
	engine *pricing.Engine,
) *OrderAssembler {
	return &OrderAssembler{
		products:  products,
		addresses: addresses,
		carts:     carts,
		pricing:   engine,
	}
}

// Assemble validates req for userID and prices it. Item prices always come
// from the server: the cart join in cart mode, a fresh catalog read in
// buy-now mode.
func (a *OrderAssembler) Assemble(ctx context.Context, userID string, req models.OrderRequest) (*models.OrderPayload, error) {
	if userID == "" {
		return nil, apperr.Auth("authentication required")
	}

	method, err := resolvePaymentMethod(req.Payment)
	if err != nil {
		return nil, err
	}
	if req.AddressID == "" {
		return nil, apperr.Validation("shipping address is required")
	}

	mode := req.ResolvedMode()
	var lines []models.LineItem
	switch mode {
	case models.ModeBuyNow:
		lines, err = a.buyNowLines(ctx, req.Items)
	case models.ModeCart:
		if len(req.Items) > 0 {
			return nil, apperr.Validation("cart checkout does not take explicit items")
		}
		lines, err = a.cartLines(ctx, userID)
	default:
		return nil, apperr.Validation("unknown checkout mode %q", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	if err := a.checkAddress(ctx, userID, req.AddressID); err != nil {
		return nil, err
	}

	quote := a.pricing.QuoteItems(ctx, lines)
	if !quote.Total.IsPositive() {
		return nil, apperr.Validation("order total must be a positive amount")
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.UnitPrice,
		})
	}

	return &models.OrderPayload{
		UserID:            userID,
		Mode:              mode,
		ShippingAddressID: req.AddressID,
		PaymentMethod:     method,
		Subtotal:          quote.Subtotal,
		ShippingFee:       quote.ShippingFee,
		FreeShippingFrom:  quote.FreeShippingThreshold,
		TotalPrice:        quote.Total,
		Items:             items,
	}, nil
}

func resolvePaymentMethod(choice models.PaymentChoice) (models.PaymentMethod, error) {
	switch choice {
	case models.ChoiceCOD:
		return models.PaymentCOD, nil
	case models.ChoiceOnline:
		return models.PaymentPaid, nil
	default:
		return "", apperr.Validation("payment method must be COD or ONLINE")
	}
}

func validateQuantity(q int) error {
	if q < 1 || q > models.MaxItemQuantity {
		return apperr.Validation("quantity must be between 1 and %d", models.MaxItemQuantity)
	}
	return nil
}

func (a *OrderAssembler) buyNowLines(ctx context.Context, items []models.ItemRequest) ([]models.LineItem, error) {
	switch {
	case len(items) == 0:
		return nil, apperr.Validation("no items in order")
	case len(items) > 1:
		return nil, apperr.Validation("buy now accepts exactly one product")
	}
	item := items[0]
	if item.ProductID == "" {
		return nil, apperr.Validation("product is required")
	}
	if err := validateQuantity(item.Quantity); err != nil {
		return nil, err
	}

	product, err := a.products.GetByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.ReferenceData("product not found", err)
		}
		return nil, apperr.Persistence("could not load product", err)
	}

	return []models.LineItem{{
		ProductID: product.ID,
		UnitPrice: product.Price,
		Quantity:  item.Quantity,
	}}, nil
}

func (a *OrderAssembler) cartLines(ctx context.Context, userID string) ([]models.LineItem, error) {
	cart, err := a.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("could not load cart", err)
	}
	if len(cart) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	lines := make([]models.LineItem, 0, len(cart))
	for _, item := range cart {
		if err := validateQuantity(item.Quantity); err != nil {
			return nil, err
		}
		if item.Product.ID == "" {
			return nil, apperr.ReferenceData("a product in your cart is no longer available", nil)
		}
		lines = append(lines, models.LineItem{
			ProductID: item.Product.ID,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
		})
	}
	return lines, nil
}

func (a *OrderAssembler) checkAddress(ctx context.Context, userID, addressID string) error {
	addresses, err := a.addresses.ListByUser(ctx, userID)
	if err != nil {
		return apperr.Persistence("could not load addresses", err)
	}
	for _, addr := range addresses {
		if addr.ID == addressID {
			return nil
		}
	}
	return apperr.Validation("shipping address not found")
}
