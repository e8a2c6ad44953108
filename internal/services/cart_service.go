package services

import (
	"context"
	"errors"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/repositories"
)

// CartSummary is the cart contents with its current price quote.
type CartSummary struct {
	Items []models.CartItem `json:"items"`
	pricing.Quote
}

// CartService manages the server-side cart.
type CartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	pricing  *pricing.Engine
}

// NewCartService creates a new CartService.
func NewCartService(carts repositories.CartRepository, products repositories.ProductRepository, engine *pricing.Engine) *CartService {
	return &CartService{carts: carts, products: products, pricing: engine}
}

// List returns the user's cart lines.
func (s *CartService) List(ctx context.Context, userID string) ([]models.CartItem, error) {
	items, err := s.carts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("could not load cart", err)
	}
	return items, nil
}

// AddItem adds quantity of productID to the cart. The merged line may not
// exceed the per-line quantity cap.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if userID == "" {
		return nil, apperr.Auth("authentication required")
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.ReferenceData("product not found", err)
		}
		return nil, apperr.Persistence("could not load product", err)
	}

	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ProductID == productID && item.Quantity+quantity > models.MaxItemQuantity {
			return nil, apperr.Validation("quantity must be between 1 and %d", models.MaxItemQuantity)
		}
	}

	item, err := s.carts.AddItem(ctx, userID, productID, quantity)
	if err != nil {
		return nil, apperr.Persistence("could not update cart", err)
	}
	return item, nil
}

// Summary prices the user's cart the same way checkout will.
func (s *CartService) Summary(ctx context.Context, userID string) (*CartSummary, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, models.LineItem{
			ProductID: item.ProductID,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
		})
	}
	return &CartSummary{Items: items, Quote: s.pricing.QuoteItems(ctx, lines)}, nil
}
