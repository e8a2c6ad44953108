package repositories

import (
	"context"
	"errors"

	"storefront/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist or is not
	// visible to the requesting user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateOrder is returned when an order with the same payment
	// reference or submission key already exists.
	ErrDuplicateOrder = errors.New("duplicate order")
	// ErrStatusChanged is returned when a conditional status update lost a race.
	ErrStatusChanged = errors.New("status changed concurrently")
	// ErrDuplicateUser is returned when the username or email is taken.
	ErrDuplicateUser = errors.New("duplicate user")
)

// ProductRepository defines the interface for catalog data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AddressRepository defines the interface for shipping address data access.
// Every read is scoped by the owning user.
type AddressRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Address, error)
	Create(ctx context.Context, address *models.Address) error
}

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.CartItem, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
}

// ShippingRuleRepository defines the interface for the shipping rule table.
type ShippingRuleRepository interface {
	GetActive(ctx context.Context) ([]models.ShippingRule, error)
	Create(ctx context.Context, rule *models.ShippingRule) error
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create persists the order header and its items as one unit.
	Create(ctx context.Context, order *models.Order) error
	// CreateFromCart persists the order like Create and, in the same
	// transaction, takes the ordered quantities out of the owner's cart.
	// Cart lines that were not ordered are left alone.
	CreateFromCart(ctx context.Context, order *models.Order) error
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	GetBySubmissionKey(ctx context.Context, userID, key string) (*models.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
}

// PaymentIntentRepository defines the interface for payment intent data access.
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *models.PaymentIntent) error
	GetForUser(ctx context.Context, gatewayOrderID, userID string) (*models.PaymentIntent, error)
	MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) error
	MarkFailed(ctx context.Context, gatewayOrderID, reason string) error
}
