package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusPaid       OrderStatus = "paid"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusPaid, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusPaid:       {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order may move from s to next.
// Statuses only move forward; cancellation is the one exit from any
// non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod is the payment method recorded on a persisted order.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "COD"
	PaymentPaid PaymentMethod = "Paid"
)

// PaymentChoice is the payment option a client picks at checkout.
type PaymentChoice string

const (
	ChoiceCOD    PaymentChoice = "COD"
	ChoiceOnline PaymentChoice = "ONLINE"
)

// CheckoutMode selects where the order lines come from.
type CheckoutMode string

const (
	ModeCart   CheckoutMode = "cart"
	ModeBuyNow CheckoutMode = "buy_now"
)

// MaxItemQuantity caps the quantity of a single order line.
const MaxItemQuantity = 100

// OrderItem is one immutable line of a persisted order.
type OrderItem struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID         string          `json:"order_id" gorm:"index;type:varchar(36)"`
	ProductID       string          `json:"product_id" gorm:"type:varchar(36)"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase" gorm:"type:decimal(12,2)"`
}

// Order represents a customer order.
type Order struct {
	ID                string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID            string          `json:"user_id" gorm:"type:varchar(36);uniqueIndex:idx_orders_user_submission"`
	SubmissionKey     *string         `json:"-" gorm:"type:varchar(128);uniqueIndex:idx_orders_user_submission"`
	ShippingAddressID string          `json:"shipping_address_id" gorm:"type:varchar(36)"`
	Subtotal          decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2)"`
	ShippingFee       decimal.Decimal `json:"shipping_fee" gorm:"type:decimal(12,2)"`
	TotalPrice        decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2)"`
	PaymentMethod     PaymentMethod   `json:"payment_method" gorm:"type:varchar(10)"`
	PaymentRef        *string         `json:"payment_ref,omitempty" gorm:"type:varchar(128);uniqueIndex"`
	Status            OrderStatus     `json:"status" gorm:"type:varchar(20)"`
	Items             []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ItemRequest is a client-supplied product line. Prices are never taken
// from the client.
type ItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is the request-scoped checkout input. It is never persisted.
type OrderRequest struct {
	Mode      CheckoutMode
	AddressID string
	Payment   PaymentChoice
	Items     []ItemRequest
}

// ResolvedMode returns the explicit mode, or infers it from the items:
// explicit items mean buy-now, none mean the server-side cart.
func (r OrderRequest) ResolvedMode() CheckoutMode {
	if r.Mode != "" {
		return r.Mode
	}
	if len(r.Items) > 0 {
		return ModeBuyNow
	}
	return ModeCart
}

// OrderPayload is a validated, priced order ready to persist.
type OrderPayload struct {
	UserID            string
	Mode              CheckoutMode
	ShippingAddressID string
	PaymentMethod     PaymentMethod
	Subtotal          decimal.Decimal
	ShippingFee       decimal.Decimal
	FreeShippingFrom  decimal.Decimal
	TotalPrice        decimal.Decimal
	Items             []OrderItem
}

// OrderEvent is published to the message broker after an order commits.
type OrderEvent struct {
	Type          string          `json:"type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        OrderStatus     `json:"status"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// FulfilmentEvent is sent by the warehouse when an order moves through
// fulfilment, e.g. when it ships or is delivered.
type FulfilmentEvent struct {
	OrderID string      `json:"order_id" validate:"required"`
	Status  OrderStatus `json:"status" validate:"required"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderStatusUpdated = "order.status_updated"
	EventOrderFulfilment    = "order.fulfilment"
)
