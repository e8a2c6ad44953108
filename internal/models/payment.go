package models

import "time"

// IntentStatus tracks a payment intent through the gateway round-trip.
type IntentStatus string

const (
	IntentCreated IntentStatus = "created"
	IntentPaid    IntentStatus = "paid"
	IntentFailed  IntentStatus = "failed"
)

// PaymentIntent is a gateway-side reservation of the amount to be paid,
// recorded locally so the finalize call can be reconciled against it.
// Amount is in the currency's minor unit. Mode, AddressID and LinesDigest
// pin the checkout the amount was computed for.
type PaymentIntent struct {
	GatewayOrderID string       `json:"gateway_order_id" gorm:"primaryKey;type:varchar(64)"`
	UserID         string       `json:"user_id" gorm:"index;type:varchar(36)"`
	Mode           CheckoutMode `json:"mode" gorm:"type:varchar(10)"`
	AddressID      string       `json:"address_id" gorm:"type:varchar(36)"`
	LinesDigest    string       `json:"-" gorm:"type:varchar(64)"`
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency" gorm:"type:varchar(3)"`
	Receipt        string       `json:"receipt" gorm:"type:varchar(64)"`
	Status         IntentStatus `json:"status" gorm:"type:varchar(20)"`
	PaymentID      string       `json:"payment_id,omitempty" gorm:"type:varchar(64)"`
	FailureReason  string       `json:"failure_reason,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// PaymentProof is what the gateway hands back to the client after a
// successful payment. Every field is untrusted until the signature checks out.
type PaymentProof struct {
	Method           PaymentChoice `json:"method" validate:"required,eq=ONLINE"`
	GatewayPaymentID string        `json:"gatewayPaymentId" validate:"required,max=64"`
	GatewayOrderID   string        `json:"gatewayOrderId" validate:"required,max=64"`
	Signature        string        `json:"signature" validate:"required,hexadecimal"`
}
