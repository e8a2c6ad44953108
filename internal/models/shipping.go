package models

import "github.com/shopspring/decimal"

// ShippingRule charges Charge once the subtotal reaches MinOrderValue.
// A rule with a zero charge marks the free-shipping threshold.
type ShippingRule struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	MinOrderValue decimal.Decimal `json:"min_order_value" gorm:"type:decimal(12,2)"`
	Charge        decimal.Decimal `json:"charge" gorm:"type:decimal(12,2)"`
	Active        bool            `json:"active" gorm:"index"`
}

// LineItem is a priced product line used as pricing input.
type LineItem struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}
