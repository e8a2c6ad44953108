// Package pricing computes order subtotals and shipping fees.
package pricing

import (
	"context"
	"sort"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Defaults apply when the rule table is empty, unreachable, or has no
// free-shipping rule.
type Defaults struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
}

// StandardDefaults are used when configuration does not override them.
var StandardDefaults = Defaults{
	FreeShippingThreshold: decimal.NewFromInt(500),
	ShippingFee:           decimal.NewFromInt(40),
}

// RuleSource supplies the active shipping rules.
type RuleSource interface {
	GetActive(ctx context.Context) ([]models.ShippingRule, error)
}

// Quote is the priced summary of a checkout attempt.
type Quote struct {
	Subtotal              decimal.Decimal `json:"subtotal"`
	ShippingFee           decimal.Decimal `json:"shipping_fee"`
	Total                 decimal.Decimal `json:"total"`
	FreeShippingThreshold decimal.Decimal `json:"free_shipping_threshold"`
}

// Subtotal sums unit price times quantity over all lines.
func Subtotal(items []models.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// ShippingFee returns the fee for subtotal under rules, plus the
// free-shipping threshold in effect. The highest threshold met wins;
// reaching the free-shipping threshold always zeroes the fee.
func ShippingFee(subtotal decimal.Decimal, rules []models.ShippingRule, defaults Defaults) (fee, threshold decimal.Decimal) {
	active := make([]models.ShippingRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].MinOrderValue.GreaterThan(active[j].MinOrderValue)
	})

	threshold = defaults.FreeShippingThreshold
	for _, r := range active {
		if r.Charge.IsZero() {
			threshold = r.MinOrderValue
			break
		}
	}

	if !subtotal.IsPositive() {
		return decimal.Zero, threshold
	}

	fee = defaults.ShippingFee
	if len(active) > 0 {
		// lowest threshold rule is the fallback when nothing is met
		fee = active[len(active)-1].Charge
		for _, r := range active {
			if r.MinOrderValue.LessThanOrEqual(subtotal) {
				fee = r.Charge
				break
			}
		}
	}

	if subtotal.GreaterThanOrEqual(threshold) {
		fee = decimal.Zero
	}
	return fee, threshold
}

// Engine prices checkouts against the live rule table.
type Engine struct {
	rules    RuleSource
	defaults Defaults
	log      *zap.Logger
}

// NewEngine creates a new Engine. rules may be nil, in which case only the
// defaults are used.
func NewEngine(rules RuleSource, defaults Defaults, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{rules: rules, defaults: defaults, log: log}
}

// Quote prices subtotal. A rule-table read failure never blocks checkout:
// it is logged and the defaults are used instead.
func (e *Engine) Quote(ctx context.Context, subtotal decimal.Decimal) Quote {
	var rules []models.ShippingRule
	if e.rules != nil {
		loaded, err := e.rules.GetActive(ctx)
		if err != nil {
			e.log.Warn("Shipping rules unavailable, using defaults", zap.Error(err))
		} else {
			rules = loaded
		}
	}

	fee, threshold := ShippingFee(subtotal, rules, e.defaults)
	return Quote{
		Subtotal:              subtotal,
		ShippingFee:           fee,
		Total:                 subtotal.Add(fee),
		FreeShippingThreshold: threshold,
	}
}

// QuoteItems prices a list of line items.
func (e *Engine) QuoteItems(ctx context.Context, items []models.LineItem) Quote {
	return e.Quote(ctx, Subtotal(items))
}
