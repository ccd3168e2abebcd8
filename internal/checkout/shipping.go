package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/QuynYang/glowaura/internal/domain/customer"
)

// Shipping fee schedule (VND).
var (
	baseShippingFee       = decimal.NewFromInt(30_000)
	freeShippingThreshold = decimal.NewFromInt(500_000)
	expressSurcharge      = decimal.NewFromInt(20_000)
	giftWrapSurcharge     = decimal.NewFromInt(10_000)
)

// shippingFee computes the fee for an order whose discounted goods total is
// subtotal. The flat base fee is waived at the free-shipping threshold;
// express and gift-wrap surcharges apply on top; gold-and-above customers
// ship free regardless of surcharges.
func shippingFee(subtotal decimal.Decimal, tier customer.Tier, express, giftWrap bool) decimal.Decimal {
	fee := baseShippingFee
	if subtotal.GreaterThanOrEqual(freeShippingThreshold) {
		fee = decimal.Zero
	}
	if express {
		fee = fee.Add(expressSurcharge)
	}
	if giftWrap {
		fee = fee.Add(giftWrapSurcharge)
	}
	if tier.AtLeast(customer.TierGold) {
		return decimal.Zero
	}
	return fee
}
