package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/product"
)

// Stage type names recorded in discount details.
const (
	TypeStandard         = "Standard"
	TypeLoyaltyTier      = "LoyaltyTier"
	TypeSkinProfileMatch = "SkinProfileMatch"
	TypeExpiryClearance  = "ExpiryClearance"
	TypeFlashSale        = "FlashSale"
	TypeCoupon           = "Coupon"
)

// Flat discount for products matching the customer's skin profile.
var skinMatchFraction = decimal.NewFromFloat(0.05)

// Strategy computes the base price for a (product, customer) pair before any
// decorating discount stages run. UnitPrice and DiscountFraction are
// consistent: UnitPrice = product price × (1 − fraction).
type Strategy interface {
	Name() string
	DiscountFraction(p *product.Product, c *customer.Customer) decimal.Decimal
	UnitPrice(p *product.Product, c *customer.Customer) decimal.Decimal
}

// SelectBaseStrategy picks exactly one base strategy, first match wins:
// no customer → Standard; loyalty tier above none → LoyaltyTier; completed
// skin profile matching the product tag → SkinProfileMatch; otherwise
// Standard. Selection is pure: the same snapshot always yields the same
// strategy.
func SelectBaseStrategy(p *product.Product, c *customer.Customer) Strategy {
	switch {
	case c == nil:
		return standardStrategy{}
	case c.Tier != customer.TierNone:
		return loyaltyStrategy{}
	case c.ProfileCompleted && c.SkinProfile != "" && c.SkinProfile == p.SkinProfile:
		return skinMatchStrategy{}
	default:
		return standardStrategy{}
	}
}

type standardStrategy struct{}

func (standardStrategy) Name() string { return TypeStandard }

func (standardStrategy) DiscountFraction(*product.Product, *customer.Customer) decimal.Decimal {
	return decimal.Zero
}

func (standardStrategy) UnitPrice(p *product.Product, _ *customer.Customer) decimal.Decimal {
	return p.Price
}

type loyaltyStrategy struct{}

func (loyaltyStrategy) Name() string { return TypeLoyaltyTier }

func (loyaltyStrategy) DiscountFraction(_ *product.Product, c *customer.Customer) decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return c.Tier.DiscountFraction()
}

func (s loyaltyStrategy) UnitPrice(p *product.Product, c *customer.Customer) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(1).Sub(s.DiscountFraction(p, c)))
}

type skinMatchStrategy struct{}

func (skinMatchStrategy) Name() string { return TypeSkinProfileMatch }

func (skinMatchStrategy) DiscountFraction(p *product.Product, c *customer.Customer) decimal.Decimal {
	if c == nil || !c.ProfileCompleted || c.SkinProfile == "" || c.SkinProfile != p.SkinProfile {
		return decimal.Zero
	}
	return skinMatchFraction
}

func (s skinMatchStrategy) UnitPrice(p *product.Product, c *customer.Customer) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(1).Sub(s.DiscountFraction(p, c)))
}
