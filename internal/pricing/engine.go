package pricing

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/QuynYang/glowaura/internal/domain/coupon"
	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/product"
)

// ErrInvalidQuantity is returned for non-positive line quantities.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// Warnings recorded on pricing results. Warnings never fail a calculation.
const (
	WarnStockLow      = "stock low"
	WarnExpiringSoon  = "expiring soon"
	WarnExpired       = "product expired"
	WarnCouponMin     = "minimum order not met"
	WarnCouponExpired = "coupon not currently valid"
)

// Remaining stock at or below this count triggers WarnStockLow.
const lowStockThreshold = 5

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Expiry clearance tiers, checked in order: within 7 days 40% off, within
// 14 days 25%, within 30 days 15%. Already-expired stock gets no clearance
// discount; it must be blocked from sale upstream.
var clearanceTiers = []struct {
	maxDays  int
	fraction decimal.Decimal
}{
	{7, decimal.NewFromFloat(0.40)},
	{14, decimal.NewFromFloat(0.25)},
	{30, decimal.NewFromFloat(0.15)},
}

// DiscountDetail records one triggered discount stage. Percent is the
// fraction of the price entering the stage; Amount is the money taken off;
// PriceAfter is the running price when the stage finished.
type DiscountDetail struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Percent     decimal.Decimal `json:"percent"`
	Amount      decimal.Decimal `json:"amount"`
	PriceAfter  decimal.Decimal `json:"price_after"`
}

// Result is the fully itemized outcome of pricing one cart line.
// FinalPrice = OriginalPrice − sum of detail amounts, never negative.
type Result struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	// OriginalPrice is the undiscounted line price: unit price × quantity.
	OriginalPrice decimal.Decimal  `json:"original_price"`
	FinalPrice    decimal.Decimal  `json:"final_price"`
	Details       []DiscountDetail `json:"details"`
	Warnings      []string         `json:"warnings,omitempty"`
}

// TotalDiscount returns the sum of all discount amounts on the line.
func (r *Result) TotalDiscount() decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Details {
		total = total.Add(d.Amount)
	}
	return total
}

// DiscountedUnitPrice returns the per-unit price after all discounts.
func (r *Result) DiscountedUnitPrice() decimal.Decimal {
	if r.Quantity == 0 {
		return decimal.Zero
	}
	return r.FinalPrice.Div(decimal.NewFromInt(int64(r.Quantity)))
}

// Engine prices cart lines by selecting a base strategy and then running the
// discount stages in their fixed order: expiry clearance, flash sale, coupon.
// Each stage discounts the already-discounted price of the previous one.
// Engines are stateless apart from the clock and safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an Engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// NewEngineAt creates an Engine with an injected clock, for deterministic
// expiry and flash-sale decisions.
func NewEngineAt(now func() time.Time) *Engine {
	return &Engine{now: now}
}

// PriceLine prices quantity units of the product for the given customer and
// optional coupon rule. A nil customer prices as an anonymous shopper; a nil
// rule means no coupon was supplied or the code did not resolve.
func (e *Engine) PriceLine(p *product.Product, c *customer.Customer, quantity int, rule *coupon.Rule) (*Result, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	now := e.now()
	qty := decimal.NewFromInt(int64(quantity))
	original := p.Price.Mul(qty)

	res := &Result{
		ProductID:     p.ID,
		ProductName:   p.Name,
		Quantity:      quantity,
		OriginalPrice: original,
		FinalPrice:    original,
	}

	e.stockWarnings(res, p, now)

	// Stage 1: base strategy.
	strategy := SelectBaseStrategy(p, c)
	res.applyFraction(strategy.Name(), strategyDescription(strategy, c), strategy.DiscountFraction(p, c))

	// Stage 2: expiry clearance.
	e.applyExpiryClearance(res, p, now)

	// Stage 3: flash sale.
	e.applyFlashSale(res, p, now)

	// Stage 4: coupon.
	e.applyCoupon(res, rule, now)

	res.finalize()
	return res, nil
}

func (e *Engine) stockWarnings(res *Result, p *product.Product, now time.Time) {
	if p.Stock <= lowStockThreshold {
		res.Warnings = append(res.Warnings, WarnStockLow)
	}
	if p.Expired(now) {
		res.Warnings = append(res.Warnings, WarnExpired)
		return
	}
	if days, ok := p.DaysUntilExpiry(now); ok && days <= product.ClearanceWindowDays {
		res.Warnings = append(res.Warnings, WarnExpiringSoon)
	}
}

func (e *Engine) applyExpiryClearance(res *Result, p *product.Product, now time.Time) {
	if p.Expired(now) {
		return
	}
	days, ok := p.DaysUntilExpiry(now)
	if !ok {
		return
	}
	for _, tier := range clearanceTiers {
		if days <= tier.maxDays {
			res.applyFraction(TypeExpiryClearance, "expiry clearance", tier.fraction)
			return
		}
	}
}

func (e *Engine) applyFlashSale(res *Result, p *product.Product, now time.Time) {
	if !p.FlashSaleActive(now) {
		return
	}
	res.applyFraction(TypeFlashSale, "flash sale", p.FlashSalePercent.Div(hundred))
}

func (e *Engine) applyCoupon(res *Result, rule *coupon.Rule, now time.Time) {
	if rule == nil {
		return
	}
	if !rule.ValidAt(now) {
		res.Warnings = append(res.Warnings, WarnCouponExpired)
		return
	}
	if rule.MinOrder.IsPositive() && res.FinalPrice.LessThan(rule.MinOrder) {
		res.Warnings = append(res.Warnings, WarnCouponMin)
		return
	}

	switch rule.Kind {
	case coupon.KindPercentage:
		amount := res.FinalPrice.Mul(rule.Value).Div(hundred)
		if rule.MaxDiscount.IsPositive() {
			amount = decimal.Min(amount, rule.MaxDiscount)
		}
		res.applyAmount(TypeCoupon, couponDescription(rule), rule.Value.Div(hundred), amount)
	case coupon.KindFixedAmount:
		amount := decimal.Min(rule.Value, res.FinalPrice)
		res.applyAmount(TypeCoupon, couponDescription(rule), decimal.Zero, amount)
	}
}

// applyFraction discounts the running price by the given fraction and, when
// the discount is non-zero, appends a detail entry. Stages that do not
// trigger add nothing.
func (r *Result) applyFraction(stageType, description string, fraction decimal.Decimal) {
	if !fraction.IsPositive() {
		return
	}
	r.applyAmount(stageType, description, fraction, r.FinalPrice.Mul(fraction))
}

func (r *Result) applyAmount(stageType, description string, fraction, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	r.FinalPrice = r.FinalPrice.Sub(amount)
	r.Details = append(r.Details, DiscountDetail{
		Type:        stageType,
		Description: description,
		Percent:     fraction,
		Amount:      amount,
		PriceAfter:  r.FinalPrice,
	})
}

// finalize clamps the price at zero and rounds it to the smallest currency
// unit, exactly once at the end of the chain. Any rounding delta is folded
// into the last detail so FinalPrice = OriginalPrice − Σ amounts holds.
func (r *Result) finalize() {
	if r.FinalPrice.IsNegative() {
		r.FinalPrice = decimal.Zero
	}
	rounded := r.FinalPrice.Round(0)
	if delta := r.FinalPrice.Sub(rounded); !delta.IsZero() && len(r.Details) > 0 {
		last := &r.Details[len(r.Details)-1]
		last.Amount = last.Amount.Add(delta)
		last.PriceAfter = rounded
	}
	r.FinalPrice = rounded
}

func strategyDescription(s Strategy, c *customer.Customer) string {
	switch s.Name() {
	case TypeLoyaltyTier:
		if c != nil {
			return "loyalty tier " + string(c.Tier)
		}
		return "loyalty tier"
	case TypeSkinProfileMatch:
		return "skin profile match"
	default:
		return "standard price"
	}
}

func couponDescription(rule *coupon.Rule) string {
	if rule.Description != "" {
		return rule.Description
	}
	return "coupon " + rule.Code
}
