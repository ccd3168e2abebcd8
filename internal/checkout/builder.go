package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/QuynYang/glowaura/internal/domain/coupon"
	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/order"
	"github.com/QuynYang/glowaura/internal/domain/product"
	"github.com/QuynYang/glowaura/internal/pricing"
)

// Attempts per line before a lost stock race fails the build.
const stockRetries = 3

// CartItem is one raw cart line.
type CartItem struct {
	ProductID string
	Quantity  int
}

// Request holds everything needed to assemble an order.
type Request struct {
	CustomerID      string
	Items           []CartItem
	ShippingAddress string
	Phone           string
	Receiver        string
	PaymentMethod   order.PaymentMethod

	CouponCode string
	Notes      string
	GiftWrap   bool
	Express    bool
	// ShippingFeeOverride replaces the computed fee when set.
	ShippingFeeOverride *decimal.Decimal
}

/// Built is the outcome of a successful build: a pending, fully priced,
// stock-reserved order plus the per-line pricing breakdowns and any
// non-fatal warnings gathered along the way.
type Built struct {
	Order    *order.Order
	Pricing  []*pricing.Result
	Warnings []string
}

// Builder assembles raw carts into valid pending orders. It validates input
// collecting every problem, prices each line through the engine, reserves
// stock atomically per product, and rolls the whole build back on failure.
type Builder struct {
	products  product.Repository
	customers customer.Repository
	coupons   coupon.Lookup
	engine    *pricing.Engine
	lg        *zap.Logger
	now       func() time.Time
}

// NewBuilder creates a Builder with the required collaborators.
func NewBuilder(
	products product.Repository,
	customers customer.Repository,
	coupons coupon.Lookup,
	engine *pricing.Engine,
	lg *zap.Logger,
) *Builder {
	return &Builder{
		products:  products,
		customers: customers,
		coupons:   coupons,
		engine:    engine,
		lg:        lg,
		now:       time.Now,
	}
}

// pricedLine pairs a cart line with its product and pricing outcome.
type pricedLine struct {
	item   CartItem
	result *pricing.Result
}

// Build turns the request into a pending order or fails with an itemized
// ValidationError, a business error, or a wrapped infrastructure error.
// No partial effect survives a failure: any stock decremented for earlier
// lines is released before the error is returned.
func (b *Builder) Build(ctx context.Context, req Request) (*Built, error) {
	if verr := validateRequest(req); !verr.Empty() {
		return nil, verr
	}

	cust, err := b.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			verr := newValidationError()
			verr.Add("customer_id", "customer not found")
			return nil, verr
		}
		return nil, errors.Wrap(err, "load customer")
	}

	var warnings []string

	rule, warn, err := b.resolveCoupon(ctx, req.CouponCode)
	if err != nil {
		return nil, err
	}
	if warn != "" {
		warnings = append(warnings, warn)
	}

	lines, lineWarnings, err := b.priceLines(ctx, req, cust, rule)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, lineWarnings...)

	if err := b.reserveStock(ctx, lines); err != nil {
		return nil, err
	}

	built, err := b.assemble(req, cust, lines, warnings)
	if err != nil {
		// Assembly failures must not leak reservations.
		b.releaseStock(ctx, lines, len(lines))
		return nil, err
	}
	return built, nil
}

func validateRequest(req Request) *ValidationError {
	verr := newValidationError()

	if req.CustomerID == "" {
		verr.Add("customer_id", "required")
	}
	if len(req.Items) == 0 {
		verr.Add("items", "at least one item is required")
	}
	for i, item := range req.Items {
		if item.ProductID == "" {
			verr.Add(fmt.Sprintf("items[%d]", i), "product id required")
		}
		if item.Quantity <= 0 {
			verr.Add(fmt.Sprintf("items[%d]", i), "quantity must be greater than 0")
		}
	}
	if req.ShippingAddress == "" {
		verr.Add("shipping_address", "required")
	}
	if req.Phone == "" {
		verr.Add("phone", "required")
	}
	if req.Receiver == "" {
		verr.Add("receiver", "required")
	}
	switch req.PaymentMethod {
	case order.MethodCOD, order.MethodMomo, order.MethodVNPay,
		order.MethodZaloPay, order.MethodBankTransfer:
	case "":
		verr.Add("payment_method", "required")
	default:
		verr.Add("payment_method", "unknown payment method")
	}
	return verr
}

// resolveCoupon looks the code up once per build. Unknown codes are not an
// error; the coupon simply does not apply.
func (b *Builder) resolveCoupon(ctx context.Context, code string) (*coupon.Rule, string, error) {
	if code == "" {
		return nil, "", nil
	}
	rule, err := b.coupons.Resolve(ctx, code)
	if err != nil {
		return nil, "", errors.Wrap(err, "resolve coupon")
	}
	if rule == nil {
		return nil, fmt.Sprintf("coupon %s not applied", code), nil
	}
	return rule, "", nil
}

// priceLines loads, screens, and prices every cart line. Soft-deleted
// products are skipped with a warning; expired products and demand beyond
// stock hard-fail the build with per-line problems.
func (b *Builder) priceLines(ctx context.Context, req Request, cust *customer.Customer, rule *coupon.Rule) ([]pricedLine, []string, error) {
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}
	fetched, err := b.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	now := b.now()
	problems := newValidationError()
	var warnings []string
	lines := make([]pricedLine, 0, len(req.Items))

	for i, item := range req.Items {
		key := fmt.Sprintf("items[%d]", i)

		p, ok := byID[item.ProductID]
		if !ok {
			problems.Add(key, "product not found")
			continue
		}
		if p.IsDeleted() {
			warnings = append(warnings, fmt.Sprintf("product %s is no longer sold, line skipped", p.ID))
			continue
		}
		if p.Expired(now) {
			problems.Add(key, "product is expired and cannot be sold")
			continue
		}
		if p.Stock < item.Quantity {
			problems.Add(key, fmt.Sprintf("insufficient stock (requested %d, available %d)", item.Quantity, p.Stock))
			continue
		}

		res, err := b.engine.PriceLine(p, cust, item.Quantity, rule)
		if err != nil {
			problems.Add(key, err.Error())
			continue
		}
		warnings = append(warnings, res.Warnings...)
		lines = append(lines, pricedLine{item: item, result: res})
	}

	if !problems.Empty() {
		return nil, nil, problems
	}
	if len(lines) == 0 {
		problems.Add("items", "no purchasable items in cart")
		return nil, nil, problems
	}
	return lines, warnings, nil
}

// reserveStock decrements stock for every line. The decrement itself is the
// atomic guard against concurrent builds; a line that keeps losing the race
// aborts the build and releases everything reserved so far.
func (b *Builder) reserveStock(ctx context.Context, lines []pricedLine) error {
	for i, line := range lines {
		reserved, lastErr := false, error(nil)
		for attempt := 0; attempt < stockRetries; attempt++ {
			ok, err := b.products.TryDecrementStock(ctx, line.item.ProductID, line.item.Quantity)
			if err != nil {
				lastErr = err
				continue
			}
			lastErr = nil
			if ok {
				reserved = true
			}
			break
		}
		if reserved {
			continue
		}

		b.releaseStock(ctx, lines, i)
		if lastErr != nil {
			return errors.Wrapf(ErrTemporarilyUnavailable, "reserve stock for %s: %s",
				line.item.ProductID, lastErr)
		}
		return &InsufficientStockError{
			ProductID: line.item.ProductID,
			Requested: line.item.Quantity,
		}
	}
	return nil
}

// releaseStock returns reservations for lines[0:n]. Release is best effort;
// failures are logged and left to reconciliation.
func (b *Builder) releaseStock(ctx context.Context, lines []pricedLine, n int) {
	for _, line := range lines[:n] {
		if err := b.products.IncrementStock(ctx, line.item.ProductID, line.item.Quantity); err != nil {
			b.lg.Error("failed to release reserved stock",
				zap.String("product_id", line.item.ProductID),
				zap.Int("quantity", line.item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (b *Builder) assemble(req Request, cust *customer.Customer, lines []pricedLine, warnings []string) (*Built, error) {
	now := b.now()
	o := order.New(cust.ID, order.GenerateNumber(now), now)

	results := make([]*pricing.Result, 0, len(lines))
	for _, line := range lines {
		res := line.result
		if err := o.AddItem(order.OrderItem{
			ProductID:           res.ProductID,
			ProductName:         res.ProductName,
			UnitPrice:           res.OriginalPrice.Div(decimal.NewFromInt(int64(res.Quantity))),
			DiscountedUnitPrice: res.DiscountedUnitPrice(),
			Quantity:            res.Quantity,
			LineTotal:           res.FinalPrice,
		}, now); err != nil {
			return nil, errors.Wrap(err, "attach item")
		}
		results = append(results, res)
	}

	goodsTotal := o.Subtotal.Sub(o.Discount)
	if req.ShippingFeeOverride != nil {
		o.ShippingFee = *req.ShippingFeeOverride
	} else {
		o.ShippingFee = shippingFee(goodsTotal, cust.Tier, req.Express, req.GiftWrap)
	}

	o.PaymentMethod = req.PaymentMethod
	o.ShippingAddress = req.ShippingAddress
	o.Phone = req.Phone
	o.Receiver = req.Receiver
	o.CouponCode = req.CouponCode
	o.Notes = req.Notes
	o.GiftWrap = req.GiftWrap
	o.Express = req.Express

	return &Built{Order: o, Pricing: results, Warnings: warnings}, nil
}
