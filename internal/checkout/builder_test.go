package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/QuynYang/glowaura/internal/domain/coupon"
	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/order"
	"github.com/QuynYang/glowaura/internal/domain/product"
	"github.com/QuynYang/glowaura/internal/pricing"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

// stubProductRepo is a thread-safe in-memory product store. Its
// TryDecrementStock is a genuine atomic check-and-decrement, which the
// concurrency tests rely on.
type stubProductRepo struct {
	mu       sync.Mutex
	products map[string]*product.Product
	// failDecrement simulates a concurrent steal: the listed products
	// always lose the reservation race.
	failDecrement map[string]bool
}

func newStubProducts(products ...*product.Product) *stubProductRepo {
	byID := make(map[string]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &stubProductRepo{products: byID, failDecrement: map[string]bool{}}
}

func (s *stubProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubProductRepo) Save(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *stubProductRepo) SoftDelete(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.DeletedAt = &at
	}
	return nil
}

func (s *stubProductRepo) TryDecrementStock(_ context.Context, id string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDecrement[id] {
		return false, nil
	}
	p, ok := s.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (s *stubProductRepo) IncrementStock(_ context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		p.Stock += qty
	}
	return nil
}

func (s *stubProductRepo) stockOf(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

type stubCustomerRepo struct {
	byID map[string]*customer.Customer
}

func (s *stubCustomerRepo) GetByID(_ context.Context, id string) (*customer.Customer, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (s *stubCustomerRepo) Save(_ context.Context, c *customer.Customer) error {
	s.byID[c.ID] = c
	return nil
}

type stubCouponLookup struct {
	rules map[string]*coupon.Rule
}

func (s *stubCouponLookup) Resolve(_ context.Context, code string) (*coupon.Rule, error) {
	return s.rules[code], nil
}

// --- Helpers ---

func vnd(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func serumProduct(stock int) *product.Product {
	return &product.Product{ID: "p1", Name: "Vitamin C Serum", Price: vnd(150_000), Stock: stock}
}

func tonerProduct(stock int) *product.Product {
	return &product.Product{ID: "p2", Name: "Niacinamide Toner", Price: vnd(100_000), Stock: stock}
}

func regularCustomer() *customer.Customer {
	return &customer.Customer{ID: "c1", Name: "Mai", Tier: customer.TierNone}
}

func newTestBuilder(t *testing.T, products *stubProductRepo, cust *customer.Customer, rules map[string]*coupon.Rule) *Builder {
	t.Helper()
	customers := &stubCustomerRepo{byID: map[string]*customer.Customer{}}
	if cust != nil {
		customers.byID[cust.ID] = cust
	}
	if rules == nil {
		rules = map[string]*coupon.Rule{}
	}
	b := NewBuilder(
		products,
		customers,
		&stubCouponLookup{rules: rules},
		pricing.NewEngineAt(func() time.Time { return fixedNow }),
		zaptest.NewLogger(t),
	)
	b.now = func() time.Time { return fixedNow }
	return b
}

func validRequest(items ...CartItem) Request {
	return Request{
		CustomerID:      "c1",
		Items:           items,
		ShippingAddress: "12 Nguyen Trai, Q1, HCMC",
		Phone:           "0901234567",
		Receiver:        "Mai",
		PaymentMethod:   order.MethodCOD,
	}
}

// --- Tests ---

func TestBuild_CollectsAllValidationErrors(t *testing.T) {
	b := newTestBuilder(t, newStubProducts(), regularCustomer(), nil)

	_, err := b.Build(context.Background(), Request{
		Items: []CartItem{{ProductID: "", Quantity: 0}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// Everything wrong is reported at once, not just the first problem.
	assert.Contains(t, verr.Fields, "customer_id")
	assert.Contains(t, verr.Fields, "shipping_address")
	assert.Contains(t, verr.Fields, "phone")
	assert.Contains(t, verr.Fields, "receiver")
	assert.Contains(t, verr.Fields, "payment_method")
	assert.Len(t, verr.Fields["items[0]"], 2)
}

func TestBuild_HappyPath(t *testing.T) {
	products := newStubProducts(serumProduct(10), tonerProduct(10))
	b := newTestBuilder(t, products, regularCustomer(), nil)

	built, err := b.Build(context.Background(), validRequest(
		CartItem{ProductID: "p1", Quantity: 2},
		CartItem{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	o := built.Order
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Len(t, o.Items, 2)
	assert.True(t, vnd(400_000).Equal(o.Subtotal))
	assert.True(t, decimal.Zero.Equal(o.Discount))
	assert.True(t, vnd(30_000).Equal(o.ShippingFee))
	assert.True(t, vnd(430_000).Equal(o.TotalAmount()))

	// Stock reserved at build time.
	assert.Equal(t, 8, products.stockOf("p1"))
	assert.Equal(t, 9, products.stockOf("p2"))

	// Items snapshot prices.
	assert.True(t, vnd(150_000).Equal(o.Items[0].UnitPrice))
	assert.Equal(t, "Vitamin C Serum", o.Items[0].ProductName)
}

func TestBuild_FreeShippingThreshold(t *testing.T) {
	products := newStubProducts(serumProduct(10))
	b := newTestBuilder(t, products, regularCustomer(), nil)

	built, err := b.Build(context.Background(), validRequest(
		CartItem{ProductID: "p1", Quantity: 4}, // 600,000 goods
	))
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(built.Order.ShippingFee))
}

func TestBuild_GoldTierShipsFreeDespiteSurcharges(t *testing.T) {
	gold := &customer.Customer{ID: "c1", Name: "Lan", Tier: customer.TierGold}
	products := newStubProducts(serumProduct(10))
	b := newTestBuilder(t, products, gold, nil)

	req := validRequest(CartItem{ProductID: "p1", Quantity: 1})
	req.Express = true
	req.GiftWrap = true

	built, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(built.Order.ShippingFee))

	// Gold tier also gets the loyalty base discount on the line.
	assert.True(t, vnd(22_500).Equal(built.Order.Discount))
}

func TestBuild_ExpressAndGiftSurcharges(t *testing.T) {
	products := newStubProducts(serumProduct(10))
	b := newTestBuilder(t, products, regularCustomer(), nil)

	req := validRequest(CartItem{ProductID: "p1", Quantity: 1})
	req.Express = true
	req.GiftWrap = true

	built, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, vnd(60_000).Equal(built.Order.ShippingFee))
}

func TestBuild_ShippingFeeOverride(t *testing.T) {
	products := newStubProducts(serumProduct(10))
	b := newTestBuilder(t, products, regularCustomer(), nil)

	override := vnd(5_000)
	req := validRequest(CartItem{ProductID: "p1", Quantity: 1})
	req.ShippingFeeOverride = &override

	built, err := b.Build(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, override.Equal(built.Order.ShippingFee))
}

func TestBuild_SoftDeletedLineSkippedWithWarning(t *testing.T) {
	deleted := tonerProduct(10)
	deletedAt := fixedNow.Add(-time.Hour)
	deleted.DeletedAt = &deletedAt

	products := newStubProducts(serumProduct(10), deleted)
	b := newTestBuilder(t, products, regularCustomer(), nil)

	built, err := b.Build(context.Background(), validRequest(
		CartItem{ProductID: "p1", Quantity: 1},
		CartItem{ProductID: "p2", Quantity: 1},
	))
	require.NoError(t, err)

	assert.Len(t, built.Order.Items, 1)
	assert.Equal(t, "p1", built.Order.Items[0].ProductID)
	require.Len(t, built.Warnings, 1)
	assert.Contains(t, built.Warnings[0], "p2")

	// The skipped line must not touch stock.
	assert.Equal(t, 10, products.stockOf("p2"))
}

func TestBuild_ExpiredProductFailsWholeBuild(t *testing.T) {
	expired := tonerProduct(10)
	expiry := fixedNow.Add(-24 * time.Hour)
	expired.ExpiresAt = &expiry

	products := newStubProducts(serumProduct(10), expired)
	b := newTestBuilder(t, products, regularCustomer(), nil)

	_, err := b.Build(context.Background(), validRequest(
		CartItem{ProductID: "p1", Quantity: 1},
		CartItem{ProductID: "p2", Quantity: 1},
	))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["items[1]"][0], "expired")

	// Nothing reserved for the healthy line either.
	assert.Equal(t, 10, products.stockOf("p1"))
}

func TestBuild_InsufficientStockFailsBuild(t *testing.T) {
	products := newStubProducts(serumProduct(1))
	b := newTestBuilder(t, products, regularCustomer(), nil)

	_, err := b.Build(context.Background(), validRequest(
		CartItem{ProductID: "p1", Quantity: 3},
	))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields["items[0]"][0], "insufficient stock")
	assert.Equal(t, 1, products.stockOf("p1"))
}

// A lost reservation race on a later line releases stock already reserved
// for earlier lines in the same build.
func TestBuild_LostRaceRollsBackEarlierLines(t *testing.T) {
	products := newStubProducts(serumProduct(10), tonerProduct(10))
	products.failDecrement["p2"] = true

	b := newTestBuilder(t, products, regularCustomer(), nil)

	_, err := b.Build(context.Background(), validRequest(
		CartItem{ProductID: "p1", Quantity: 2},
		CartItem{ProductID: "p2", Quantity: 1},
	))

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "p2", stockErr.ProductID)

	assert.Equal(t, 10, products.stockOf("p1"), "earlier reservation must be released")
	assert.Equal(t, 10, products.stockOf("p2"))
}

// Two concurrent builds race for the last unit: exactly one wins and stock
// ends at zero.
func TestBuild_ConcurrentLastUnit(t *testing.T) {
	products := newStubProducts(serumProduct(1))
	b := newTestBuilder(t, products, regularCustomer(), nil)

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = b.Build(context.Background(), validRequest(
				CartItem{ProductID: "p1", Quantity: 1},
			))
		}()
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		failed++
		// The loser gets a stock business error either from the precheck
		// or from the reservation race, never an infrastructure error.
		var verr *ValidationError
		var stockErr *InsufficientStockError
		ok := errors.As(err, &verr) || errors.As(err, &stockErr)
		assert.True(t, ok, "unexpected error: %v", err)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, products.stockOf("p1"))
}

func TestBuild_CouponAppliedAcrossLines(t *testing.T) {
	rules := map[string]*coupon.Rule{
		"SALE10": {Code: "SALE10", Kind: coupon.KindPercentage, Value: vnd(10)},
	}
	products := newStubProducts(serumProduct(10))
	b := newTestBuilder(t, products, regularCustomer(), rules)

	req := validRequest(CartItem{ProductID: "p1", Quantity: 2})
	req.CouponCode = "SALE10"

	built, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, vnd(30_000).Equal(built.Order.Discount))
	assert.Equal(t, "SALE10", built.Order.CouponCode)
}

func TestBuild_UnknownCouponWarnsAndContinues(t *testing.T) {
	products := newStubProducts(serumProduct(10))
	b := newTestBuilder(t, products, regularCustomer(), nil)

	req := validRequest(CartItem{ProductID: "p1", Quantity: 1})
	req.CouponCode = "BOGUS"

	built, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, decimal.Zero.Equal(built.Order.Discount))
	require.NotEmpty(t, built.Warnings)
	assert.Contains(t, built.Warnings[0], "BOGUS")
}

func TestBuild_UnknownCustomer(t *testing.T) {
	b := newTestBuilder(t, newStubProducts(serumProduct(10)), nil, nil)

	_, err := b.Build(context.Background(), validRequest(
		CartItem{ProductID: "p1", Quantity: 1},
	))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer_id")
}
