//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/QuynYang/glowaura/internal/domain/coupon"
	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/order"
	"github.com/QuynYang/glowaura/internal/domain/product"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("glowaura"),
		tcpostgres.WithUsername("glowaura"),
		tcpostgres.WithPassword("glowaura"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedProduct(t *testing.T, repo *ProductRepository, id string, stock int) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Save(context.Background(), &product.Product{
		ID:               id,
		Name:             "Test " + id,
		Price:            decimal.NewFromInt(150_000),
		Stock:            stock,
		FlashSalePercent: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}))
}

func TestProductRepository_RoundTrip(t *testing.T) {
	pool := setupPool(t)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	expires := time.Now().UTC().Add(20 * 24 * time.Hour).Truncate(time.Microsecond)
	now := time.Now().UTC().Truncate(time.Microsecond)
	in := &product.Product{
		ID:               "serum-1",
		Name:             "Vitamin C Serum",
		Description:      "brightening",
		Price:            decimal.NewFromInt(450_000),
		Stock:            12,
		SkinProfile:      "dull",
		ExpiresAt:        &expires,
		FlashSalePercent: decimal.NewFromInt(20),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.Save(ctx, in))

	got, err := repo.GetByID(ctx, "serum-1")
	require.NoError(t, err)
	assert.Equal(t, in.Name, got.Name)
	assert.True(t, in.Price.Equal(got.Price))
	assert.Equal(t, 12, got.Stock)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, expires, *got.ExpiresAt, time.Millisecond)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, product.ErrNotFound)

	batch, err := repo.GetByIDs(ctx, []string{"serum-1", "missing"})
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestProductRepository_SoftDelete(t *testing.T) {
	pool := setupPool(t)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	seedProduct(t, repo, "p1", 5)
	require.NoError(t, repo.SoftDelete(ctx, "p1", time.Now().UTC()))

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	// Deleted products cannot be reserved.
	ok, err := repo.TryDecrementStock(ctx, "p1", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, repo.SoftDelete(ctx, "missing", time.Now().UTC()), product.ErrNotFound)
}

func TestTryDecrementStock_NeverOversells(t *testing.T) {
	pool := setupPool(t)
	repo := NewProductRepository(pool)
	ctx := context.Background()

	seedProduct(t, repo, "p1", 5)

	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TryDecrementStock(ctx, "p1", 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, wins)
	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)

	require.NoError(t, repo.IncrementStock(ctx, "p1", 2))
	got, err = repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestCouponRepository_ResolveAndList(t *testing.T) {
	pool := setupPool(t)
	repo := NewCouponRepository(pool)
	ctx := context.Background()

	until := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Microsecond)
	require.NoError(t, repo.Upsert(ctx, &coupon.Rule{
		Code:        "giam50k",
		Kind:        coupon.KindFixedAmount,
		Value:       decimal.NewFromInt(50_000),
		MinOrder:    decimal.NewFromInt(200_000),
		Description: "50k off 200k+",
		ValidUntil:  &until,
	}))

	// Codes are stored and matched uppercase.
	rule, err := repo.Resolve(ctx, "GIAM50K")
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, coupon.KindFixedAmount, rule.Kind)
	assert.True(t, decimal.NewFromInt(50_000).Equal(rule.Value))

	rule, err = repo.Resolve(ctx, "giam50k")
	require.NoError(t, err)
	assert.NotNil(t, rule)

	rule, err = repo.Resolve(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, rule)

	codes, err := repo.ListCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"GIAM50K"}, codes)
}

func TestOrderRepository_RoundTrip(t *testing.T) {
	pool := setupPool(t)
	orders := NewOrderRepository(pool)
	customers := NewCustomerRepository(pool)
	ctx := context.Background()

	require.NoError(t, customers.Save(ctx, &customer.Customer{
		ID: "c1", Name: "Mai", Email: "mai@example.com",
		Tier: customer.TierGold, TotalSpent: decimal.NewFromInt(12_000_000),
	}))

	now := time.Now().UTC().Truncate(time.Microsecond)
	o := order.New("c1", "ORD202506150001", now)
	require.NoError(t, o.AddItem(order.OrderItem{
		ProductID:           "p1",
		ProductName:         "Serum",
		UnitPrice:           decimal.NewFromInt(150_000),
		DiscountedUnitPrice: decimal.NewFromInt(127_500),
		Quantity:            2,
		LineTotal:           decimal.NewFromInt(255_000),
	}, now))
	o.PaymentMethod = order.MethodMomo
	o.ShippingFee = decimal.NewFromInt(30_000)

	require.NoError(t, orders.Save(ctx, o))

	got, err := orders.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ProductID)
	assert.True(t, o.TotalAmount().Equal(got.TotalAmount()))

	byNumber, err := orders.GetByOrderNumber(ctx, "ORD202506150001")
	require.NoError(t, err)
	assert.Equal(t, o.ID, byNumber.ID)

	_, err = orders.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderRepository_DuplicateNumber(t *testing.T) {
	pool := setupPool(t)
	orders := NewOrderRepository(pool)
	customers := NewCustomerRepository(pool)
	ctx := context.Background()

	require.NoError(t, customers.Save(ctx, &customer.Customer{
		ID: "c1", Name: "Mai", Email: "mai@example.com", Tier: customer.TierNone, TotalSpent: decimal.Zero,
	}))

	now := time.Now().UTC()
	first := order.New("c1", "ORD202506150042", now)
	require.NoError(t, orders.Save(ctx, first))

	second := order.New("c1", "ORD202506150042", now)
	err := orders.Save(ctx, second)
	assert.ErrorIs(t, err, order.ErrDuplicateNumber)
}

func TestOrderRepository_ListPaymentFailedBefore(t *testing.T) {
	pool := setupPool(t)
	orders := NewOrderRepository(pool)
	customers := NewCustomerRepository(pool)
	ctx := context.Background()

	require.NoError(t, customers.Save(ctx, &customer.Customer{
		ID: "c1", Name: "Mai", Email: "mai@example.com", Tier: customer.TierNone, TotalSpent: decimal.Zero,
	}))

	old := time.Now().UTC().Add(-48 * time.Hour)
	stale := order.New("c1", "ORD202506130001", old)
	require.NoError(t, stale.AddItem(order.OrderItem{
		ProductID: "p1", ProductName: "Serum",
		UnitPrice: decimal.NewFromInt(150_000), DiscountedUnitPrice: decimal.NewFromInt(150_000),
		Quantity: 1, LineTotal: decimal.NewFromInt(150_000),
	}, old))
	require.NoError(t, stale.Confirm(old))
	require.NoError(t, stale.MarkPaymentFailed(old))
	require.NoError(t, orders.Save(ctx, stale))

	fresh := order.New("c1", "ORD202506150002", time.Now().UTC())
	require.NoError(t, orders.Save(ctx, fresh))

	got, err := orders.ListPaymentFailedBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}

func TestCustomerRepository_RoundTrip(t *testing.T) {
	pool := setupPool(t)
	repo := NewCustomerRepository(pool)
	ctx := context.Background()

	in := &customer.Customer{
		ID: "c1", Name: "Mai", Email: "mai@example.com",
		Tier: customer.TierSilver, TotalSpent: decimal.NewFromInt(6_000_000),
		ProfileCompleted: true, SkinProfile: "oily",
	}
	require.NoError(t, repo.Save(ctx, in))

	got, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, customer.TierSilver, got.Tier)
	assert.True(t, in.TotalSpent.Equal(got.TotalSpent))
	assert.Equal(t, "oily", got.SkinProfile)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, customer.ErrNotFound)
}
