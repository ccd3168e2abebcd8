// Command seed-db loads the demo catalog, customers, and campaign coupons,
// running migrations first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/QuynYang/glowaura/internal/domain/coupon"
	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/product"
	"github.com/QuynYang/glowaura/internal/postgres"
)

type productJSON struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Stock            int             `json:"stock"`
	SkinProfile      string          `json:"skin_profile"`
	ExpiresAt        *time.Time      `json:"expires_at"`
	FlashSalePercent decimal.Decimal `json:"flash_sale_percent"`
	FlashSaleEndsAt  *time.Time      `json:"flash_sale_ends_at"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCustomers(ctx, postgres.NewCustomerRepository(pool)); err != nil {
		return errors.Wrap(err, "seed customers")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	now := time.Now()
	for _, p := range products {
		if err := repo.Save(ctx, &product.Product{
			ID:               p.ID,
			Name:             p.Name,
			Description:      p.Description,
			Price:            p.Price,
			Stock:            p.Stock,
			SkinProfile:      p.SkinProfile,
			ExpiresAt:        p.ExpiresAt,
			FlashSalePercent: p.FlashSalePercent,
			FlashSaleEndsAt:  p.FlashSaleEndsAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCustomers(ctx context.Context, repo *postgres.CustomerRepository) error {
	slog.Info("seeding demo customers")

	customers := []customer.Customer{
		{
			ID:               "cust-mai",
			Name:             "Tran Thi Mai",
			Email:            "mai@example.com",
			Tier:             customer.TierGold,
			TotalSpent:       decimal.NewFromInt(12_000_000),
			ProfileCompleted: true,
			SkinProfile:      "oily",
		},
		{
			ID:         "cust-linh",
			Name:       "Nguyen Thuy Linh",
			Email:      "linh@example.com",
			Tier:       customer.TierNone,
			TotalSpent: decimal.Zero,
		},
	}

	for i := range customers {
		if err := repo.Save(ctx, &customers[i]); err != nil {
			return errors.Wrapf(err, "upsert customer %s", customers[i].ID)
		}
		slog.Info("upserted customer", slog.String("id", customers[i].ID))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding campaign coupons")

	coupons := []coupon.Rule{
		{
			Code:        "GIAM50K",
			Kind:        coupon.KindFixedAmount,
			Value:       decimal.NewFromInt(50_000),
			MinOrder:    decimal.NewFromInt(200_000),
			Description: "Giam 50k cho don tu 200k",
		},
		{
			Code:        "SALE20",
			Kind:        coupon.KindPercentage,
			Value:       decimal.NewFromInt(20),
			MaxDiscount: decimal.NewFromInt(100_000),
			Description: "Giam 20%, toi da 100k",
		},
	}

	for i := range coupons {
		if err := repo.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
		slog.Info("upserted coupon", slog.String("code", coupons[i].Code))
	}

	return nil
}
