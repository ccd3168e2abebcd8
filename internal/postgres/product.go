package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuynYang/glowaura/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, stock, skin_profile,
		expires_at, flash_sale_percent, flash_sale_ends_at,
		created_at, updated_at, deleted_at`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products WHERE deleted_at IS NULL ORDER BY id`

	saveProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			skin_profile = EXCLUDED.skin_profile,
			expires_at = EXCLUDED.expires_at,
			flash_sale_percent = EXCLUDED.flash_sale_percent,
			flash_sale_ends_at = EXCLUDED.flash_sale_ends_at,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`

	softDeleteProductSQL = `UPDATE products SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	// The stock guard lives in the WHERE clause: the decrement applies in
	// full or not at all, regardless of concurrent buyers.
	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2`

	incrementStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier, soft-deleted included.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs. Missing IDs are
// simply absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// List returns all sellable products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Save upserts the product.
func (r *ProductRepository) Save(ctx context.Context, p *product.Product) error {
	_, err := r.pool.Exec(ctx, saveProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.SkinProfile,
		p.ExpiresAt, p.FlashSalePercent, p.FlashSaleEndsAt,
		p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("saving product %q: %w", p.ID, err)
	}
	return nil
}

// SoftDelete marks the product deleted, keeping the row for historical orders.
func (r *ProductRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, softDeleteProductSQL, id, at)
	if err != nil {
		return fmt.Errorf("soft-deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// TryDecrementStock atomically reserves qty units. It reports false when the
// product is missing, deleted, or has fewer than qty units left.
func (r *ProductRepository) TryDecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return false, fmt.Errorf("decrementing stock of %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementStock returns qty units to the shelf.
func (r *ProductRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	_, err := r.pool.Exec(ctx, incrementStockSQL, id, qty)
	if err != nil {
		return fmt.Errorf("incrementing stock of %q: %w", id, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.SkinProfile,
		&p.ExpiresAt, &p.FlashSalePercent, &p.FlashSaleEndsAt,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	return p, err
}
