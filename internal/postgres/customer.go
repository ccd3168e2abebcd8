package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuynYang/glowaura/internal/domain/customer"
)

const (
	getCustomerByIDSQL = `SELECT id, name, email, tier, total_spent, profile_completed, skin_profile
		FROM customers WHERE id = $1`

	saveCustomerSQL = `INSERT INTO customers (id, name, email, tier, total_spent, profile_completed, skin_profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			tier = EXCLUDED.tier,
			total_spent = EXCLUDED.total_spent,
			profile_completed = EXCLUDED.profile_completed,
			skin_profile = EXCLUDED.skin_profile`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID returns a single customer by their identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %q: %w", id, err)
	}
	return &c, nil
}

// Save upserts the customer.
func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	_, err := r.pool.Exec(ctx, saveCustomerSQL,
		c.ID, c.Name, c.Email, string(c.Tier), c.TotalSpent, c.ProfileCompleted, c.SkinProfile,
	)
	if err != nil {
		return fmt.Errorf("saving customer %q: %w", c.ID, err)
	}
	return nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var (
		c    customer.Customer
		tier string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &tier, &c.TotalSpent, &c.ProfileCompleted, &c.SkinProfile)
	c.Tier = customer.Tier(tier)
	return c, err
}
