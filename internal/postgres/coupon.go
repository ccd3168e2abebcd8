package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuynYang/glowaura/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, kind, value, description, min_order, max_discount, valid_from, valid_until
		FROM coupons WHERE code = $1`

	listCouponCodesSQL = `SELECT code FROM coupons ORDER BY code`

	upsertCouponSQL = `INSERT INTO coupons (code, kind, value, description, min_order, max_discount, valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			kind = EXCLUDED.kind,
			value = EXCLUDED.value,
			description = EXCLUDED.description,
			min_order = EXCLUDED.min_order,
			max_discount = EXCLUDED.max_discount,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until`
)

var _ coupon.Store = (*CouponRepository)(nil)

// CouponRepository implements coupon.Store backed by PostgreSQL. Codes are
// stored uppercase.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Resolve looks up a coupon by code. Unknown codes resolve to (nil, nil).
func (r *CouponRepository) Resolve(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, strings.ToUpper(code))
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &rule, nil
}

// ListCodes returns every stored coupon code.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var code string
		err := row.Scan(&code)
		return code, err
	})
}

// Upsert inserts or replaces the rule for its code.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		strings.ToUpper(rule.Code), string(rule.Kind), rule.Value, rule.Description,
		rule.MinOrder, rule.MaxDiscount, rule.ValidFrom, rule.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule coupon.Rule
		kind string
	)
	err := row.Scan(
		&rule.Code, &kind, &rule.Value, &rule.Description,
		&rule.MinOrder, &rule.MaxDiscount, &rule.ValidFrom, &rule.ValidUntil,
	)
	rule.Kind = coupon.Kind(kind)
	return rule, err
}
