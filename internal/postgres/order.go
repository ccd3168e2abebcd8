package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QuynYang/glowaura/internal/domain/order"
)

const (
	orderColumns = `id, number, customer_id, status, items,
		subtotal, shipping_fee, discount,
		payment_method, transaction_id,
		shipping_address, phone, receiver,
		coupon_code, notes, gift_wrap, express, cancel_reason,
		estimated_delivery, confirmed_at, cancelled_at, delivered_at,
		created_at, updated_at, deleted_at`

	saveOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			status = EXCLUDED.status,
			items = EXCLUDED.items,
			subtotal = EXCLUDED.subtotal,
			shipping_fee = EXCLUDED.shipping_fee,
			discount = EXCLUDED.discount,
			payment_method = EXCLUDED.payment_method,
			transaction_id = EXCLUDED.transaction_id,
			shipping_address = EXCLUDED.shipping_address,
			phone = EXCLUDED.phone,
			receiver = EXCLUDED.receiver,
			coupon_code = EXCLUDED.coupon_code,
			notes = EXCLUDED.notes,
			gift_wrap = EXCLUDED.gift_wrap,
			express = EXCLUDED.express,
			cancel_reason = EXCLUDED.cancel_reason,
			estimated_delivery = EXCLUDED.estimated_delivery,
			confirmed_at = EXCLUDED.confirmed_at,
			cancelled_at = EXCLUDED.cancelled_at,
			delivered_at = EXCLUDED.delivered_at,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`

	listPaymentFailedSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status = $1 AND updated_at < $2 ORDER BY updated_at`
)

const uniqueViolationCode = "23505"

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Item
// snapshots are stored as a JSONB document on the order row.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Save upserts the order. A unique violation on the order number is mapped to
// order.ErrDuplicateNumber so the caller can regenerate and retry.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, saveOrderSQL,
		o.ID, o.Number, o.CustomerID, string(o.Status), itemsJSON,
		o.Subtotal, o.ShippingFee, o.Discount,
		string(o.PaymentMethod), o.TransactionID,
		o.ShippingAddress, o.Phone, o.Receiver,
		o.CouponCode, o.Notes, o.GiftWrap, o.Express, o.CancelReason,
		o.EstimatedDelivery, o.ConfirmedAt, o.CancelledAt, o.DeliveredAt,
		o.CreatedAt, o.UpdatedAt, o.DeletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByOrderNumber returns a single order by its public number.
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByNumberSQL, number)
}

// ListPaymentFailedBefore returns payment-failed orders last touched before
// the cutoff, oldest first.
func (r *OrderRepository) ListPaymentFailedBefore(ctx context.Context, cutoff time.Time) ([]*order.Order, error) {
	rows, err := r.pool.Query(ctx, listPaymentFailedSQL, string(order.StatusPaymentFailed), cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing payment-failed orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrderPtr)
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrderPtr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return o, nil
}

func scanOrderPtr(row pgx.CollectableRow) (*order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentMethod string
		itemsJSON     []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &status, &itemsJSON,
		&o.Subtotal, &o.ShippingFee, &o.Discount,
		&paymentMethod, &o.TransactionID,
		&o.ShippingAddress, &o.Phone, &o.Receiver,
		&o.CouponCode, &o.Notes, &o.GiftWrap, &o.Express, &o.CancelReason,
		&o.EstimatedDelivery, &o.ConfirmedAt, &o.CancelledAt, &o.DeliveredAt,
		&o.CreatedAt, &o.UpdatedAt, &o.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	return &o, nil
}
