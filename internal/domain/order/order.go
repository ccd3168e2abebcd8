package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order operations.
var (
	ErrNotFound        = errors.New("order not found")
	ErrDuplicateNumber = errors.New("order number already exists")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrEmptyReason     = errors.New("a non-empty reason is required")
)

// PaymentMethod identifies how the customer pays. Gateway wire protocols are
// external; the engine only records the selection and the transaction id.
type PaymentMethod string

const (
	MethodCOD          PaymentMethod = "cod"
	MethodMomo         PaymentMethod = "momo"
	MethodVNPay        PaymentMethod = "vnpay"
	MethodZaloPay      PaymentMethod = "zalopay"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// OrderItem is an immutable snapshot of a product line taken at order
// creation. Later product price changes never touch historical orders.
type OrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	// UnitPrice is the catalog price per unit at creation time.
	UnitPrice decimal.Decimal `json:"unit_price"`
	// DiscountedUnitPrice is the per-unit price after the full discount chain.
	DiscountedUnitPrice decimal.Decimal `json:"discounted_unit_price"`
	Quantity            int             `json:"quantity"`
	// LineTotal is the discounted total for the line.
	LineTotal decimal.Decimal `json:"line_total"`
}

// Order is the aggregate root for a customer purchase. Its status and totals
// are mutated only through the guarded methods in machine.go; callers must
// never assign Status directly.
type Order struct {
	ID         string
	Number     string
	CustomerID string
	Status     Status
	Items      []OrderItem

	// Subtotal is the undiscounted sum of line prices. Discount aggregates
	// every discount amount across lines. The order total is always derived
	// (see TotalAmount), never stored.
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Discount    decimal.Decimal

	PaymentMethod PaymentMethod
	TransactionID string

	ShippingAddress string
	Phone           string
	Receiver        string

	CouponCode   string
	Notes        string
	GiftWrap     bool
	Express      bool
	CancelReason string

	EstimatedDelivery *time.Time
	ConfirmedAt       *time.Time
	CancelledAt       *time.Time
	DeliveredAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// New creates an empty pending order for the customer.
func New(customerID string, number string, now time.Time) *Order {
	return &Order{
		ID:          uuid.New().String(),
		Number:      number,
		CustomerID:  customerID,
		Status:      StatusPending,
		Subtotal:    decimal.Zero,
		ShippingFee: decimal.Zero,
		Discount:    decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TotalAmount derives the amount payable: subtotal + shipping − discount.
func (o *Order) TotalAmount() decimal.Decimal {
	return o.Subtotal.Add(o.ShippingFee).Sub(o.Discount)
}

// AddItem appends a line snapshot. Legal only while the order is pending.
func (o *Order) AddItem(item OrderItem, now time.Time) error {
	if o.Status != StatusPending {
		return o.illegal("add item")
	}
	o.Items = append(o.Items, item)
	o.Subtotal = o.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	o.Discount = o.Discount.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.LineTotal))
	o.UpdatedAt = now
	return nil
}

// RemoveItem drops the line for the given product. Legal only while pending.
func (o *Order) RemoveItem(productID string, now time.Time) error {
	if o.Status != StatusPending {
		return o.illegal("remove item")
	}
	for i, item := range o.Items {
		if item.ProductID != productID {
			continue
		}
		lineOriginal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		o.Subtotal = o.Subtotal.Sub(lineOriginal)
		o.Discount = o.Discount.Sub(lineOriginal.Sub(item.LineTotal))
		o.Items = append(o.Items[:i], o.Items[i+1:]...)
		o.UpdatedAt = now
		return nil
	}
	return errors.Wrapf(ErrNotFound, "item %s", productID)
}

// Repository defines persistence operations for orders. Save must report
// ErrDuplicateNumber when the order number collides so callers can
// regenerate and retry.
type Repository interface {
	Save(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByOrderNumber(ctx context.Context, number string) (*Order, error)
	// ListPaymentFailedBefore returns payment-failed orders whose last
	// update is older than the cutoff, for reservation release sweeps.
	ListPaymentFailedBefore(ctx context.Context, cutoff time.Time) ([]*Order, error)
}
