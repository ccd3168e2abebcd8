package order

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newPendingOrder(t *testing.T) *Order {
	t.Helper()
	o := New("cust-1", GenerateNumber(testNow), testNow)
	require.NoError(t, o.AddItem(OrderItem{
		ProductID:           "p1",
		ProductName:         "Niacinamide Toner",
		UnitPrice:           decimal.NewFromInt(100_000),
		DiscountedUnitPrice: decimal.NewFromInt(85_000),
		Quantity:            2,
		LineTotal:           decimal.NewFromInt(170_000),
	}, testNow))
	return o
}

// orderIn drives a fresh order to the wanted state through legal transitions.
func orderIn(t *testing.T, status Status) *Order {
	t.Helper()
	o := newPendingOrder(t)

	steps := map[Status]func() error{
		StatusConfirmed:  func() error { return o.Confirm(testNow) },
		StatusPaid:       func() error { return o.MarkAsPaid("txn-1", testNow) },
		StatusProcessing: func() error { return o.StartProcessing(testNow) },
		StatusShipping:   func() error { return o.StartShipping(testNow) },
		StatusDelivered:  func() error { return o.MarkAsDelivered(testNow) },
		StatusCompleted:  func() error { return o.Complete(testNow) },
	}
	path := []Status{
		StatusConfirmed, StatusPaid, StatusProcessing,
		StatusShipping, StatusDelivered, StatusCompleted,
	}

	switch status {
	case StatusPending:
		return o
	case StatusPaymentFailed:
		require.NoError(t, o.Confirm(testNow))
		require.NoError(t, o.MarkPaymentFailed(testNow))
		return o
	case StatusCancelled:
		require.NoError(t, o.Cancel("changed my mind", testNow))
		return o
	case StatusRefunded:
		require.NoError(t, o.Confirm(testNow))
		require.NoError(t, o.MarkAsPaid("txn-1", testNow))
		require.NoError(t, o.Refund("damaged on arrival", testNow))
		return o
	}

	for _, next := range path {
		require.NoError(t, steps[next]())
		if o.Status == status {
			return o
		}
	}
	t.Fatalf("cannot reach status %s", status)
	return nil
}

func TestHappyPathLifecycle(t *testing.T) {
	o := newPendingOrder(t)

	require.NoError(t, o.Confirm(testNow))
	assert.Equal(t, StatusConfirmed, o.Status)
	require.NotNil(t, o.EstimatedDelivery)
	assert.Equal(t, testNow.Add(3*24*time.Hour), *o.EstimatedDelivery)
	require.NotNil(t, o.ConfirmedAt)

	require.NoError(t, o.MarkAsPaid("txn-42", testNow))
	assert.Equal(t, "txn-42", o.TransactionID)

	require.NoError(t, o.StartProcessing(testNow))
	require.NoError(t, o.StartShipping(testNow))
	require.NoError(t, o.MarkAsDelivered(testNow))
	require.NotNil(t, o.DeliveredAt)

	require.NoError(t, o.Complete(testNow))
	assert.Equal(t, StatusCompleted, o.Status)
	assert.True(t, o.Status.Terminal())
}

func TestPaymentRetryAfterFailure(t *testing.T) {
	o := orderIn(t, StatusPaymentFailed)

	require.NoError(t, o.MarkAsPaid("txn-retry", testNow))
	assert.Equal(t, StatusPaid, o.Status)
}

// Every (state, action) pair not listed as legal must be rejected with an
// IllegalTransitionError and leave status and totals untouched.
func TestIllegalTransitionsLeaveOrderUnchanged(t *testing.T) {
	allStatuses := []Status{
		StatusPending, StatusConfirmed, StatusPaid, StatusProcessing,
		StatusShipping, StatusDelivered, StatusCompleted,
		StatusPaymentFailed, StatusCancelled, StatusRefunded,
	}

	actions := map[string]struct {
		invoke    func(o *Order) error
		legalFrom []Status
	}{
		"confirm": {
			invoke:    func(o *Order) error { return o.Confirm(testNow) },
			legalFrom: []Status{StatusPending},
		},
		"mark as paid": {
			invoke:    func(o *Order) error { return o.MarkAsPaid("txn", testNow) },
			legalFrom: []Status{StatusConfirmed, StatusPaymentFailed},
		},
		"mark payment failed": {
			invoke:    func(o *Order) error { return o.MarkPaymentFailed(testNow) },
			legalFrom: []Status{StatusPending, StatusConfirmed, StatusPaymentFailed},
		},
		"start processing": {
			invoke:    func(o *Order) error { return o.StartProcessing(testNow) },
			legalFrom: []Status{StatusPaid},
		},
		"start shipping": {
			invoke:    func(o *Order) error { return o.StartShipping(testNow) },
			legalFrom: []Status{StatusProcessing},
		},
		"mark as delivered": {
			invoke:    func(o *Order) error { return o.MarkAsDelivered(testNow) },
			legalFrom: []Status{StatusShipping},
		},
		"complete": {
			invoke:    func(o *Order) error { return o.Complete(testNow) },
			legalFrom: []Status{StatusDelivered},
		},
		"cancel": {
			invoke:    func(o *Order) error { return o.Cancel("reason", testNow) },
			legalFrom: []Status{StatusPending, StatusConfirmed, StatusPaymentFailed},
		},
		"refund": {
			invoke:    func(o *Order) error { return o.Refund("reason", testNow) },
			legalFrom: []Status{StatusPaid, StatusProcessing},
		},
		"add item": {
			invoke: func(o *Order) error {
				return o.AddItem(OrderItem{ProductID: "px", UnitPrice: decimal.NewFromInt(1), Quantity: 1, LineTotal: decimal.NewFromInt(1)}, testNow)
			},
			legalFrom: []Status{StatusPending},
		},
		"remove item": {
			invoke:    func(o *Order) error { return o.RemoveItem("p1", testNow) },
			legalFrom: []Status{StatusPending},
		},
	}

	legal := func(action string, s Status) bool {
		for _, l := range actions[action].legalFrom {
			if l == s {
				return true
			}
		}
		return false
	}

	for name, action := range actions {
		for _, from := range allStatuses {
			if legal(name, from) {
				continue
			}
			t.Run(name+" from "+string(from), func(t *testing.T) {
				o := orderIn(t, from)
				totalBefore := o.TotalAmount()

				err := action.invoke(o)

				require.Error(t, err)
				var itErr *IllegalTransitionError
				require.ErrorAs(t, err, &itErr)
				assert.Equal(t, from, itErr.From)
				assert.True(t, strings.Contains(itErr.Error(), string(from)))

				assert.Equal(t, from, o.Status, "status must be unchanged")
				assert.True(t, totalBefore.Equal(o.TotalAmount()), "totals must be unchanged")
			})
		}
	}
}

// A paid order cannot be cancelled; it must go through refund.
func TestCancelPaidOrderIsIllegal(t *testing.T) {
	o := orderIn(t, StatusPaid)

	err := o.Cancel("too slow", testNow)

	var itErr *IllegalTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusPaid, o.Status)

	require.NoError(t, o.Refund("too slow", testNow))
	assert.Equal(t, StatusRefunded, o.Status)
	require.NotNil(t, o.CancelledAt)
}

func TestConfirmInShippingRejected(t *testing.T) {
	o := orderIn(t, StatusShipping)

	err := o.Confirm(testNow)

	var itErr *IllegalTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusShipping, o.Status)
}

func TestConfirmRequiresItems(t *testing.T) {
	o := New("cust-1", GenerateNumber(testNow), testNow)
	require.ErrorIs(t, o.Confirm(testNow), ErrEmptyOrder)
	assert.Equal(t, StatusPending, o.Status)
}

func TestCancelRequiresReason(t *testing.T) {
	o := newPendingOrder(t)
	require.ErrorIs(t, o.Cancel("", testNow), ErrEmptyReason)
	assert.Equal(t, StatusPending, o.Status)
}

func TestTotalAmountIsDerived(t *testing.T) {
	o := newPendingOrder(t)
	o.ShippingFee = decimal.NewFromInt(30_000)

	// subtotal 200,000 − discount 30,000 + shipping 30,000
	assert.True(t, decimal.NewFromInt(200_000).Equal(o.Subtotal))
	assert.True(t, decimal.NewFromInt(30_000).Equal(o.Discount))
	assert.True(t, decimal.NewFromInt(200_000).Equal(o.TotalAmount()))

	require.NoError(t, o.RemoveItem("p1", testNow))
	assert.True(t, decimal.Zero.Equal(o.Subtotal))
	assert.True(t, decimal.Zero.Equal(o.TotalAmount()))
}

func TestGenerateNumberShape(t *testing.T) {
	n := GenerateNumber(testNow)
	assert.True(t, strings.HasPrefix(n, "ORD20250615"))
	assert.Len(t, n, len("ORD20250615")+4)

	fb := FallbackNumber(testNow)
	assert.True(t, strings.HasPrefix(fb, "ORD20250615-"))
}
