package order

import (
	"fmt"
	"time"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending       Status = "pending"
	StatusConfirmed     Status = "confirmed"
	StatusPaid          Status = "paid"
	StatusProcessing    Status = "processing"
	StatusShipping      Status = "shipping"
	StatusDelivered     Status = "delivered"
	StatusCompleted     Status = "completed"
	StatusPaymentFailed Status = "payment_failed"
	StatusCancelled     Status = "cancelled"
	StatusRefunded      Status = "refunded"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

// Delivery estimate applied when an order is confirmed.
const deliveryEstimate = 3 * 24 * time.Hour

// IllegalTransitionError is a business-rule rejection of a lifecycle action.
// The order is left unchanged.
type IllegalTransitionError struct {
	OrderID string
	From    Status
	Action  string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot %s while %s", e.OrderID, e.Action, e.From)
}

func (o *Order) illegal(action string) error {
	return &IllegalTransitionError{OrderID: o.ID, From: o.Status, Action: action}
}

// Confirm moves a pending order with at least one item to confirmed and sets
// the estimated delivery date.
func (o *Order) Confirm(now time.Time) error {
	if o.Status != StatusPending {
		return o.illegal("confirm")
	}
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	o.Status = StatusConfirmed
	eta := now.Add(deliveryEstimate)
	o.EstimatedDelivery = &eta
	o.ConfirmedAt = &now
	o.UpdatedAt = now
	return nil
}

// MarkAsPaid records a successful payment. Legal while payment is
// outstanding: from confirmed, or from payment-failed on a retry.
func (o *Order) MarkAsPaid(transactionID string, now time.Time) error {
	if o.Status != StatusConfirmed && o.Status != StatusPaymentFailed {
		return o.illegal("mark as paid")
	}
	o.Status = StatusPaid
	o.TransactionID = transactionID
	o.UpdatedAt = now
	return nil
}

// MarkPaymentFailed records a failed payment attempt. The stock reservation
// is deliberately kept so the customer can retry; release is handled by
// explicit cancellation or the stale-reservation sweep.
func (o *Order) MarkPaymentFailed(now time.Time) error {
	if o.Status != StatusPending && o.Status != StatusConfirmed && o.Status != StatusPaymentFailed {
		return o.illegal("mark payment failed")
	}
	o.Status = StatusPaymentFailed
	o.UpdatedAt = now
	return nil
}

// StartProcessing moves a paid order into fulfilment.
func (o *Order) StartProcessing(now time.Time) error {
	if o.Status != StatusPaid {
		return o.illegal("start processing")
	}
	o.Status = StatusProcessing
	o.UpdatedAt = now
	return nil
}

// StartShipping hands a processing order to the carrier.
func (o *Order) StartShipping(now time.Time) error {
	if o.Status != StatusProcessing {
		return o.illegal("start shipping")
	}
	o.Status = StatusShipping
	o.UpdatedAt = now
	return nil
}

// MarkAsDelivered records carrier delivery.
func (o *Order) MarkAsDelivered(now time.Time) error {
	if o.Status != StatusShipping {
		return o.illegal("mark as delivered")
	}
	o.Status = StatusDelivered
	o.DeliveredAt = &now
	o.UpdatedAt = now
	return nil
}

// Complete closes out a delivered order. Loyalty spend accumulation happens
// at this transition, owned by the command layer.
func (o *Order) Complete(now time.Time) error {
	if o.Status != StatusDelivered {
		return o.illegal("complete")
	}
	o.Status = StatusCompleted
	o.UpdatedAt = now
	return nil
}

// Cancel aborts an order that has not been paid. A paid order must be
// refunded instead; cancellation is illegal from paid onwards.
func (o *Order) Cancel(reason string, now time.Time) error {
	if reason == "" {
		return ErrEmptyReason
	}
	if o.Status != StatusPending && o.Status != StatusConfirmed && o.Status != StatusPaymentFailed {
		return o.illegal("cancel")
	}
	o.Status = StatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	return nil
}

// Refund reverses a paid order that has not shipped yet.
func (o *Order) Refund(reason string, now time.Time) error {
	if reason == "" {
		return ErrEmptyReason
	}
	if o.Status != StatusPaid && o.Status != StatusProcessing {
		return o.illegal("refund")
	}
	o.Status = StatusRefunded
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	return nil
}
