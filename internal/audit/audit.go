// Package audit records order activity events. Sinks are append-only and
// fire-and-forget: recording never fails the business operation that emitted
// the event.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event kinds emitted by the order commands.
const (
	KindOrderCreated    = "order.created"
	KindOrderConfirmed  = "order.confirmed"
	KindOrderPaid       = "order.paid"
	KindPaymentFailed   = "order.payment_failed"
	KindOrderProcessing = "order.processing"
	KindOrderShipping   = "order.shipping"
	KindOrderDelivered  = "order.delivered"
	KindOrderCompleted  = "order.completed"
	KindOrderCancelled  = "order.cancelled"
	KindOrderRefunded   = "order.refunded"
)

// Event is one immutable order activity record, emitted after a successful
// transaction commit.
type Event struct {
	OrderID string    `json:"order_id"`
	Kind    string    `json:"kind"`
	Actor   string    `json:"actor"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Sink receives activity events. Implementations must not block the caller
// beyond a local write or publish, and must swallow their own errors.
type Sink interface {
	Record(ctx context.Context, e Event)
}

// ZapSink writes events to the application log. It is the default sink when
// no message broker is configured.
type ZapSink struct {
	lg *zap.Logger
}

// NewZapSink creates a log-backed sink.
func NewZapSink(lg *zap.Logger) *ZapSink {
	return &ZapSink{lg: lg}
}

// Record logs the event at info level.
func (s *ZapSink) Record(_ context.Context, e Event) {
	s.lg.Info("order activity",
		zap.String("order_id", e.OrderID),
		zap.String("kind", e.Kind),
		zap.String("actor", e.Actor),
		zap.String("detail", e.Detail),
		zap.Time("at", e.At),
	)
}
