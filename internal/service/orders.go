// Package service hosts the order command handlers: thin orchestration over
// the checkout builder and the order aggregate. Handlers own the unit-of-work
// boundary, logging, metrics, and audit emission; pricing and transition
// rules live in the domain packages.
package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/QuynYang/glowaura/internal/audit"
	"github.com/QuynYang/glowaura/internal/checkout"
	"github.com/QuynYang/glowaura/internal/domain/customer"
	"github.com/QuynYang/glowaura/internal/domain/order"
	"github.com/QuynYang/glowaura/internal/domain/product"
)

// Order-number regeneration attempts before falling back to a
// collision-proof number.
const saveAttempts = 5

// Payment-failed orders keep their stock reservation this long before the
// sweep cancels them. Long enough for a payment retry, short enough that
// abandoned carts do not pin inventory.
const ReservationTTL = 24 * time.Hour

// Orders exposes the order use cases to the transport layer.
type Orders struct {
	orders    order.Repository
	products  product.Repository
	customers customer.Repository
	builder   *checkout.Builder
	sink      audit.Sink
	lg        *zap.Logger
	now       func() time.Time

	placed        metric.Int64Counter
	buildDuration metric.Float64Histogram
}

// NewOrders wires the order command handlers.
func NewOrders(
	orders order.Repository,
	products product.Repository,
	customers customer.Repository,
	builder *checkout.Builder,
	sink audit.Sink,
	lg *zap.Logger,
	meter metric.Meter,
) (*Orders, error) {
	placed, err := meter.Int64Counter("glowaura.orders.placed",
		metric.WithDescription("Orders successfully created"))
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	buildDuration, err := meter.Float64Histogram("glowaura.checkout.build.duration",
		metric.WithDescription("Order build duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, errors.Wrap(err, "create build histogram")
	}

	return &Orders{
		orders:        orders,
		products:      products,
		customers:     customers,
		builder:       builder,
		sink:          sink,
		lg:            lg,
		now:           time.Now,
		placed:        placed,
		buildDuration: buildDuration,
	}, nil
}

// Create builds, prices, and persists a new pending order. Order-number
// collisions are retried by regenerating the number; the build is rolled
// back (stock released) if the order cannot be persisted at all.
func (s *Orders) Create(ctx context.Context, actor string, req checkout.Request) (*checkout.Built, error) {
	start := s.now()

	built, err := s.builder.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	o := built.Order

	if err := s.saveNew(ctx, o); err != nil {
		s.releaseItems(ctx, o)
		return nil, err
	}

	s.buildDuration.Record(ctx, s.now().Sub(start).Seconds())
	s.placed.Add(ctx, 1)

	s.lg.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("customer_id", o.CustomerID),
		zap.String("total", o.TotalAmount().String()),
	)
	s.record(ctx, o.ID, audit.KindOrderCreated, actor, "order "+o.Number)

	return built, nil
}

// saveNew persists the order, regenerating the number on collision.
func (s *Orders) saveNew(ctx context.Context, o *order.Order) error {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		err := s.orders.Save(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, order.ErrDuplicateNumber) {
			return errors.Wrap(err, "save order")
		}
		o.Number = order.GenerateNumber(s.now())
	}

	o.Number = order.FallbackNumber(s.now())
	if err := s.orders.Save(ctx, o); err != nil {
		return errors.Wrap(err, "save order with fallback number")
	}
	return nil
}

// Confirm moves a pending order to confirmed.
func (s *Orders) Confirm(ctx context.Context, orderID, actor string) (*order.Order, error) {
	return s.transition(ctx, orderID, actor, audit.KindOrderConfirmed, func(o *order.Order) error {
		return o.Confirm(s.now())
	})
}

// Pay records a successful payment with the gateway transaction id.
func (s *Orders) Pay(ctx context.Context, orderID, transactionID, actor string) (*order.Order, error) {
	return s.transition(ctx, orderID, actor, audit.KindOrderPaid, func(o *order.Order) error {
		return o.MarkAsPaid(transactionID, s.now())
	})
}

// FailPayment records a failed payment attempt. Stock stays reserved so the
// customer can retry; the reservation sweep reclaims it eventually.
func (s *Orders) FailPayment(ctx context.Context, orderID, actor string) (*order.Order, error) {
	return s.transition(ctx, orderID, actor, audit.KindPaymentFailed, func(o *order.Order) error {
		return o.MarkPaymentFailed(s.now())
	})
}

// StartProcessing moves a paid order into fulfilment.
func (s *Orders) StartProcessing(ctx context.Context, orderID, actor string) (*order.Order, error) {
	return s.transition(ctx, orderID, actor, audit.KindOrderProcessing, func(o *order.Order) error {
		return o.StartProcessing(s.now())
	})
}

// StartShipping hands the order to the carrier.
func (s *Orders) StartShipping(ctx context.Context, orderID, actor string) (*order.Order, error) {
	return s.transition(ctx, orderID, actor, audit.KindOrderShipping, func(o *order.Order) error {
		return o.StartShipping(s.now())
	})
}

// MarkDelivered records carrier delivery.
func (s *Orders) MarkDelivered(ctx context.Context, orderID, actor string) (*order.Order, error) {
	return s.transition(ctx, orderID, actor, audit.KindOrderDelivered, func(o *order.Order) error {
		return o.MarkAsDelivered(s.now())
	})
}

// Complete closes out a delivered order and accrues the customer's loyalty
// spend, which may promote their tier.
func (s *Orders) Complete(ctx context.Context, orderID, actor string) (*order.Order, error) {
	o, err := s.transition(ctx, orderID, actor, audit.KindOrderCompleted, func(o *order.Order) error {
		return o.Complete(s.now())
	})
	if err != nil {
		return nil, err
	}

	cust, err := s.customers.GetByID(ctx, o.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "load customer for loyalty accrual")
	}
	before := cust.Tier
	cust.AddSpend(o.TotalAmount())
	if err := s.customers.Save(ctx, cust); err != nil {
		return nil, errors.Wrap(err, "save customer loyalty accrual")
	}
	if cust.Tier != before {
		s.lg.Info("customer tier promoted",
			zap.String("customer_id", cust.ID),
			zap.String("from", string(before)),
			zap.String("to", string(cust.Tier)),
		)
	}
	return o, nil
}

// Cancel aborts a never-paid order and releases exactly the stock it
// reserved at build time.
func (s *Orders) Cancel(ctx context.Context, orderID, reason, actor string) (*order.Order, error) {
	o, err := s.transition(ctx, orderID, actor, audit.KindOrderCancelled, func(o *order.Order) error {
		return o.Cancel(reason, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.releaseItems(ctx, o)
	return o, nil
}

// Refund reverses a paid order. Goods are already in fulfilment, so stock
// is deliberately not restored.
func (s *Orders) Refund(ctx context.Context, orderID, reason, actor string) (*order.Order, error) {
	return s.transition(ctx, orderID, actor, audit.KindOrderRefunded, func(o *order.Order) error {
		return o.Refund(reason, s.now())
	})
}

// GetByID loads one order.
func (s *Orders) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// GetByNumber loads one order by its public number.
func (s *Orders) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return s.orders.GetByOrderNumber(ctx, number)
}

// ReleaseStaleReservations cancels payment-failed orders older than the TTL,
// returning their stock. Run periodically.
func (s *Orders) ReleaseStaleReservations(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-ReservationTTL)
	stale, err := s.orders.ListPaymentFailedBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "list stale reservations")
	}

	released := 0
	for _, o := range stale {
		if err := o.Cancel("payment not completed, reservation expired", s.now()); err != nil {
			s.lg.Warn("skip stale order", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if err := s.orders.Save(ctx, o); err != nil {
			s.lg.Error("save stale cancellation", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		s.releaseItems(ctx, o)
		s.record(ctx, o.ID, audit.KindOrderCancelled, "system", "reservation expired")
		released++
	}
	return released, nil
}

// transition loads the order, applies one guarded state-machine step, and
// persists the result. Domain rejections pass through untranslated.
func (s *Orders) transition(ctx context.Context, orderID, actor, kind string, step func(*order.Order) error) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := step(o); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}

	s.lg.Info("order transition",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.String("actor", actor),
	)
	s.record(ctx, o.ID, kind, actor, "")
	return o, nil
}

// releaseItems restores the stock quantities the order reserved.
func (s *Orders) releaseItems(ctx context.Context, o *order.Order) {
	for _, item := range o.Items {
		if err := s.products.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.lg.Error("failed to restore stock",
				zap.String("order_id", o.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (s *Orders) record(ctx context.Context, orderID, kind, actor, detail string) {
	s.sink.Record(ctx, audit.Event{
		OrderID: orderID,
		Kind:    kind,
		Actor:   actor,
		Detail:  detail,
		At:      s.now(),
	})
}
