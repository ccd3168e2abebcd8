package audit

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

const exchangeName = "orders.audit"

// AMQPSink publishes events to a durable topic exchange, routed by event
// kind, so downstream consumers (notifications, analytics) can bind the
// subset they care about.
type AMQPSink struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	lg      *zap.Logger
}

// NewAMQPSink connects to the broker and declares the audit exchange.
func NewAMQPSink(url string, lg *zap.Logger) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrapf(err, "declare exchange %s", exchangeName)
	}

	return &AMQPSink{conn: conn, channel: ch, lg: lg}, nil
}

// Record publishes the event. Publish failures are logged and dropped; audit
// delivery must never fail the order operation.
func (s *AMQPSink) Record(_ context.Context, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		s.lg.Error("marshal audit event", zap.Error(err))
		return
	}

	err = s.channel.Publish(
		exchangeName,
		e.Kind, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.At,
			Body:         body,
		},
	)
	if err != nil {
		s.lg.Error("publish audit event",
			zap.String("kind", e.Kind),
			zap.String("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

// Healthy reports whether the broker connection is still open.
func (s *AMQPSink) Healthy() error {
	if s.conn.IsClosed() {
		return errors.New("amqp connection closed")
	}
	return nil
}

// Close releases the channel and connection.
func (s *AMQPSink) Close() error {
	var errs []error
	if err := s.channel.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Errorf("close amqp sink: %v", errs)
	}
	return nil
}
