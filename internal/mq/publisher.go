// Package mq forwards domain events to a RabbitMQ topic exchange.
package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// Publisher publishes a payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RabbitPublisher publishes JSON events to a RabbitMQ exchange.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *zap.Logger
}

// NewRabbitPublisher dials url and declares a durable topic exchange.
func NewRabbitPublisher(url, exchange string, logger *zap.Logger) (*RabbitPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

// Publish serializes the payload to JSON and sends it to the exchange.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close terminates the channel and connection.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("close amqp channel", zap.Error(err))
	}
	return p.conn.Close()
}

// Forward returns an event handler that publishes every event with its type
// as routing key. Each publish is bounded by timeout.
func Forward(p Publisher, timeout time.Duration) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		if p == nil {
			return nil
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return p.Publish(ctx, string(event.Type), event)
	}
}
