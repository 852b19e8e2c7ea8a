package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/pkg/apperrors"
)

// TaskPublisher submits task messages to the durable exchange.
type TaskPublisher struct {
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func NewTaskPublisher(conn *amqp.Connection, exchange, routingKey string) (*TaskPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &TaskPublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// Publish sends a persistent JSON message. Broker failures surface as the
// distinct retryable ErrBrokerUnavailable.
func (p *TaskPublisher) Publish(ctx context.Context, body json.RawMessage) error {
	err := p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: publish to %s: %v", apperrors.ErrBrokerUnavailable, p.exchange, err)
	}
	return nil
}
