package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MalyadriLakshmiNarasimha/herbtounge/internal/domain/entity"
)

// TaskHandler executes one claimed task. A nil return means the task reached
// a terminal state (succeeded or recorded as failed) and the delivery can be
// acknowledged; an error means the state could not be recorded and the
// message should be redelivered.
type TaskHandler interface {
	HandleTask(ctx context.Context, msg *entity.TaskMessage) error
}

// TaskConsumer claims tasks from a durable queue one at a time. Unacked
// deliveries are returned to the queue when the worker dies, giving
// at-least-once execution; handlers are idempotent to absorb that.
type TaskConsumer struct {
	channel     *amqp.Channel
	queue       string
	handler     TaskHandler
	log         *zap.Logger
	prefetchCnt int
}

func NewTaskConsumer(conn *amqp.Connection, exchange, routingKey, queue string, handler TaskHandler, log *zap.Logger) (*TaskConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	consumer := &TaskConsumer{
		channel:     ch,
		queue:       queue,
		handler:     handler,
		log:         log,
		prefetchCnt: 1,
	}

	if _, err := ch.QueueDeclare(
		queue,
		true, // durable
		false,
		false,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", queue, err)
	}

	if err := ch.Qos(consumer.prefetchCnt, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	return consumer, nil
}

// Start consumes until ctx is done or the channel closes.
func (c *TaskConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("task consumer shutting down")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("broker channel closed")
				return nil
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

func (c *TaskConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var task entity.TaskMessage
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		// Poison message; requeueing would loop forever.
		c.log.Error("failed to unmarshal task message", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}

	if err := c.handler.HandleTask(ctx, &task); err != nil {
		c.log.Error("task state not recorded, requeueing",
			zap.String("task_id", task.TaskID),
			zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
