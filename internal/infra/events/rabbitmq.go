package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"storefront/internal/domain/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

const dialAttempts = 10

type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *slog.Logger
}

func NewRabbitMQPublisher(ctx context.Context, url string, queueName string, log *slog.Logger) (*RabbitMQPublisher, error) {
	var conn *amqp.Connection
	var err error

	// 起動直後はブローカーがまだ上がっていないことがある
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("rabbitmq dial failed, retrying", slog.Int("attempt", i+1), slog.Any("err", err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &RabbitMQPublisher{conn: conn, channel: ch, queue: queueName, log: log}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, ev model.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			MessageId:    ev.ID,
			Type:         string(ev.Type),
			ContentType:  "application/json",
			Timestamp:    ev.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}

	p.log.DebugContext(ctx, "event published", slog.String("event_id", ev.ID), slog.String("queue", p.queue))
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}
