// Package events は注文イベントの送信先（RabbitMQ / Kafka / ログのみ）。
package events

import (
	"context"
	"log/slog"

	"storefront/internal/domain/model"
)

// LogPublisher はブローカーを使わずログに出すだけ（EVENTS_DRIVER=none）
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, ev model.OrderEvent) error {
	p.log.DebugContext(ctx, "order event",
		slog.String("event_id", ev.ID),
		slog.String("type", string(ev.Type)),
		slog.String("order_id", ev.OrderID),
		slog.String("status", string(ev.Status)),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
