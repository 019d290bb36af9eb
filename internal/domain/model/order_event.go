package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "order.created"
	OrderEventCancelled     OrderEventType = "order.cancelled"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

// コミット後に外部へ通知する内容
type OrderEvent struct {
	ID         string          `json:"id"`
	Type       OrderEventType  `json:"type"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Status     OrderStatus     `json:"status"`
	PrevStatus OrderStatus     `json:"prev_status,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Items      []OrderItem     `json:"items,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
