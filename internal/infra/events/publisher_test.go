package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher(logging.Discard())
	assert.NoError(t, p.Publish(context.Background(), model.OrderEvent{ID: "e1", Type: model.OrderEventCreated}))
	assert.NoError(t, p.Close())
}

// ブローカーに流すJSONの形
func TestOrderEvent_WireFormat(t *testing.T) {
	ev := model.OrderEvent{
		ID:         "e1",
		Type:       model.OrderEventCancelled,
		OrderID:    "o1",
		UserID:     "u1",
		Status:     model.OrderStatusCancelled,
		PrevStatus: model.OrderStatusPaid,
		Total:      decimal.RequireFromString("59.97"),
		OccurredAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "e1",
		"type": "order.cancelled",
		"order_id": "o1",
		"user_id": "u1",
		"status": "CANCELLED",
		"prev_status": "PAID",
		"total": "59.97",
		"occurred_at": "2026-04-01T09:00:00Z"
	}`, string(b))
}
