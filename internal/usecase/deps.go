package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"

	"github.com/google/uuid"
)

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// コミット後の通知先
type OrderEventPublisher interface {
	Publish(ctx context.Context, ev model.OrderEvent) error
}

type OrderMetrics interface {
	OrderCreated()
	OrderFailed(reason string)
	Restored(units int64)
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type noopMetrics struct{}

func (noopMetrics) OrderCreated()      {}
func (noopMetrics) OrderFailed(string) {}
func (noopMetrics) Restored(int64)     {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.OrderEvent) error { return nil }
