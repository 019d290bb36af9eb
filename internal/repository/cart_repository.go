package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// カートは userID で引く（1ユーザー1カート）
type CartRepository interface {
	// 無ければ空のカートを返す（IDは空）
	FindByUserID(ctx context.Context, userID string) (model.Cart, error)
	// 注文確定用。Clear までカートへの追加を止める
	FindForCheckout(ctx context.Context, userID string) (model.Cart, error)

	// 同一商品は数量加算。カートが無ければ作る。
	AddItem(ctx context.Context, userID string, productID string, qty int64, now time.Time) error
	SetItemQuantity(ctx context.Context, userID string, productID string, qty int64, now time.Time) error
	RemoveItem(ctx context.Context, userID string, productID string, now time.Time) error
	Clear(ctx context.Context, userID string, now time.Time) error
}
