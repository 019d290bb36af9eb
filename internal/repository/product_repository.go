package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反（同じ冪等キーの二重登録など）
	ErrConflict = errors.New("conflict")
)

// 一覧検索
type ProductListQuery struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindByID(ctx context.Context, id string) (model.Product, error)

	// トランザクション内で最新の値を読む（SQLでは行ロック）
	FindForUpdate(ctx context.Context, id string) (model.Product, error)

	Create(ctx context.Context, p model.Product) error
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id string) error
}
