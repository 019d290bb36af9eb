// Package pricing はカート明細の金額計算（Cart Aggregator）。
// 副作用なし。渡された時点の商品情報だけで計算する。
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 商品を1件引く関数。見つからなければ repository.ErrNotFound を返すこと。
type ProductLookup func(ctx context.Context, productID string) (model.Product, error)

type PricedLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Quote struct {
	Lines []PricedLine    `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// 明細ごとに 単価×数量 を出して合計する。入力順を保つ。
func Aggregate(ctx context.Context, items []model.CartLineItem, lookup ProductLookup) (Quote, error) {
	q := Quote{Lines: make([]PricedLine, 0, len(items)), Total: decimal.Zero}

	for _, it := range items {
		if it.Quantity <= 0 {
			return Quote{}, fmt.Errorf("%w: product %s quantity %d", model.ErrInvalidQuantity, it.ProductID, it.Quantity)
		}
		if strings.TrimSpace(it.ProductID) == "" {
			return Quote{}, fmt.Errorf("%w: empty product id", model.ErrProductNotFound)
		}

		p, err := lookup(ctx, it.ProductID)
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, model.ErrProductNotFound) {
			return Quote{}, fmt.Errorf("%w: %s", model.ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return Quote{}, fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
		}
		if !p.Available() {
			return Quote{}, fmt.Errorf("%w: %s", model.ErrProductNotFound, it.ProductID)
		}

		sub := p.Price.Mul(decimal.NewFromInt(it.Quantity))
		q.Lines = append(q.Lines, PricedLine{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			Subtotal:  sub,
		})
		q.Total = q.Total.Add(sub)
	}

	return q, nil
}

// 同じ商品の行をまとめる（最初に出た順）。
// 在庫チェックを合計数量で行うために使う。
func MergeLines(items []model.CartLineItem) []model.CartLineItem {
	idx := make(map[string]int, len(items))
	out := make([]model.CartLineItem, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity = addQuantity(out[i].Quantity, it.Quantity)
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

// 正の数量どうしの加算。あふれたら MaxInt64 に張り付く（どの在庫よりも多い扱い）
func addQuantity(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// 取得済みの商品から引く ProductLookup
func FromSnapshot(products map[string]model.Product) ProductLookup {
	return func(_ context.Context, productID string) (model.Product, error) {
		p, ok := products[productID]
		if !ok {
			return model.Product{}, repository.ErrNotFound
		}
		return p, nil
	}
}
