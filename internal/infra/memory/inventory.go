package memory

import (
	"context"
	"sort"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type InventoryRepository struct {
	b base
}

func (r *InventoryRepository) SetStock(ctx context.Context, productID string, newStock int64) error {
	return r.b.do(func(st *state) error {
		p, ok := st.products[productID]
		if !ok || p.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		p.Stock = newStock
		st.products[productID] = p
		return nil
	})
}

// 判定と減算を同じロック内で行う
func (r *InventoryRepository) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	var ok bool
	err := r.b.do(func(st *state) error {
		p, found := st.products[productID]
		if !found || p.DeletedAt.Valid || p.Stock < qty {
			return nil
		}
		p.Stock -= qty
		st.products[productID] = p
		ok = true
		return nil
	})
	return ok, err
}

func (r *InventoryRepository) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	return r.b.do(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return repo.ErrNotFound
		}
		p.Stock += qty
		st.products[productID] = p
		return nil
	})
}

func (r *InventoryRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.b.do(func(st *state) error {
		st.adjustments = append(st.adjustments, adj)
		return nil
	})
}

// 新しい順
func (r *InventoryRepository) ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := []model.InventoryAdjustment{}
	_ = r.b.do(func(st *state) error {
		for i := len(st.adjustments) - 1; i >= 0; i-- {
			if a := st.adjustments[i]; a.ProductID == productID {
				out = append(out, a)
			}
		}
		return nil
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
