package memory

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type OrderRepository struct {
	b base
}

func (r *OrderRepository) Create(ctx context.Context, order model.Order) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return repo.ErrConflict
		}
		// (user_id, idempotency_key) は一意
		if order.IdempotencyKey != nil {
			for _, o := range st.orders {
				if o.UserID == order.UserID && o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
					return repo.ErrConflict
				}
			}
		}

		o := copyOrder(order)
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
			o.Items[i].Position = i
		}
		st.orders[o.ID] = o
		st.orderIDs = append(st.orderIDs, o.ID)
		return nil
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var out model.Order
	err := r.b.do(func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		out = copyOrder(o)
		return nil
	})
	return out, err
}

// ストア全体が直列なのでロックは要らない
func (r *OrderRepository) FindForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	matched := r.collect(func(o model.Order) bool { return o.UserID == userID })
	return paginate(matched, page, limit), int64(len(matched)), nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus, updatedAt time.Time) error {
	return r.b.do(func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		o.Status = status
		o.UpdatedAt = updatedAt
		st.orders[orderID] = o
		return nil
	})
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID string, key string) (model.Order, bool, error) {
	var out model.Order
	var found bool
	_ = r.b.do(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
				out = copyOrder(o)
				found = true
				return nil
			}
		}
		return nil
	})
	return out, found, nil
}

func (r *OrderRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	matched := r.collect(func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.UserID != "" && o.UserID != f.UserID {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	})
	return paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

// 新しい順
func (r *OrderRepository) collect(match func(o model.Order) bool) []model.Order {
	out := []model.Order{}
	_ = r.b.do(func(st *state) error {
		for i := len(st.orderIDs) - 1; i >= 0; i-- {
			if o := st.orders[st.orderIDs[i]]; match(o) {
				out = append(out, copyOrder(o))
			}
		}
		return nil
	})
	return out
}
