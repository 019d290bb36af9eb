package memory

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
)

type CartRepository struct {
	b base
}

func (r *CartRepository) FindByUserID(ctx context.Context, userID string) (model.Cart, error) {
	out := model.Cart{UserID: userID, Items: []model.CartItem{}}
	_ = r.b.do(func(st *state) error {
		if c, ok := st.carts[userID]; ok {
			out = copyCart(c)
		}
		return nil
	})
	return out, nil
}

func (r *CartRepository) FindForCheckout(ctx context.Context, userID string) (model.Cart, error) {
	return r.FindByUserID(ctx, userID)
}

func (r *CartRepository) AddItem(ctx context.Context, userID string, productID string, qty int64, now time.Time) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}
	return r.b.do(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			c = model.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
		}
		c = copyCart(c)
		c.UpdatedAt = now

		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity += qty
				c.Items[i].UpdatedAt = now
				st.carts[userID] = c
				return nil
			}
		}

		c.Items = append(c.Items, model.CartItem{
			ID:        uuid.NewString(),
			CartID:    c.ID,
			ProductID: productID,
			Quantity:  qty,
			CreatedAt: now,
			UpdatedAt: now,
		})
		st.carts[userID] = c
		return nil
	})
}

func (r *CartRepository) SetItemQuantity(ctx context.Context, userID string, productID string, qty int64, now time.Time) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}
	return r.b.do(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return repo.ErrNotFound
		}
		c = copyCart(c)
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = qty
				c.Items[i].UpdatedAt = now
				c.UpdatedAt = now
				st.carts[userID] = c
				return nil
			}
		}
		return repo.ErrNotFound
	})
}

func (r *CartRepository) RemoveItem(ctx context.Context, userID string, productID string, now time.Time) error {
	return r.b.do(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return repo.ErrNotFound
		}
		kept := make([]model.CartItem, 0, len(c.Items))
		for _, it := range c.Items {
			if it.ProductID != productID {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(c.Items) {
			return repo.ErrNotFound
		}
		c.Items = kept
		c.UpdatedAt = now
		st.carts[userID] = c
		return nil
	})
}

func (r *CartRepository) Clear(ctx context.Context, userID string, now time.Time) error {
	return r.b.do(func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return nil
		}
		c.Items = []model.CartItem{}
		c.UpdatedAt = now
		st.carts[userID] = c
		return nil
	})
}
