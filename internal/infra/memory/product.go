package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type ProductRepository struct {
	b base
}

func (r *ProductRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var matched []model.Product

	_ = r.b.do(func(st *state) error {
		needle := strings.ToLower(strings.TrimSpace(q.Q))
		for _, p := range st.products {
			if !p.Available() {
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(p.Name), needle) &&
				!strings.Contains(strings.ToLower(p.Description), needle) {
				continue
			}
			if q.Category != "" && p.Category != q.Category {
				continue
			}
			if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
				continue
			}
			if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
				continue
			}
			matched = append(matched, copyProduct(p))
		}
		return nil
	})

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case "price_asc":
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
			return a.ID < b.ID
		case "price_desc":
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
			return a.ID > b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})

	total := int64(len(matched))
	return paginate(matched, q.Page, q.Limit), total, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (model.Product, error) {
	var out model.Product
	err := r.b.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		out = copyProduct(p)
		return nil
	})
	return out, err
}

// トランザクション中は他の書き込みがロックで止まっているので、そのまま読む
func (r *ProductRepository) FindForUpdate(ctx context.Context, id string) (model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *ProductRepository) Create(ctx context.Context, p model.Product) error {
	return r.b.do(func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return repo.ErrConflict
		}
		st.products[p.ID] = copyProduct(p)
		return nil
	})
}

func (r *ProductRepository) Update(ctx context.Context, p model.Product) error {
	return r.b.do(func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok || cur.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		p.CreatedAt = cur.CreatedAt
		p.DeletedAt = cur.DeletedAt
		st.products[p.ID] = copyProduct(p)
		return nil
	})
}

func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	return r.b.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		p.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		st.products[id] = p
		return nil
	})
}

func paginate[T any](items []T, page int, limit int) []T {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		return []T{}
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
