package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, id string, price string, stock int64, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.Products().Create(context.Background(), model.Product{
		ID:        id,
		Name:      "name " + id,
		Price:     decimal.RequireFromString(price),
		Stock:     stock,
		IsActive:  true,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}))
}

func TestWithinTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "p1", "1.00", 5, now)

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, "p1", 2)
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(r repo.TxRepos) error {
		_, _ = r.Inventory().DecreaseStockIfEnough(ctx, "p1", 3)
		// トランザクション内では減って見える
		p, err := r.Products().FindByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), p.Stock)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Stock)
}

func TestWithinTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewStore().WithinTx(ctx, func(r repo.TxRepos) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestInventory_DecreaseStockIfEnough(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "p1", "1.00", 2, now)
	inv := s.Inventory()

	ok, err := inv.DecreaseStockIfEnough(ctx, "p1", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = inv.DecreaseStockIfEnough(ctx, "p1", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = inv.DecreaseStockIfEnough(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Products().SoftDelete(ctx, "p1"))
	// 論理削除済みにも戻せる
	assert.NoError(t, inv.IncreaseStock(ctx, "p1", 2))
	assert.ErrorIs(t, inv.IncreaseStock(ctx, "missing", 1), repo.ErrNotFound)
	assert.ErrorIs(t, inv.SetStock(ctx, "p1", 1), repo.ErrNotFound)
}

// トランザクション外の呼び出しどうしでも判定と減算が割り込まれない
func TestInventory_DecreaseStockIfEnough_ConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "p1", "1.00", 40, now)
	inv := s.Inventory()

	var (
		wg   sync.WaitGroup
		sold atomic.Int64
		errs atomic.Int64
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := inv.DecreaseStockIfEnough(ctx, "p1", 1)
			if err != nil {
				errs.Add(1)
				return
			}
			if ok {
				sold.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, errs.Load())
	assert.Equal(t, int64(40), sold.Load())
	p, err := s.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Stock)
}

func TestProducts_ListPublic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed(t, s, "a", "3.00", 1, now)
	seed(t, s, "b", "1.00", 1, now.Add(time.Minute))
	seed(t, s, "c", "2.00", 1, now.Add(2*time.Minute))
	require.NoError(t, s.Products().Update(ctx, model.Product{ID: "c", Name: "Blue Kettle", Price: decimal.RequireFromString("2.00"), Stock: 1, IsActive: true, Category: "kitchen"}))

	items, total, err := s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, "c", items[0].ID)
	assert.Equal(t, "b", items[1].ID)

	items, _, err = s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)

	items, _, err = s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, Sort: "price_desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids(items))

	items, total, err = s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, Q: "kettle"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "c", items[0].ID)

	items, _, err = s.Products().ListPublic(ctx, repo.ProductListQuery{Page: 1, Limit: 10, Category: "kitchen"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(items))
}

func TestProducts_CopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Products().Create(ctx, model.Product{ID: "p1", Tags: []string{"x"}, IsActive: true}))

	p, err := s.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	p.Tags[0] = "changed"

	again, err := s.Products().FindByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, again.Tags)
	assert.ErrorIs(t, s.Products().Create(ctx, model.Product{ID: "p1"}), repo.ErrConflict)
}

func TestOrders_IdempotencyKeyIsUniquePerUser(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	key := "k1"

	require.NoError(t, s.Orders().Create(ctx, model.Order{ID: "o1", UserID: "u1", IdempotencyKey: &key, CreatedAt: now}))
	assert.ErrorIs(t, s.Orders().Create(ctx, model.Order{ID: "o2", UserID: "u1", IdempotencyKey: &key}), repo.ErrConflict)
	assert.NoError(t, s.Orders().Create(ctx, model.Order{ID: "o3", UserID: "u2", IdempotencyKey: &key}))

	o, found, err := s.Orders().FindByIdempotencyKey(ctx, "u1", "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "o1", o.ID)

	_, found, err = s.Orders().FindByIdempotencyKey(ctx, "u1", "other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOrders_ItemsKeepPosition(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Orders().Create(ctx, model.Order{
		ID:     "o1",
		UserID: "u1",
		Items:  []model.OrderItem{{ID: "i1", ProductID: "b"}, {ID: "i2", ProductID: "a"}},
	}))

	o, err := s.Orders().FindByID(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "b", o.Items[0].ProductID)
	assert.Equal(t, 1, o.Items[1].Position)
	assert.Equal(t, "o1", o.Items[1].OrderID)

	_, err = s.Orders().FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestCarts_AddSetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	carts := s.Carts()

	c, err := carts.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	require.NoError(t, carts.AddItem(ctx, "u1", "p1", 1, now))
	require.NoError(t, carts.AddItem(ctx, "u1", "p1", 2, now))
	require.NoError(t, carts.AddItem(ctx, "u1", "p2", 1, now))

	c, err = carts.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, int64(3), c.Items[0].Quantity)

	require.NoError(t, carts.SetItemQuantity(ctx, "u1", "p2", 5, now))
	assert.ErrorIs(t, carts.SetItemQuantity(ctx, "u1", "p3", 1, now), repo.ErrNotFound)
	assert.ErrorIs(t, carts.AddItem(ctx, "u1", "p1", 0, now), model.ErrInvalidQuantity)

	require.NoError(t, carts.RemoveItem(ctx, "u1", "p1", now))
	assert.ErrorIs(t, carts.RemoveItem(ctx, "u1", "p1", now), repo.ErrNotFound)

	c, err = carts.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(5), c.Items[0].Quantity)
}

func ids(ps []model.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}
