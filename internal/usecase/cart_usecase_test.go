package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memory"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartUsecase(s *memory.Store) *usecase.CartUsecase {
	return usecase.NewCartUsecase(s.Carts(), s.Products(), fixedClock{testNow})
}

func TestCartUsecase_AddToCart_MergesQuantityAndPrices(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedProduct(t, s, "p1", "19.99", 5)
	seedProduct(t, s, "p2", "5.00", 5)
	uc := newCartUsecase(s)

	_, err := uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p2", Quantity: 2})
	require.NoError(t, err)
	out, err := uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	require.Len(t, out.Items, 2)
	assert.Equal(t, "p1", out.Items[0].ProductID)
	assert.Equal(t, int64(3), out.Items[0].Quantity)
	assert.True(t, dec("59.97").Equal(out.Items[0].Subtotal))
	assert.True(t, dec("69.97").Equal(out.Total))
	assert.Empty(t, out.Unavailable)

	// カートは在庫を確保しない
	assert.Equal(t, int64(5), stockOf(t, s, "p1"))
}

func TestCartUsecase_AddToCart_CombinedQuantityOverStock(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedProduct(t, s, "p1", "1.00", 3)
	uc := newCartUsecase(s)

	_, err := uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	_, err = uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 2})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	out, err := uc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Items[0].Quantity)
}

func TestCartUsecase_AddToCart_Rejected(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, "p1", "1.00", 3)
	p.IsActive = false
	require.NoError(t, s.Products().Update(ctx, p))
	uc := newCartUsecase(s)

	_, err := uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 1})
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, err = uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, err = uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 0})
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	_, err = uc.AddToCart(ctx, "", usecase.AddCartInput{ProductID: "p1", Quantity: 1})
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestCartUsecase_GetCart_EmptyAndUnavailable(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedProduct(t, s, "p1", "2.00", 5)
	seedProduct(t, s, "p2", "3.00", 5)
	uc := newCartUsecase(s)

	out, err := uc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.True(t, out.Total.IsZero())

	_, err = uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	_, err = uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p2", Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, s.Products().SoftDelete(ctx, "p2"))

	out, err = uc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.True(t, dec("2.00").Equal(out.Total))
	assert.Equal(t, []usecase.UnavailableCartItem{{ProductID: "p2", Quantity: 2}}, out.Unavailable)
}

func TestCartUsecase_GetCart_UsesCurrentPrice(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	p := seedProduct(t, s, "p1", "2.00", 5)
	uc := newCartUsecase(s)

	_, err := uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 2})
	require.NoError(t, err)

	p.Price = dec("2.50")
	require.NoError(t, s.Products().Update(ctx, p))

	out, err := uc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, dec("5.00").Equal(out.Total))
}

func TestCartUsecase_UpdateRemoveClear(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	seedProduct(t, s, "p1", "1.00", 5)
	seedProduct(t, s, "p2", "1.00", 5)
	uc := newCartUsecase(s)

	_, err := uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)

	out, err := uc.UpdateCartItem(ctx, "user-1", "p1", usecase.UpdateCartItemInput{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4), out.Items[0].Quantity)

	_, err = uc.UpdateCartItem(ctx, "user-1", "p1", usecase.UpdateCartItemInput{Quantity: 6})
	assert.ErrorIs(t, err, model.ErrInsufficientStock)

	_, err = uc.UpdateCartItem(ctx, "user-1", "p2", usecase.UpdateCartItemInput{Quantity: 1})
	assertHTTPStatus(t, err, http.StatusNotFound)

	_, err = uc.RemoveCartItem(ctx, "user-1", "p2")
	assertHTTPStatus(t, err, http.StatusNotFound)

	out, err = uc.RemoveCartItem(ctx, "user-1", "p1")
	require.NoError(t, err)
	assert.Empty(t, out.Items)

	_, err = uc.AddToCart(ctx, "user-1", usecase.AddCartInput{ProductID: "p2", Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, uc.ClearCart(ctx, "user-1"))
	out, err = uc.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, out.Items)

	// カートが無くてもエラーにしない
	assert.NoError(t, uc.ClearCart(ctx, "user-2"))
}
