package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/infra/memory"
	"storefront/internal/logging"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProductUsecase(s *memory.Store) *usecase.ProductUsecase {
	return usecase.NewProductUsecase(s, s.Products(), s.Inventory(), validator.NewProductValidator(), &seqIDs{}, fixedClock{testNow}, logging.Discard())
}

func validProductInput() usecase.ProductInput {
	return usecase.ProductInput{
		Name:        "  Mug  ",
		Description: "ceramic",
		Category:    "kitchen",
		Tags:        []string{"cup", " cup ", "", "gift"},
		Price:       dec("12.50"),
		Stock:       7,
		Attributes:  map[string]string{"color": "white"},
	}
}

func TestProductUsecase_AdminCreateProduct(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	uc := newProductUsecase(s)

	p, err := uc.AdminCreateProduct(ctx, "admin-1", validProductInput())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, []string{"cup", "gift"}, p.Tags)
	assert.True(t, p.IsActive)
	assert.Equal(t, int64(7), p.Stock)

	got, err := uc.GetProductDetail(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "white", got.Attributes["color"])
}

func TestProductUsecase_AdminCreateProduct_Invalid(t *testing.T) {
	ctx := context.Background()
	uc := newProductUsecase(memory.NewStore())

	in := validProductInput()
	in.Price = dec("1.999")
	_, err := uc.AdminCreateProduct(ctx, "admin-1", in)
	assertBadRequest(t, err)

	in = validProductInput()
	in.Name = ""
	_, err = uc.AdminCreateProduct(ctx, "admin-1", in)
	assertBadRequest(t, err)

	_, err = uc.AdminCreateProduct(ctx, "", validProductInput())
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestProductUsecase_AdminUpdateProduct_KeepsStock(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	uc := newProductUsecase(s)
	seedProduct(t, s, "p1", "1.00", 9)

	in := validProductInput()
	in.Stock = 100
	inactive := false
	in.IsActive = &inactive

	p, err := uc.AdminUpdateProduct(ctx, "admin-1", "p1", in)
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.Stock)
	assert.True(t, dec("12.50").Equal(p.Price))

	// 非公開になったので公開APIからは見えない
	_, err = uc.GetProductDetail(ctx, "p1")
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	_, err = uc.AdminUpdateProduct(ctx, "admin-1", "missing", validProductInput())
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestProductUsecase_AdminDeleteProduct_WritesAudit(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	uc := newProductUsecase(s)
	seedProduct(t, s, "p1", "1.00", 4)

	require.NoError(t, uc.AdminDeleteProduct(ctx, "admin-1", "p1"))

	_, err := uc.GetProductDetail(ctx, "p1")
	assert.ErrorIs(t, err, model.ErrProductNotFound)

	action := model.AuditActionDeleteProduct
	logs, err := s.AuditLogs().List(ctx, repo.AuditLogFilter{Action: &action, Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "p1", logs[0].ResourceID)
	assert.JSONEq(t, `{"name":"product p1","stock":4}`, logs[0].BeforeJSON)

	assert.ErrorIs(t, uc.AdminDeleteProduct(ctx, "admin-1", "p1"), model.ErrProductNotFound)
}

func TestProductUsecase_AdminUpdateInventory(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	uc := newProductUsecase(s)
	seedProduct(t, s, "p1", "1.00", 4)

	adj, err := uc.AdminUpdateInventory(ctx, "admin-1", "p1", 10, "restock")
	require.NoError(t, err)
	assert.Equal(t, int64(6), adj.Delta)
	assert.Equal(t, int64(10), stockOf(t, s, "p1"))

	adj, err = uc.AdminUpdateInventory(ctx, "admin-1", "p1", 7, "damaged")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), adj.Delta)

	hist, err := uc.ListAdjustments(ctx, "p1", 50)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "damaged", hist[0].Reason)

	action := model.AuditActionUpdateStock
	logs, err := s.AuditLogs().List(ctx, repo.AuditLogFilter{Action: &action, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	_, err = uc.AdminUpdateInventory(ctx, "admin-1", "p1", -1, "oops")
	assertBadRequest(t, err)
	_, err = uc.AdminUpdateInventory(ctx, "admin-1", "p1", 1, "  ")
	assertBadRequest(t, err)
	_, err = uc.AdminUpdateInventory(ctx, "admin-1", "missing", 1, "restock")
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestProductUsecase_ListPublicProducts(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	uc := newProductUsecase(s)
	seedProduct(t, s, "a", "3.00", 1)
	seedProduct(t, s, "b", "1.00", 1)
	seedProduct(t, s, "c", "2.00", 1)
	require.NoError(t, s.Products().SoftDelete(ctx, "c"))

	out, err := uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, Sort: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "b", out.Items[0].ID)
	assert.Equal(t, "a", out.Items[1].ID)

	minPrice := decimal.NewFromInt(2)
	out, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, MinPrice: &minPrice})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "a", out.Items[0].ID)

	_, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, Sort: "random"})
	assertBadRequest(t, err)

	maxPrice := decimal.NewFromInt(1)
	_, err = uc.ListPublicProducts(ctx, usecase.ListProductsInput{Page: 1, Limit: 10, MinPrice: &minPrice, MaxPrice: &maxPrice})
	assertBadRequest(t, err)
}
