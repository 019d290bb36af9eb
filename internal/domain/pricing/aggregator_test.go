package pricing_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func catalog() map[string]model.Product {
	return map[string]model.Product{
		"p1": {ID: "p1", Name: "Coffee", Price: dec("0.10"), Stock: 10, IsActive: true},
		"p2": {ID: "p2", Name: "Mug", Price: dec("12.35"), Stock: 3, IsActive: true},
		"p3": {ID: "p3", Name: "Hidden", Price: dec("5.00"), Stock: 3, IsActive: false},
	}
}

func TestAggregate_TotalIsExactDecimal(t *testing.T) {
	items := []model.CartLineItem{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 2},
	}

	q, err := pricing.Aggregate(context.Background(), items, pricing.FromSnapshot(catalog()))
	require.NoError(t, err)

	require.Len(t, q.Lines, 2)
	assert.Equal(t, "p1", q.Lines[0].ProductID)
	assert.True(t, q.Lines[0].Subtotal.Equal(dec("0.30")), "0.1*3 must not drift: %s", q.Lines[0].Subtotal)
	assert.True(t, q.Lines[1].Subtotal.Equal(dec("24.70")))
	assert.True(t, q.Total.Equal(dec("25.00")), "total=%s", q.Total)
}

func TestAggregate_EmptyInput(t *testing.T) {
	q, err := pricing.Aggregate(context.Background(), nil, pricing.FromSnapshot(catalog()))
	require.NoError(t, err)
	assert.Empty(t, q.Lines)
	assert.True(t, q.Total.IsZero())
}

func TestAggregate_InvalidQuantity(t *testing.T) {
	for _, qty := range []int64{0, -1} {
		_, err := pricing.Aggregate(context.Background(), []model.CartLineItem{{ProductID: "p1", Quantity: qty}}, pricing.FromSnapshot(catalog()))
		assert.ErrorIs(t, err, model.ErrInvalidQuantity)
	}
}

func TestAggregate_ProductNotFound(t *testing.T) {
	cases := []string{"missing", "p3", ""}
	for _, id := range cases {
		_, err := pricing.Aggregate(context.Background(), []model.CartLineItem{{ProductID: id, Quantity: 1}}, pricing.FromSnapshot(catalog()))
		assert.ErrorIs(t, err, model.ErrProductNotFound, "id=%q", id)
	}
}

func TestAggregate_LookupFailureIsStorageUnavailable(t *testing.T) {
	lookup := func(ctx context.Context, id string) (model.Product, error) {
		return model.Product{}, errors.New("connection reset")
	}

	_, err := pricing.Aggregate(context.Background(), []model.CartLineItem{{ProductID: "p1", Quantity: 1}}, lookup)
	assert.ErrorIs(t, err, model.ErrStorageUnavailable)
}

func TestMergeLines_KeepsFirstOccurrenceOrder(t *testing.T) {
	out := pricing.MergeLines([]model.CartLineItem{
		{ProductID: "b", Quantity: 1},
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 4},
	})

	assert.Equal(t, []model.CartLineItem{
		{ProductID: "b", Quantity: 5},
		{ProductID: "a", Quantity: 2},
	}, out)
}

func TestMergeLines_SaturatesInsteadOfOverflowing(t *testing.T) {
	half := int64(math.MaxInt64/2 + 1)
	out := pricing.MergeLines([]model.CartLineItem{
		{ProductID: "p1", Quantity: half},
		{ProductID: "p1", Quantity: half},
		{ProductID: "p1", Quantity: 7},
	})

	require.Len(t, out, 1)
	assert.Equal(t, int64(math.MaxInt64), out[0].Quantity)
}
