package validator

import (
	"strings"
	"testing"

	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() usecase.ProductInput {
	return usecase.ProductInput{
		Name:        "Coffee Beans",
		Description: "Medium roast",
		Category:    "food",
		Tags:        []string{"coffee"},
		Price:       decimal.RequireFromString("12.50"),
		Stock:       10,
		Attributes:  map[string]string{"origin": "Ethiopia"},
	}
}

func TestValidateProduct_OK(t *testing.T) {
	v := NewProductValidator()
	require.NoError(t, v.ValidateProduct(validInput()))

	// 0円と在庫0は許可
	in := validInput()
	in.Price = decimal.Zero
	in.Stock = 0
	assert.NoError(t, v.ValidateProduct(in))
}

func TestValidateProduct_Invalid(t *testing.T) {
	v := NewProductValidator()

	cases := []struct {
		name   string
		mutate func(in *usecase.ProductInput)
		msg    string
	}{
		{"empty name", func(in *usecase.ProductInput) { in.Name = "  " }, "name must be"},
		{"long name", func(in *usecase.ProductInput) { in.Name = strings.Repeat("a", 101) }, "name must be"},
		{"long description", func(in *usecase.ProductInput) { in.Description = strings.Repeat("a", 501) }, "description"},
		{"long category", func(in *usecase.ProductInput) { in.Category = strings.Repeat("c", 51) }, "category"},
		{"negative price", func(in *usecase.ProductInput) { in.Price = decimal.RequireFromString("-1") }, "price must be >= 0"},
		{"three decimals", func(in *usecase.ProductInput) { in.Price = decimal.RequireFromString("1.005") }, "decimal places"},
		{"negative stock", func(in *usecase.ProductInput) { in.Stock = -1 }, "stock"},
		{"too many tags", func(in *usecase.ProductInput) { in.Tags = make([]string, 21) }, "tags"},
		{"empty attribute key", func(in *usecase.ProductInput) { in.Attributes = map[string]string{"": "x"} }, "attribute key"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			err := v.ValidateProduct(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestValidateProduct_MultibyteName(t *testing.T) {
	v := NewProductValidator()
	in := validInput()
	in.Name = strings.Repeat("珈", 100)

	assert.NoError(t, v.ValidateProduct(in))
}
