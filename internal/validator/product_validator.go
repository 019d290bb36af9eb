package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"storefront/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
	maxCategoryLen    = 50
	maxTags           = 20
	maxTagLen         = 30
	maxAttributes     = 20
	maxAttrKeyLen     = 50
	maxAttrValueLen   = 200
	priceDecimals     = 2
)

type productValidator struct{}

// Usecaseは interface を依存注入
func NewProductValidator() usecase.ProductValidator {
	return &productValidator{}
}

// 商品の作成・更新の入力を検証
func (v *productValidator) ValidateProduct(in usecase.ProductInput) error {
	name := strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > maxNameLen {
		return invalid("name must be 1..%d characters", maxNameLen)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return invalid("description must be at most %d characters", maxDescriptionLen)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Category)) > maxCategoryLen {
		return invalid("category must be at most %d characters", maxCategoryLen)
	}

	// 価格は0以上、小数は2桁まで
	if in.Price.IsNegative() {
		return invalid("price must be >= 0")
	}
	if !in.Price.Equal(in.Price.Truncate(priceDecimals)) {
		return invalid("price must have at most %d decimal places", priceDecimals)
	}

	if in.Stock < 0 {
		return invalid("stock must be >= 0")
	}

	if len(in.Tags) > maxTags {
		return invalid("at most %d tags", maxTags)
	}
	for _, t := range in.Tags {
		if utf8.RuneCountInString(strings.TrimSpace(t)) > maxTagLen {
			return invalid("tag must be at most %d characters", maxTagLen)
		}
	}

	if len(in.Attributes) > maxAttributes {
		return invalid("at most %d attributes", maxAttributes)
	}
	for k, val := range in.Attributes {
		if strings.TrimSpace(k) == "" || utf8.RuneCountInString(k) > maxAttrKeyLen {
			return invalid("attribute key must be 1..%d characters", maxAttrKeyLen)
		}
		if utf8.RuneCountInString(val) > maxAttrValueLen {
			return invalid("attribute value must be at most %d characters", maxAttrValueLen)
		}
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
