package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/domain/pricing"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジック。
// 金額は保存せず、表示のたびに現在の商品価格で計算する。
type CartUsecase struct {
	cartRepo    repo.CartRepository
	productRepo repo.ProductRepository
	clock       Clock
}

func NewCartUsecase(cartRepo repo.CartRepository, productRepo repo.ProductRepository, clock Clock) *CartUsecase {
	return &CartUsecase{cartRepo: cartRepo, productRepo: productRepo, clock: clock}
}

// 削除・非公開になった商品の明細
type UnavailableCartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CartResponse struct {
	Items       []pricing.PricedLine  `json:"items"`
	Unavailable []UnavailableCartItem `json:"unavailable"`
	Total       decimal.Decimal       `json:"total"`
}

type AddCartInput struct {
	ProductID string
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカート取得（無ければ空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID string) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, unauthorized()
	}
	return u.buildCartResponse(ctx, userID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID string, in AddCartInput) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, unauthorized()
	}
	if in.Quantity < 1 {
		return CartResponse{}, fmt.Errorf("%w: %d", model.ErrInvalidQuantity, in.Quantity)
	}

	// 商品チェック（公開のみ）
	p, err := u.availableProduct(ctx, in.ProductID)
	if err != nil {
		return CartResponse{}, err
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, storageError(err)
	}

	var existingQty int64
	for _, it := range cart.Items {
		if it.ProductID == p.ID {
			existingQty = it.Quantity
			break
		}
	}
	if newQty := existingQty + in.Quantity; newQty > p.Stock {
		return CartResponse{}, fmt.Errorf("%w: product %s requested %d available %d",
			model.ErrInsufficientStock, p.ID, newQty, p.Stock)
	}

	if err := u.cartRepo.AddItem(ctx, userID, p.ID, in.Quantity, u.clock.Now()); err != nil {
		return CartResponse{}, storageError(err)
	}

	return u.buildCartResponse(ctx, userID)
}

// 数量変更（在庫チェック付き）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID string, productID string, in UpdateCartItemInput) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, unauthorized()
	}
	if in.Quantity < 1 {
		return CartResponse{}, fmt.Errorf("%w: %d", model.ErrInvalidQuantity, in.Quantity)
	}

	p, err := u.availableProduct(ctx, productID)
	if err != nil {
		return CartResponse{}, err
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, fmt.Errorf("%w: product %s requested %d available %d",
			model.ErrInsufficientStock, p.ID, in.Quantity, p.Stock)
	}

	err = u.cartRepo.SetItemQuantity(ctx, userID, productID, in.Quantity, u.clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	if err != nil {
		return CartResponse{}, storageError(err)
	}

	return u.buildCartResponse(ctx, userID)
}

// 明細を削除。商品が消えていても削除はできる。
func (u *CartUsecase) RemoveCartItem(ctx context.Context, userID string, productID string) (CartResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return CartResponse{}, unauthorized()
	}
	if strings.TrimSpace(productID) == "" {
		return CartResponse{}, badRequest("invalid product_id")
	}

	err := u.cartRepo.RemoveItem(ctx, userID, productID, u.clock.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "cart item not found")
	}
	if err != nil {
		return CartResponse{}, storageError(err)
	}

	return u.buildCartResponse(ctx, userID)
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return unauthorized()
	}
	if err := u.cartRepo.Clear(ctx, userID, u.clock.Now()); err != nil {
		return storageError(err)
	}
	return nil
}

func (u *CartUsecase) availableProduct(ctx context.Context, productID string) (model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, fmt.Errorf("%w: empty product id", model.ErrProductNotFound)
	}
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
	}
	if err != nil {
		return model.Product{}, storageError(err)
	}
	if !p.Available() {
		return model.Product{}, fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
	}
	return p, nil
}

// 買える明細だけ集計し、買えない明細は unavailable に分ける
func (u *CartUsecase) buildCartResponse(ctx context.Context, userID string) (CartResponse, error) {
	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, storageError(err)
	}

	products := make(map[string]model.Product, len(cart.Items))
	priceable := make([]model.CartLineItem, 0, len(cart.Items))
	unavailable := []UnavailableCartItem{}

	for _, it := range cart.Items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, storageError(err)
		}
		if err != nil || !p.Available() {
			unavailable = append(unavailable, UnavailableCartItem{ProductID: it.ProductID, Quantity: it.Quantity})
			continue
		}
		products[p.ID] = p
		priceable = append(priceable, model.CartLineItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	quote, err := pricing.Aggregate(ctx, priceable, pricing.FromSnapshot(products))
	if err != nil {
		return CartResponse{}, err
	}

	return CartResponse{
		Items:       quote.Lines,
		Unavailable: unavailable,
		Total:       quote.Total,
	}, nil
}
