package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 商品の入力チェック（validatorパッケージが実装）
type ProductValidator interface {
	ValidateProduct(in ProductInput) error
}

type ProductUsecase struct {
	tx            repo.TransactionManager
	productRepo   repo.ProductRepository
	inventoryRepo repo.InventoryRepository
	validator     ProductValidator
	ids           IDGenerator
	clock         Clock
	log           *slog.Logger
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	productRepo repo.ProductRepository,
	inventoryRepo repo.InventoryRepository,
	validator ProductValidator,
	ids IDGenerator,
	clock Clock,
	log *slog.Logger,
) *ProductUsecase {
	return &ProductUsecase{
		tx:            tx,
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		validator:     validator,
		ids:           ids,
		clock:         clock,
		log:           log,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, badRequest("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, badRequest("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, badRequest("q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, badRequest("min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, badRequest("max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, badRequest("min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, badRequest("invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		Category: strings.TrimSpace(in.Category),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, storageError(err)
	}
	if items == nil {
		items = []model.Product{}
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID string) (model.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, badRequest("invalid product id")
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

// 作成・更新の入力。Stock は作成時だけ使う（以後は在庫APIで変更）。
type ProductInput struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	Price       decimal.Decimal
	Stock       int64
	IsActive    *bool
	Attributes  map[string]string
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, adminUserID string, in ProductInput) (model.Product, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return model.Product{}, unauthorized()
	}
	if err := u.validator.ValidateProduct(in); err != nil {
		return model.Product{}, badRequest(err.Error())
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	now := u.clock.Now()
	p := model.Product{
		ID:          u.ids.NewID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Tags:        normalizeTags(in.Tags),
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    active,
		Attributes:  in.Attributes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.productRepo.Create(ctx, p); err != nil {
		return model.Product{}, storageError(err)
	}

	u.log.InfoContext(ctx, "product created", slog.String("product_id", p.ID), slog.String("actor_user_id", adminUserID))
	return p, nil
}

// 可変項目を丸ごと置き換える。在庫はそのまま。
func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, adminUserID string, productID string, in ProductInput) (model.Product, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return model.Product{}, unauthorized()
	}
	if strings.TrimSpace(productID) == "" {
		return model.Product{}, badRequest("invalid product id")
	}
	if err := u.validator.ValidateProduct(in); err != nil {
		return model.Product{}, badRequest(err.Error())
	}

	var out model.Product

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cur, err := r.Products().FindForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
		}
		if err != nil {
			return storageError(err)
		}

		active := cur.IsActive
		if in.IsActive != nil {
			active = *in.IsActive
		}

		next := cur
		next.Name = strings.TrimSpace(in.Name)
		next.Description = in.Description
		next.Category = strings.TrimSpace(in.Category)
		next.Tags = normalizeTags(in.Tags)
		next.Price = in.Price
		next.IsActive = active
		next.Attributes = in.Attributes
		next.UpdatedAt = u.clock.Now()

		if err := r.Products().Update(ctx, next); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
			}
			return storageError(err)
		}
		out = next
		return nil
	})
	if err != nil {
		return model.Product{}, classify(err)
	}
	return out, nil
}

// 論理削除。過去の注文明細はスナップショットなので影響しない。
func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, adminUserID string, productID string) error {
	if strings.TrimSpace(adminUserID) == "" {
		return unauthorized()
	}
	if strings.TrimSpace(productID) == "" {
		return badRequest("invalid product id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
		}
		if err != nil {
			return storageError(err)
		}

		if err := r.Products().SoftDelete(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
			}
			return storageError(err)
		}

		return r.AuditLogs().Create(ctx, model.AuditLog{
			ID:           u.ids.NewID(),
			ActorUserID:  adminUserID,
			Action:       model.AuditActionDeleteProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"name":%q,"stock":%d}`, p.Name, p.Stock),
			AfterJSON:    `{"deleted":true}`,
			CreatedAt:    u.clock.Now(),
		})
	})
	return classify(err)
}

// 在庫の現在値を設定し、差分を履歴に、変更前後を監査ログに残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, adminUserID string, productID string, newStock int64, reason string) (model.InventoryAdjustment, error) {
	if strings.TrimSpace(adminUserID) == "" {
		return model.InventoryAdjustment{}, unauthorized()
	}
	if strings.TrimSpace(productID) == "" {
		return model.InventoryAdjustment{}, badRequest("invalid product id")
	}
	if newStock < 0 {
		return model.InventoryAdjustment{}, badRequest("stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.InventoryAdjustment{}, badRequest("reason required")
	}
	if len(reason) > 255 {
		return model.InventoryAdjustment{}, badRequest("reason too long")
	}

	var adj model.InventoryAdjustment

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		p, err := r.Products().FindForUpdate(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
		}
		if err != nil {
			return storageError(err)
		}

		//在庫の現在値を更新
		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("%w: %s", model.ErrProductNotFound, productID)
			}
			return storageError(err)
		}

		now := u.clock.Now()

		//履歴を作成（差分）
		adj = model.InventoryAdjustment{
			ID:          u.ids.NewID(),
			ProductID:   productID,
			ActorUserID: adminUserID,
			Delta:       newStock - p.Stock,
			Reason:      reason,
			CreatedAt:   now,
		}
		if err := r.Inventory().CreateAdjustment(ctx, adj); err != nil {
			return storageError(err)
		}

		//監査ログを作成（在庫更新）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ID:           u.ids.NewID(),
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, p.Stock),
			AfterJSON:    fmt.Sprintf(`{"stock":%d}`, newStock),
			CreatedAt:    now,
		}); err != nil {
			return storageError(err)
		}
		return nil
	})
	if err != nil {
		return model.InventoryAdjustment{}, classify(err)
	}

	u.log.InfoContext(ctx, "stock updated",
		slog.String("product_id", productID),
		slog.String("actor_user_id", adminUserID),
		slog.Int64("delta", adj.Delta),
	)
	return adj, nil
}

func (u *ProductUsecase) ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error) {
	if strings.TrimSpace(productID) == "" {
		return []model.InventoryAdjustment{}, badRequest("invalid product id")
	}
	if limit < 1 || limit > 200 {
		return []model.InventoryAdjustment{}, badRequest("invalid limit")
	}

	out, err := u.inventoryRepo.ListAdjustments(ctx, productID, limit)
	if err != nil {
		return []model.InventoryAdjustment{}, storageError(err)
	}
	return out, nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
