package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカートを明細ごと取得。無ければ空のカートを返す。
func (r *CartGormRepository) FindByUserID(ctx context.Context, userID string) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc").Order("id asc")
		}).
		Where("user_id = ?", userID).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return model.Cart{}, err
	}
	if cart.Items == nil {
		cart.Items = []model.CartItem{}
	}
	return cart, nil
}

// カート行をロックしてから明細を読む。AddItem は同じ行ロックを取るのでコミットまで待たされる
func (r *CartGormRepository) FindForCheckout(ctx context.Context, userID string) (model.Cart, error) {
	if _, err := r.lock(r.db.WithContext(ctx), userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
		}
		return model.Cart{}, err
	}
	return r.FindByUserID(ctx, userID)
}

// ユーザーのカートを行ロック付きで取得し、無ければ作成
func (r *CartGormRepository) lockOrCreate(tx *gorm.DB, userID string, now time.Time) (model.Cart, error) {
	var cart model.Cart

	findErr := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error
	if findErr == nil {
		return cart, nil
	}
	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return model.Cart{}, findErr
	}

	// 無ければ作る
	newCart := model.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Create(&newCart).Error; err != nil {
		// 同時作成に負けた場合は作られた方を使う
		if retryErr := tx.Where("user_id = ?", userID).First(&cart).Error; retryErr == nil {
			return cart, nil
		}
		return model.Cart{}, err
	}
	return newCart, nil
}

// 既存のカートを行ロック付きで取得
func (r *CartGormRepository) lock(tx *gorm.DB, userID string) (model.Cart, error) {
	var cart model.Cart
	if err := lockCartRow(tx, userID).First(&cart).Error; err != nil {
		return model.Cart{}, translateError(err)
	}
	return cart, nil
}

func lockCartRow(db *gorm.DB, userID string) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID)
}

func (r *CartGormRepository) touch(tx *gorm.DB, cartID string, now time.Time) error {
	return tx.Model(&model.Cart{}).Where("id = ?", cartID).Update("updated_at", now).Error
}

// 同一商品は数量加算
func (r *CartGormRepository) AddItem(ctx context.Context, userID string, productID string, qty int64, now time.Time) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := r.lockOrCreate(tx, userID, now)
		if err != nil {
			return err
		}

		var item model.CartItem
		err = tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			First(&item).Error

		if err == nil {
			// 既存ありだったら数量を増やす
			res := tx.Model(&model.CartItem{}).
				Where("id = ?", item.ID).
				Updates(map[string]any{"quantity": item.Quantity + qty, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			return r.touch(tx, cart.ID, now)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		newItem := model.CartItem{
			ID:        uuid.NewString(),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  qty,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&newItem).Error; err != nil {
			return translateError(err)
		}
		return r.touch(tx, cart.ID, now)
	})
}

// 明細の数量を上書き
func (r *CartGormRepository) SetItemQuantity(ctx context.Context, userID string, productID string, qty int64, now time.Time) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := r.lock(tx, userID)
		if err != nil {
			return err
		}

		res := tx.Model(&model.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			Updates(map[string]any{"quantity": qty, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return r.touch(tx, cart.ID, now)
	})
}

// 明細を削除
func (r *CartGormRepository) RemoveItem(ctx context.Context, userID string, productID string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := r.lock(tx, userID)
		if err != nil {
			return err
		}

		res := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).Delete(&model.CartItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return r.touch(tx, cart.ID, now)
	})
}

// 明細を全削除。カートが無くても成功。
func (r *CartGormRepository) Clear(ctx context.Context, userID string, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := r.lock(tx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		//cart_itemsを全削除
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		return r.touch(tx, cart.ID, now)
	})
}
