package mongorepo

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CartRepository struct {
	s scope
}

func (r *CartRepository) FindByUserID(ctx context.Context, userID string) (model.Cart, error) {
	var d cartDoc
	err := r.s.col(colCarts).FindOne(r.s.ctx(ctx), bson.M{"user_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Cart{UserID: userID, Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return model.Cart{}, err
	}
	return d.toModel(), nil
}

// 確定後の Clear と同時追加は write conflict になる
func (r *CartRepository) FindForCheckout(ctx context.Context, userID string) (model.Cart, error) {
	return r.FindByUserID(ctx, userID)
}

// 既存明細があれば $inc、無ければ $push（カートが無ければupsertで作る）
func (r *CartRepository) AddItem(ctx context.Context, userID string, productID string, qty int64, now time.Time) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}
	ctx = r.s.ctx(ctx)
	col := r.s.col(colCarts)

	inc := func() (bool, error) {
		res, err := col.UpdateOne(ctx,
			bson.M{"user_id": userID, "items.product_id": productID},
			bson.M{
				"$inc": bson.M{"items.$.quantity": qty},
				"$set": bson.M{"items.$.updated_at": now, "updated_at": now},
			},
		)
		if err != nil {
			return false, err
		}
		return res.MatchedCount > 0, nil
	}

	ok, err := inc()
	if err != nil || ok {
		return err
	}

	item := cartItemDoc{
		ID:        uuid.NewString(),
		ProductID: productID,
		Quantity:  qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = col.UpdateOne(ctx,
		bson.M{"user_id": userID, "items.product_id": bson.M{"$ne": productID}},
		bson.M{
			"$push":        bson.M{"items": item},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"_id": uuid.NewString(), "created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// 同時に同じ商品が追加された
		ok, err = inc()
		if err != nil {
			return err
		}
		if !ok {
			return repo.ErrConflict
		}
		return nil
	}
	return err
}

func (r *CartRepository) SetItemQuantity(ctx context.Context, userID string, productID string, qty int64, now time.Time) error {
	if qty <= 0 {
		return model.ErrInvalidQuantity
	}
	res, err := r.s.col(colCarts).UpdateOne(r.s.ctx(ctx),
		bson.M{"user_id": userID, "items.product_id": productID},
		bson.M{"$set": bson.M{
			"items.$.quantity":   qty,
			"items.$.updated_at": now,
			"updated_at":         now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, userID string, productID string, now time.Time) error {
	res, err := r.s.col(colCarts).UpdateOne(r.s.ctx(ctx),
		bson.M{"user_id": userID, "items.product_id": productID},
		bson.M{
			"$pull": bson.M{"items": bson.M{"product_id": productID}},
			"$set":  bson.M{"updated_at": now},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// カートが無くても成功
func (r *CartRepository) Clear(ctx context.Context, userID string, now time.Time) error {
	_, err := r.s.col(colCarts).UpdateOne(r.s.ctx(ctx),
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"items": bson.A{}, "updated_at": now}},
	)
	return err
}
