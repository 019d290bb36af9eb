package mongorepo

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type InventoryRepository struct {
	s scope
}

func (r *InventoryRepository) SetStock(ctx context.Context, productID string, newStock int64) error {
	res, err := r.s.col(colProducts).UpdateOne(r.s.ctx(ctx),
		bson.M{"_id": productID, "deleted_at": nil},
		bson.M{"$set": bson.M{"stock": newStock}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// stock >= qty のときだけ $inc で減らす（1回の更新）
func (r *InventoryRepository) DecreaseStockIfEnough(ctx context.Context, productID string, qty int64) (bool, error) {
	res, err := r.s.col(colProducts).UpdateOne(r.s.ctx(ctx),
		bson.M{"_id": productID, "deleted_at": nil, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// 削除済みの商品でも戻す
func (r *InventoryRepository) IncreaseStock(ctx context.Context, productID string, qty int64) error {
	res, err := r.s.col(colProducts).UpdateOne(r.s.ctx(ctx),
		bson.M{"_id": productID},
		bson.M{"$inc": bson.M{"stock": qty}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *InventoryRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	_, err := r.s.col(colAdjustments).InsertOne(r.s.ctx(ctx), adjustmentDoc{
		ID:          adj.ID,
		ProductID:   adj.ProductID,
		ActorUserID: adj.ActorUserID,
		Delta:       adj.Delta,
		Reason:      adj.Reason,
		CreatedAt:   adj.CreatedAt,
	})
	return translateError(err)
}

func (r *InventoryRepository) ListAdjustments(ctx context.Context, productID string, limit int) ([]model.InventoryAdjustment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	ctx = r.s.ctx(ctx)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.s.col(colAdjustments).Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return []model.InventoryAdjustment{}, err
	}
	var docs []adjustmentDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return []model.InventoryAdjustment{}, err
	}

	out := make([]model.InventoryAdjustment, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.InventoryAdjustment{
			ID:          d.ID,
			ProductID:   d.ProductID,
			ActorUserID: d.ActorUserID,
			Delta:       d.Delta,
			Reason:      d.Reason,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}
