package mongorepo

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderRepository struct {
	s scope
}

// 注文と明細を1ドキュメントで保存
func (r *OrderRepository) Create(ctx context.Context, order model.Order) error {
	d, err := newOrderDoc(order)
	if err != nil {
		return err
	}
	_, err = r.s.col(colOrders).InsertOne(r.s.ctx(ctx), d)
	return translateError(err)
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (model.Order, error) {
	var d orderDoc
	if err := r.s.col(colOrders).FindOne(r.s.ctx(ctx), bson.M{"_id": orderID}).Decode(&d); err != nil {
		return model.Order{}, translateError(err)
	}
	return d.toModel()
}

// スナップショット読み取り。同じ注文への同時書き込みは write conflict で片方が中断される
func (r *OrderRepository) FindForUpdate(ctx context.Context, orderID string) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *OrderRepository) ListByUserID(ctx context.Context, userID string, page int, limit int) ([]model.Order, int64, error) {
	return r.list(ctx, bson.M{"user_id": userID}, page, limit)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus, updatedAt time.Time) error {
	res, err := r.s.col(colOrders).UpdateOne(r.s.ctx(ctx),
		bson.M{"_id": orderID},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": updatedAt}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, userID string, key string) (model.Order, bool, error) {
	var d orderDoc
	err := r.s.col(colOrders).FindOne(r.s.ctx(ctx), bson.M{"user_id": userID, "idempotency_key": key}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	o, err := d.toModel()
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	created := bson.M{}
	if f.From != nil {
		created["$gte"] = *f.From
	}
	if f.To != nil {
		created["$lte"] = *f.To
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	return r.list(ctx, filter, f.Page, f.Limit)
}

func (r *OrderRepository) list(ctx context.Context, filter bson.M, page int, limit int) ([]model.Order, int64, error) {
	ctx = r.s.ctx(ctx)
	col := r.s.col(colOrders)

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return []model.Order{}, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return []model.Order{}, 0, err
	}
	var docs []orderDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return []model.Order{}, 0, err
	}

	out := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		o, err := d.toModel()
		if err != nil {
			return []model.Order{}, 0, err
		}
		out = append(out, o)
	}
	return out, total, nil
}
