package mongorepo

import (
	"context"
	"regexp"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProductRepository struct {
	s scope
}

func (r *ProductRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	ctx = r.s.ctx(ctx)
	filter := bson.M{"is_active": true, "deleted_at": nil}

	// name/description を大文字小文字無視で部分一致
	if s := strings.TrimSpace(q.Q); s != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
		filter["$or"] = bson.A{bson.M{"name": re}, bson.M{"description": re}}
	}
	if q.Category != "" {
		filter["category"] = q.Category
	}

	price := bson.M{}
	if q.MinPrice != nil {
		v, err := toDecimal128(*q.MinPrice)
		if err != nil {
			return []model.Product{}, 0, err
		}
		price["$gte"] = v
	}
	if q.MaxPrice != nil {
		v, err := toDecimal128(*q.MaxPrice)
		if err != nil {
			return []model.Product{}, 0, err
		}
		price["$lte"] = v
	}
	if len(price) > 0 {
		filter["price"] = price
	}

	col := r.s.col(colProducts)
	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		return []model.Product{}, 0, err
	}

	var sort bson.D
	switch q.Sort {
	case "price_asc":
		sort = bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case "price_desc":
		sort = bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: -1}}
	default:
		sort = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))

	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		return []model.Product{}, 0, err
	}
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return []model.Product{}, 0, err
	}

	out := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toModel()
		if err != nil {
			return []model.Product{}, 0, err
		}
		out = append(out, p)
	}
	return out, total, nil
}

// 削除済みは見つからない扱い
func (r *ProductRepository) FindByID(ctx context.Context, id string) (model.Product, error) {
	var d productDoc
	err := r.s.col(colProducts).FindOne(r.s.ctx(ctx), bson.M{"_id": id, "deleted_at": nil}).Decode(&d)
	if err != nil {
		return model.Product{}, translateError(err)
	}
	return d.toModel()
}

// トランザクション内ではスナップショットから読む。
// 減算は条件付き更新で行うので、ここで読んだ値は判定とスナップショットにだけ使う。
func (r *ProductRepository) FindForUpdate(ctx context.Context, id string) (model.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *ProductRepository) Create(ctx context.Context, p model.Product) error {
	d, err := newProductDoc(p)
	if err != nil {
		return err
	}
	_, err = r.s.col(colProducts).InsertOne(r.s.ctx(ctx), d)
	return translateError(err)
}

func (r *ProductRepository) Update(ctx context.Context, p model.Product) error {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return err
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	set := bson.M{
		"name":        p.Name,
		"description": p.Description,
		"category":    p.Category,
		"tags":        tags,
		"price":       price,
		"stock":       p.Stock,
		"is_active":   p.IsActive,
		"attributes":  p.Attributes,
		"updated_at":  p.UpdatedAt,
	}
	res, err := r.s.col(colProducts).UpdateOne(r.s.ctx(ctx),
		bson.M{"_id": p.ID, "deleted_at": nil},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now()
	res, err := r.s.col(colProducts).UpdateOne(r.s.ctx(ctx),
		bson.M{"_id": id, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repo.ErrNotFound
	}
	return nil
}
