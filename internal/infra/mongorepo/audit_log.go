package mongorepo

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditLogRepository struct {
	s scope
}

func (r *AuditLogRepository) Create(ctx context.Context, log model.AuditLog) error {
	_, err := r.s.col(colAuditLogs).InsertOne(r.s.ctx(ctx), auditLogDoc{
		ID:           log.ID,
		ActorUserID:  log.ActorUserID,
		Action:       string(log.Action),
		ResourceType: string(log.ResourceType),
		ResourceID:   log.ResourceID,
		BeforeJSON:   log.BeforeJSON,
		AfterJSON:    log.AfterJSON,
		CreatedAt:    log.CreatedAt,
	})
	return translateError(err)
}

func (r *AuditLogRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	ctx = r.s.ctx(ctx)

	filter := bson.M{}
	if f.ActorUserID != "" {
		filter["actor_user_id"] = f.ActorUserID
	}
	if f.Action != nil {
		filter["action"] = string(*f.Action)
	}
	if f.ResourceType != nil {
		filter["resource_type"] = string(*f.ResourceType)
	}
	if f.ResourceID != "" {
		filter["resource_id"] = f.ResourceID
	}
	created := bson.M{}
	if f.CreatedFrom != nil {
		created["$gte"] = *f.CreatedFrom
	}
	if f.CreatedTo != nil {
		created["$lte"] = *f.CreatedTo
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.s.col(colAuditLogs).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []auditLogDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]model.AuditLog, 0, len(docs))
	for _, d := range docs {
		out = append(out, model.AuditLog{
			ID:           d.ID,
			ActorUserID:  d.ActorUserID,
			Action:       model.AuditAction(d.Action),
			ResourceType: model.AuditResourceType(d.ResourceType),
			ResourceID:   d.ResourceID,
			BeforeJSON:   d.BeforeJSON,
			AfterJSON:    d.AfterJSON,
			CreatedAt:    d.CreatedAt,
		})
	}
	return out, nil
}
