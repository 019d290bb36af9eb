package memory

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AuditLogRepository struct {
	b base
}

func (r *AuditLogRepository) Create(ctx context.Context, log model.AuditLog) error {
	return r.b.do(func(st *state) error {
		st.auditLogs = append(st.auditLogs, log)
		return nil
	})
}

func (r *AuditLogRepository) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	matched := []model.AuditLog{}
	_ = r.b.do(func(st *state) error {
		for i := len(st.auditLogs) - 1; i >= 0; i-- {
			l := st.auditLogs[i]
			if f.ActorUserID != "" && l.ActorUserID != f.ActorUserID {
				continue
			}
			if f.Action != nil && l.Action != *f.Action {
				continue
			}
			if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
				continue
			}
			if f.ResourceID != "" && l.ResourceID != f.ResourceID {
				continue
			}
			if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
				continue
			}
			if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
				continue
			}
			matched = append(matched, l)
		}
		return nil
	})

	if offset >= len(matched) {
		return []model.AuditLog{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}
